package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of an exchange error.
type ErrorType int

// Error type constants categorize errors for proper handling by callers.
// Nothing in this module retries on any category.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork indicates a connectivity issue or an unknown endpoint.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the request exceeded its deadline.
	ErrorTypeTimeout
	// ErrorTypeRateLimit indicates rate limit was exceeded.
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates invalid or expired credentials or signature.
	ErrorTypeAuthentication
	// ErrorTypeBadRequest indicates invalid request parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates the requested resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a server-side error.
	ErrorTypeServerError
	// ErrorTypeInsufficientFunds indicates account lacks required balance.
	ErrorTypeInsufficientFunds
	// ErrorTypeInvalidOrder indicates the order violates exchange rules.
	ErrorTypeInvalidOrder
	// ErrorTypePermissionDenied indicates the key or account may not perform the action.
	ErrorTypePermissionDenied
	// ErrorTypeInvalidNonce indicates the request timestamp was rejected.
	ErrorTypeInvalidNonce
	// ErrorTypeAccountSuspended indicates the key or account is disabled.
	ErrorTypeAccountSuspended
	// ErrorTypeOrderNotFound indicates the referenced order could not be matched.
	ErrorTypeOrderNotFound
	// ErrorTypeExchange is a generic rejection with no finer category.
	ErrorTypeExchange
	// ErrorTypeBadResponse indicates a response that does not follow the exchange envelope.
	ErrorTypeBadResponse
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"NETWORK",
		"TIMEOUT",
		"RATE_LIMIT",
		"AUTHENTICATION",
		"BAD_REQUEST",
		"NOT_FOUND",
		"SERVER_ERROR",
		"INSUFFICIENT_FUNDS",
		"INVALID_ORDER",
		"PERMISSION_DENIED",
		"INVALID_NONCE",
		"ACCOUNT_SUSPENDED",
		"ORDER_NOT_FOUND",
		"EXCHANGE_ERROR",
		"BAD_RESPONSE",
	}[t]
}

// Sentinel errors for client-side preconditions. These never reach the network.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrCircuitBreakerOpen is returned when circuit breaker is open.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	// ErrNoCredentials is returned when no API credentials are configured.
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrNoAPIKey is returned when an operation needs an API key and none is available.
	ErrNoAPIKey = errors.New("no available API key")
	// ErrSymbolRequired is returned when an operation needs a symbol argument.
	ErrSymbolRequired = errors.New("symbol is required")
	// ErrPriceRequired is returned for non-market orders without a price.
	ErrPriceRequired = errors.New("price is required for limit orders")
	// ErrMarketNotFound is returned when a symbol is not in the loaded catalog.
	ErrMarketNotFound = errors.New("market not found")
)

// ExchangeError represents a structured error returned from an exchange.
type ExchangeError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code from the response.
	StatusCode int `json:"status_code"`
	// Code is the exchange-specific error code.
	Code string `json:"code"`
	// Message is the exchange's human-readable description, or the raw body
	// when the code is not recognized.
	Message string `json:"message"`
	// RawError contains the original error response for debugging.
	RawError any `json:"raw_error,omitempty"`
	// Exchange identifies which exchange returned this error.
	Exchange string `json:"exchange"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface for ExchangeError.
func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (%d/%s): %s",
			e.Exchange, e.Type, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s (%d): %s",
		e.Exchange, e.Type, e.StatusCode, e.Message)
}

// WithCode sets a standardized error code and returns the error for chaining.
func (e *ExchangeError) WithCode(code ErrorCode) *ExchangeError {
	e.Code = string(code)
	return e
}

// WithRaw attaches the raw response and returns the error for chaining.
func (e *ExchangeError) WithRaw(raw any) *ExchangeError {
	e.RawError = raw
	return e
}

// NewExchangeError creates a new ExchangeError with the specified details.
// The timestamp is automatically set to the current time.
func NewExchangeError(exchange string, errorType ErrorType, statusCode int, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

// NewExchangeErrorWithCode creates a new ExchangeError including an exchange-specific error code.
// The timestamp is automatically set to the current time.
func NewExchangeErrorWithCode(exchange string, errorType ErrorType, statusCode int, code, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

// ErrorTypeOf returns the category of err, or ErrorTypeUnknown when err does
// not wrap an ExchangeError.
func ErrorTypeOf(err error) ErrorType {
	var e *ExchangeError
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

func isType(err error, types ...ErrorType) bool {
	var e *ExchangeError
	if !errors.As(err, &e) {
		return false
	}
	for _, t := range types {
		if e.Type == t {
			return true
		}
	}
	return false
}

// IsNetworkError returns true if the error is a network connectivity issue.
func IsNetworkError(err error) bool {
	return isType(err, ErrorTypeNetwork)
}

// IsTimeoutError returns true if the error is a timeout.
func IsTimeoutError(err error) bool {
	return isType(err, ErrorTypeTimeout)
}

// IsRateLimitError returns true if the error is a rate limit violation.
func IsRateLimitError(err error) bool {
	return isType(err, ErrorTypeRateLimit)
}

// IsAuthenticationError returns true if the credentials or signature were rejected.
func IsAuthenticationError(err error) bool {
	return isType(err, ErrorTypeAuthentication)
}

// IsPermissionError returns true if the key lacks rights or the account is suspended.
func IsPermissionError(err error) bool {
	return isType(err, ErrorTypePermissionDenied, ErrorTypeAccountSuspended)
}

// IsOrderNotFoundError returns true if the referenced order could not be matched.
func IsOrderNotFoundError(err error) bool {
	return isType(err, ErrorTypeOrderNotFound)
}

// IsTerminalError returns true if repeating the same request cannot succeed.
func IsTerminalError(err error) bool {
	return isType(err,
		ErrorTypeInsufficientFunds,
		ErrorTypeInvalidOrder,
		ErrorTypeNotFound,
		ErrorTypeOrderNotFound,
		ErrorTypeBadRequest,
	)
}

// IsServiceError returns true if the failure says the remote service or the
// path to it is unhealthy, as opposed to a rejection of the request itself.
func IsServiceError(err error) bool {
	if err == nil {
		return false
	}
	var e *ExchangeError
	if !errors.As(err, &e) {
		return true
	}
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeServerError, ErrorTypeBadResponse:
		return true
	}
	return false
}
