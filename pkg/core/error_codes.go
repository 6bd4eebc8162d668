package core

import "errors"

// ErrorCode is a standardized identifier for failures that carry no
// exchange-native code, such as HTTP status errors or client-side checks on
// the exchange's answer.
type ErrorCode string

const (
	// ErrCodeNetwork indicates a network connectivity failure.
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	// ErrCodeRateLimit indicates the rate limit was exceeded.
	ErrCodeRateLimit ErrorCode = "RATE_LIMIT"
	// ErrCodeAuth indicates authentication or authorization failure.
	ErrCodeAuth ErrorCode = "AUTH_ERROR"
	// ErrCodeBadRequest indicates invalid request parameters.
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeServerError indicates a server-side error occurred.
	ErrCodeServerError ErrorCode = "SERVER_ERROR"
	// ErrCodeOrderNotFound indicates a cancel matched zero or an ambiguous number of orders.
	ErrCodeOrderNotFound ErrorCode = "ORDER_NOT_FOUND"
	// ErrCodeBadResponse indicates a response without the expected envelope.
	ErrCodeBadResponse ErrorCode = "BAD_RESPONSE"
	// ErrCodeUnknown indicates a failure that fits no other code.
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// IsErrorCode checks if the error matches the specified error code.
func IsErrorCode(err error, code ErrorCode) bool {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return ErrorCode(exErr.Code) == code
	}
	return false
}

// StatusErrorCode maps an HTTP status code to a category and standardized code.
func StatusErrorCode(statusCode int) (ErrorType, ErrorCode) {
	switch {
	case statusCode >= 500:
		return ErrorTypeServerError, ErrCodeServerError
	case statusCode == 429:
		return ErrorTypeRateLimit, ErrCodeRateLimit
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuthentication, ErrCodeAuth
	case statusCode == 400:
		return ErrorTypeBadRequest, ErrCodeBadRequest
	case statusCode == 404:
		return ErrorTypeNotFound, ErrCodeNotFound
	default:
		return ErrorTypeUnknown, ErrCodeUnknown
	}
}
