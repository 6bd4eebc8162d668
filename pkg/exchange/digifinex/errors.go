package digifinex

import (
	"bytes"
	"net/http"

	"github.com/bytedance/sonic"

	"unifex/pkg/core"
)

type apiError struct {
	errType core.ErrorType
	message string
}

// errorCodes maps the documented DigiFinex codes. Codes missing from the
// table surface as core.ErrorTypeExchange with the raw body as message.
var errorCodes = map[string]apiError{
	"10001": {core.ErrorTypeBadRequest, "Wrong request method, please check it's a GET or POST request"},
	"10002": {core.ErrorTypeAuthentication, "Invalid ApiKey"},
	"10003": {core.ErrorTypeAuthentication, "Sign doesn't match"},
	"10004": {core.ErrorTypeBadRequest, "Illegal request parameters"},
	"10005": {core.ErrorTypeRateLimit, "Request frequency exceeds the limit"},
	"10006": {core.ErrorTypePermissionDenied, "Unauthorized to execute this request"},
	"10007": {core.ErrorTypePermissionDenied, "IP address Unauthorized"},
	"10008": {core.ErrorTypeInvalidNonce, "Timestamp for this request is invalid, timeout"},
	"10009": {core.ErrorTypeNetwork, "Unexist endpoint, please check endpoint URL"},
	"10011": {core.ErrorTypeAccountSuspended, "ApiKey expired. Please go to client side to re-create an ApiKey"},
	"20001": {core.ErrorTypePermissionDenied, "Trade is not open for this trading pair"},
	"20002": {core.ErrorTypePermissionDenied, "Trade of this trading pair is suspended"},
	"20003": {core.ErrorTypeInvalidOrder, "Invalid price or amount"},
	"20007": {core.ErrorTypeInvalidOrder, "Price precision error"},
	"20008": {core.ErrorTypeInvalidOrder, "Amount precision error"},
	"20009": {core.ErrorTypeInvalidOrder, "Amount is less than the minimum requirement"},
	"20010": {core.ErrorTypeInvalidOrder, "Cash Amount is less than the minimum requirement"},
	"20011": {core.ErrorTypeInsufficientFunds, "Insufficient balance"},
	"20012": {core.ErrorTypeBadRequest, "Invalid trade type, valid value: buy/sell"},
	"20013": {core.ErrorTypeInvalidOrder, "No order info found"},
	"20014": {core.ErrorTypeBadRequest, "Invalid date, Valid format: 2018-07-25"},
	"20015": {core.ErrorTypeBadRequest, "Date exceeds the limit"},
	"20018": {core.ErrorTypePermissionDenied, "Your trading rights have been banned by the system"},
	"20019": {core.ErrorTypeBadRequest, "Wrong trading pair symbol, correct format:\"base_quote\", e.g. \"btc_usdt\""},
	"20020": {core.ErrorTypeRateLimit, "You have violated the API operation trading rules and temporarily banned for trading"},
	"20021": {core.ErrorTypeBadRequest, "Invalid currency"},
	"50000": {core.ErrorTypeExchange, "Exception error"},
}

type envelope struct {
	Code *text `json:"code"`
}

// checkResponse returns nil for code 0. Error statuses without a decodable
// code are left to the caller, which maps them by HTTP status.
func checkResponse(statusCode int, body []byte) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	var env envelope
	if err := sonic.Unmarshal(body, &env); err != nil || env.Code == nil {
		if statusCode >= http.StatusBadRequest {
			return nil
		}
		return core.NewExchangeError(Name, core.ErrorTypeBadResponse, statusCode, "response has no code field").
			WithCode(core.ErrCodeBadResponse).
			WithRaw(string(body))
	}

	code := string(*env.Code)
	if code == "0" {
		return nil
	}
	if known, ok := errorCodes[code]; ok {
		return core.NewExchangeErrorWithCode(Name, known.errType, statusCode, code, known.message).
			WithRaw(string(body))
	}
	return core.NewExchangeErrorWithCode(Name, core.ErrorTypeExchange, statusCode, code, string(body)).
		WithRaw(string(body))
}
