package core

import "strings"

// commonCurrencies maps legacy or exchange-specific tickers to their common code.
var commonCurrencies = map[string]string{
	"XBT": "BTC",
	"BCC": "BCH",
}

// SafeCurrencyCode returns the canonical upper-case code for an exchange
// currency id, applying the shared aliases and then the exchange overrides.
func SafeCurrencyCode(id string, overrides map[string]string) string {
	code := strings.ToUpper(strings.TrimSpace(id))
	if code == "" {
		return ""
	}
	if alias, ok := overrides[code]; ok {
		return alias
	}
	if alias, ok := commonCurrencies[code]; ok {
		return alias
	}
	return code
}

// JoinSymbol builds the canonical "BASE/QUOTE" symbol.
func JoinSymbol(base, quote string) string {
	return base + "/" + quote
}

// SplitSymbol splits a canonical symbol into base and quote.
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	return strings.Cut(symbol, "/")
}
