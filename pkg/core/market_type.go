package core

import "fmt"

// MarketType represents the trading venue family an instrument belongs to.
type MarketType int

// Market type constants define the available trading market categories.
const (
	// MarketTypeSpot indicates spot trading where assets are exchanged immediately.
	MarketTypeSpot MarketType = iota
	// MarketTypeMargin indicates leveraged trading on borrowed funds.
	MarketTypeMargin
	// MarketTypeOTC indicates over-the-counter block trading.
	MarketTypeOTC
)

// String returns the string representation of the market type ("spot", "margin", or "otc").
func (m MarketType) String() string {
	return [...]string{
		"spot",
		"margin",
		"otc",
	}[m]
}

// MarshalJSON implements json.Marshaler for MarketType.
func (m MarketType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// ParseMarketType converts a market type name to a MarketType.
func ParseMarketType(s string) (MarketType, error) {
	switch s {
	case "", "spot":
		return MarketTypeSpot, nil
	case "margin":
		return MarketTypeMargin, nil
	case "otc":
		return MarketTypeOTC, nil
	default:
		return MarketTypeSpot, fmt.Errorf("unknown market type %q", s)
	}
}
