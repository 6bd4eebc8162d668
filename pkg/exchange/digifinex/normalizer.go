package digifinex

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"

	"unifex/pkg/core"
)

// number decodes a JSON number, a numeric string or null. Anything that is
// not a finite number leaves it unset.
type number struct {
	d *apd.Decimal
}

func (n *number) UnmarshalJSON(data []byte) error {
	n.d = core.ParseDecimal(string(data))
	return nil
}

// Dec returns the parsed value, or nil when absent.
func (n number) Dec() *apd.Decimal {
	return n.d
}

// Int returns the value as an int, or nil when absent or fractional.
func (n number) Int() *int {
	if n.d == nil {
		return nil
	}
	v, err := n.d.Int64()
	if err != nil {
		return nil
	}
	i := int(v)
	return &i
}

// text decodes a JSON string or number into its string form; null is empty.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	if string(data) == "null" {
		*t = ""
		return nil
	}
	*t = text(data)
	return nil
}

var (
	thousand   = apd.New(1000, 0)
	intContext = apd.BaseContext.WithPrecision(34)
)

// secondsToTime converts a seconds timestamp to time. Zero and missing
// values map to the zero time.
func secondsToTime(n number) time.Time {
	if n.d == nil || n.d.IsZero() {
		return time.Time{}
	}
	ms := core.MulDecimal(n.d, thousand)
	if ms == nil {
		return time.Time{}
	}
	var whole apd.Decimal
	if _, err := intContext.Quantize(&whole, ms, 0); err != nil {
		return time.Time{}
	}
	v, err := whole.Int64()
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}

type tickerResponse struct {
	Ticker map[string]rawTicker `json:"ticker"`
	Date   number               `json:"date"`
}

type rawTicker struct {
	Last    number `json:"last"`
	High    number `json:"high"`
	Low     number `json:"low"`
	Buy     number `json:"buy"`
	Sell    number `json:"sell"`
	Change  number `json:"change"`
	BaseVol number `json:"base_vol"`
	Vol     number `json:"vol"`
}

type rawOrder struct {
	Symbol         text   `json:"symbol"`
	OrderID        text   `json:"order_id"`
	CreatedDate    number `json:"created_date"`
	FinishedDate   number `json:"finished_date"`
	Price          number `json:"price"`
	Amount         number `json:"amount"`
	CashAmount     number `json:"cash_amount"`
	ExecutedAmount number `json:"executed_amount"`
	AvgPrice       number `json:"avg_price"`
	Status         text   `json:"status"`
	Type           text   `json:"type"`
}

type ordersResponse struct {
	Data []rawOrder `json:"data"`
}

type createOrderResponse struct {
	OrderID text `json:"order_id"`
}

type cancelResponse struct {
	Success []text `json:"success"`
	Error   []text `json:"error"`
}

type rawTrade struct {
	ID     text   `json:"id"`
	Date   number `json:"date"`
	Price  number `json:"price"`
	Amount number `json:"amount"`
	Type   text   `json:"type"`
}

type tradesResponse struct {
	Data []rawTrade `json:"data"`
}

type rawMyTrade struct {
	ID          text   `json:"id"`
	OrderID     text   `json:"order_id"`
	Symbol      text   `json:"symbol"`
	Side        text   `json:"side"`
	Price       number `json:"price"`
	Amount      number `json:"amount"`
	Fee         number `json:"fee"`
	FeeCurrency text   `json:"fee_currency"`
	Timestamp   number `json:"timestamp"`
	IsMaker     text   `json:"is_maker"`
}

type myTradesResponse struct {
	List []rawMyTrade `json:"list"`
}

type rawBalance struct {
	Currency text   `json:"currency"`
	Free     number `json:"free"`
	Total    number `json:"total"`
}

type balanceResponse struct {
	List []rawBalance `json:"list"`
}

type orderBookResponse struct {
	Bids [][]number `json:"bids"`
	Asks [][]number `json:"asks"`
	Date number     `json:"date"`
}

type klineResponse struct {
	Data [][]number `json:"data"`
}

type serverTimeResponse struct {
	ServerTime number `json:"server_time"`
}

// rawMarket is a record of the aggregate /markets listing.
type rawMarket struct {
	Market          text   `json:"market"`
	VolumePrecision number `json:"volume_precision"`
	PricePrecision  number `json:"price_precision"`
	MinAmount       number `json:"min_amount"`
	MinVolume       number `json:"min_volume"`
}

// rawSymbol is a record of the per-type /{market}/symbols listing.
type rawSymbol struct {
	Symbol          text   `json:"symbol"`
	BaseAsset       text   `json:"base_asset"`
	QuoteAsset      text   `json:"quote_asset"`
	AmountPrecision number `json:"amount_precision"`
	PricePrecision  number `json:"price_precision"`
	MinimumAmount   number `json:"minimum_amount"`
	MinimumValue    number `json:"minimum_value"`
	Status          text   `json:"status"`
}

type marketsResponse struct {
	Data []json.RawMessage `json:"data"`
}

type symbolsResponse struct {
	SymbolList []json.RawMessage `json:"symbol_list"`
}

// currencyOverrides are DigiFinex tickers that collide with better known assets.
var currencyOverrides = map[string]string{
	"BHT":  "Black House Test",
	"EPS":  "Epanus",
	"FREE": "FreeRossDAO",
	"MBN":  "Mobilian Coin",
	"TEL":  "TEL666",
}

func currencyCode(id string) string {
	return core.SafeCurrencyCode(id, currencyOverrides)
}

// Normalizer converts DigiFinex payloads into canonical types. Symbols are
// resolved through lookup, which may be nil before the catalog is loaded.
type Normalizer struct {
	lookup func(id string) *core.Market
	logger zerolog.Logger
}

// NewNormalizer creates a Normalizer backed by the given market lookup.
func NewNormalizer(lookup func(id string) *core.Market) *Normalizer {
	return &Normalizer{lookup: lookup, logger: zerolog.Nop()}
}

// side parses a wire side. core.OrderSide has no unknown value, so anything
// other than buy or sell reads as buy and is logged at debug level.
func (n *Normalizer) side(raw, record string) core.OrderSide {
	side, ok := core.ParseOrderSide(raw)
	if !ok {
		n.logger.Debug().Str("record", record).Str("side", raw).Msg("unknown order side, using buy")
	}
	return side
}

// Symbol resolves a "base_quote" market id to its canonical symbol,
// synthesizing one from the id when the market is not in the catalog.
func (n *Normalizer) Symbol(id string) string {
	id = strings.ToLower(id)
	if n.lookup != nil {
		if m := n.lookup(id); m != nil {
			return m.Symbol
		}
	}
	base, quote, ok := strings.Cut(id, "_")
	if !ok {
		return strings.ToUpper(id)
	}
	return core.JoinSymbol(currencyCode(base), currencyCode(quote))
}

// NormalizeTicker converts a ticker entry. The legacy API keys tickers as
// "quote_base", the reverse of every other endpoint.
func (n *Normalizer) NormalizeTicker(key string, raw rawTicker, date number) core.Ticker {
	id := key
	if quote, base, ok := strings.Cut(key, "_"); ok {
		id = base + "_" + quote
	}
	return core.Ticker{
		Symbol:      n.Symbol(id),
		Timestamp:   secondsToTime(date),
		Last:        raw.Last.Dec(),
		High:        raw.High.Dec(),
		Low:         raw.Low.Dec(),
		Bid:         raw.Buy.Dec(),
		Ask:         raw.Sell.Dec(),
		Percentage:  raw.Change.Dec(),
		BaseVolume:  raw.BaseVol.Dec(),
		QuoteVolume: raw.Vol.Dec(),
	}
}

// NormalizeOrder converts an order record. A nil market resolves the symbol
// from the record itself.
func (n *Normalizer) NormalizeOrder(raw rawOrder, market *core.Market) core.Order {
	sideID, _, _ := strings.Cut(string(raw.Type), "_")
	side := n.side(sideID, "order")

	amount := raw.Amount.Dec()
	filled := raw.ExecutedAmount.Dec()
	average := raw.AvgPrice.Dec()

	order := core.Order{
		ID:          string(raw.OrderID),
		Side:        side,
		Type:        core.TypeLimit,
		Status:      parseOrderStatus(string(raw.Status)),
		Price:       raw.Price.Dec(),
		Average:     average,
		Amount:      amount,
		Filled:      filled,
		Remaining:   core.SubDecimal(amount, filled),
		Cost:        core.MulDecimal(filled, average),
		CreatedAt:   secondsToTime(raw.CreatedDate),
		LastTradeAt: secondsToTime(raw.FinishedDate),
	}
	switch {
	case market != nil:
		order.Symbol = market.Symbol
	case raw.Symbol != "":
		order.Symbol = n.Symbol(string(raw.Symbol))
	}
	return order
}

func parseOrderStatus(status string) core.OrderStatus {
	switch status {
	case "0", "1":
		return core.StatusOpen
	case "2":
		return core.StatusClosed
	case "3", "4":
		return core.StatusCanceled
	default:
		return core.OrderStatus(status)
	}
}

// NormalizeKline reorders a [ts, volume, close, high, low, open] row.
func (n *Normalizer) NormalizeKline(row []number, symbol string) (core.Kline, error) {
	if len(row) < 6 {
		return core.Kline{}, fmt.Errorf("kline row has %d fields, want 6", len(row))
	}
	return core.Kline{
		Symbol:   symbol,
		OpenTime: secondsToTime(row[0]),
		Volume:   row[1].Dec(),
		Close:    row[2].Dec(),
		High:     row[3].Dec(),
		Low:      row[4].Dec(),
		Open:     row[5].Dec(),
	}, nil
}

// NormalizeOrderBook converts depth levels, dropping malformed ones, and
// sorts bids descending and asks ascending.
func (n *Normalizer) NormalizeOrderBook(raw orderBookResponse, symbol string) core.OrderBook {
	book := core.OrderBook{
		Symbol:    symbol,
		Bids:      levels(raw.Bids),
		Asks:      levels(raw.Asks),
		Timestamp: secondsToTime(raw.Date),
	}
	slices.SortStableFunc(book.Bids, func(a, b core.OrderBookLevel) int {
		return b.Price.Cmp(&a.Price)
	})
	slices.SortStableFunc(book.Asks, func(a, b core.OrderBookLevel) int {
		return a.Price.Cmp(&b.Price)
	})
	return book
}

func levels(rows [][]number) []core.OrderBookLevel {
	out := make([]core.OrderBookLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 || row[0].d == nil || row[1].d == nil {
			continue
		}
		out = append(out, core.OrderBookLevel{Price: *row[0].d, Quantity: *row[1].d})
	}
	return out
}

func (n *Normalizer) NormalizeTrade(raw rawTrade, symbol string) core.Trade {
	side := n.side(string(raw.Type), "trade")
	price, amount := raw.Price.Dec(), raw.Amount.Dec()
	return core.Trade{
		ID:        string(raw.ID),
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Amount:    amount,
		Cost:      core.MulDecimal(price, amount),
		Timestamp: secondsToTime(raw.Date),
	}
}

func (n *Normalizer) NormalizeMyTrade(raw rawMyTrade, market *core.Market) core.Trade {
	side := n.side(string(raw.Side), "my_trade")
	price, amount := raw.Price.Dec(), raw.Amount.Dec()
	trade := core.Trade{
		ID:           string(raw.ID),
		OrderID:      string(raw.OrderID),
		Side:         side,
		TakerOrMaker: takerOrMaker(string(raw.IsMaker)),
		Price:        price,
		Amount:       amount,
		Cost:         core.MulDecimal(price, amount),
		Fee:          raw.Fee.Dec(),
		Timestamp:    secondsToTime(raw.Timestamp),
	}
	if raw.FeeCurrency != "" {
		trade.FeeAsset = currencyCode(string(raw.FeeCurrency))
	}
	switch {
	case market != nil:
		trade.Symbol = market.Symbol
	case raw.Symbol != "":
		trade.Symbol = n.Symbol(string(raw.Symbol))
	}
	return trade
}

func takerOrMaker(isMaker string) string {
	switch isMaker {
	case "true", "1":
		return "maker"
	case "false", "0":
		return "taker"
	}
	return ""
}

// NormalizeBalances converts asset records; used is total minus free.
func (n *Normalizer) NormalizeBalances(list []rawBalance) []core.Balance {
	balances := make([]core.Balance, 0, len(list))
	for _, raw := range list {
		free, total := raw.Free.Dec(), raw.Total.Dec()
		balances = append(balances, core.Balance{
			Asset: currencyCode(string(raw.Currency)),
			Free:  free,
			Used:  core.SubDecimal(total, free),
			Total: total,
		})
	}
	return balances
}

// NormalizeMarket converts an aggregate listing record. The id is split on
// the first underscore.
func (n *Normalizer) NormalizeMarket(info json.RawMessage) (core.Market, error) {
	var raw rawMarket
	if err := sonic.Unmarshal(info, &raw); err != nil {
		return core.Market{}, fmt.Errorf("decode market: %w", err)
	}
	id := strings.ToLower(string(raw.Market))
	baseID, quoteID, ok := strings.Cut(id, "_")
	if !ok {
		return core.Market{}, fmt.Errorf("malformed market id %q", raw.Market)
	}
	pricePrecision := raw.PricePrecision.Int()
	return core.Market{
		ID:      id,
		Symbol:  core.JoinSymbol(currencyCode(baseID), currencyCode(quoteID)),
		Base:    currencyCode(baseID),
		Quote:   currencyCode(quoteID),
		BaseID:  baseID,
		QuoteID: quoteID,
		Type:    core.MarketTypeSpot,
		Precision: core.MarketPrecision{
			Amount: raw.VolumePrecision.Int(),
			Price:  pricePrecision,
		},
		Limits: core.MarketLimits{
			Amount: core.MinMax{Min: raw.MinVolume.Dec()},
			Price:  core.MinMax{Min: minPrice(pricePrecision)},
			Cost:   core.MinMax{Min: raw.MinAmount.Dec()},
		},
		Info: info,
	}, nil
}

// NormalizeSymbol converts a per-type listing record. The record's status
// is not a reliable trading state, so Active stays nil.
func (n *Normalizer) NormalizeSymbol(info json.RawMessage, mt core.MarketType) (core.Market, error) {
	var raw rawSymbol
	if err := sonic.Unmarshal(info, &raw); err != nil {
		return core.Market{}, fmt.Errorf("decode symbol: %w", err)
	}
	baseID := strings.ToLower(string(raw.BaseAsset))
	quoteID := strings.ToLower(string(raw.QuoteAsset))
	id := strings.ToLower(string(raw.Symbol))
	if id == "" {
		id = baseID + "_" + quoteID
	}
	if baseID == "" || quoteID == "" {
		var ok bool
		if baseID, quoteID, ok = strings.Cut(id, "_"); !ok {
			return core.Market{}, fmt.Errorf("malformed symbol %q", raw.Symbol)
		}
	}
	pricePrecision := raw.PricePrecision.Int()
	return core.Market{
		ID:      id,
		Symbol:  core.JoinSymbol(currencyCode(baseID), currencyCode(quoteID)),
		Base:    currencyCode(baseID),
		Quote:   currencyCode(quoteID),
		BaseID:  baseID,
		QuoteID: quoteID,
		Type:    mt,
		Precision: core.MarketPrecision{
			Amount: raw.AmountPrecision.Int(),
			Price:  pricePrecision,
		},
		Limits: core.MarketLimits{
			Amount: core.MinMax{Min: raw.MinimumAmount.Dec()},
			Price:  core.MinMax{Min: minPrice(pricePrecision)},
			Cost:   core.MinMax{Min: raw.MinimumValue.Dec()},
		},
		Info: info,
	}, nil
}

func minPrice(precision *int) *apd.Decimal {
	if precision == nil {
		return nil
	}
	return core.PowTen(-*precision)
}
