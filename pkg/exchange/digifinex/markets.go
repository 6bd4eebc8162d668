package digifinex

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"unifex/pkg/core"
)

// Catalog sources selectable through core.Config.MarketsEndpoint.
const (
	EndpointSymbols = "symbols"
	EndpointMarkets = "markets"
)

// catalog is the market index. It is replaced wholesale on reload and never
// mutated in place, so readers can hand out the stored pointers.
type catalog struct {
	loadMu sync.Mutex

	mu       sync.RWMutex
	loaded   bool
	byID     map[string]*core.Market
	bySymbol map[string]*core.Market
}

func newCatalog() *catalog {
	return &catalog{
		byID:     make(map[string]*core.Market),
		bySymbol: make(map[string]*core.Market),
	}
}

func (c *catalog) isLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *catalog) replace(markets []core.Market) {
	byID := make(map[string]*core.Market, len(markets))
	bySymbol := make(map[string]*core.Market, len(markets))
	for i := range markets {
		m := &markets[i]
		byID[m.ID] = m
		bySymbol[m.Symbol] = m
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = byID
	c.bySymbol = bySymbol
	c.loaded = true
}

// lookup returns the market with the given id, or nil.
func (c *catalog) lookup(id string) *core.Market {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byID[strings.ToLower(id)]
}

func (c *catalog) market(symbol string) (*core.Market, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.bySymbol[symbol]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrMarketNotFound, symbol)
}

func (c *catalog) snapshot() map[string]*core.Market {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.bySymbol)
}

// LoadMarkets returns the market index keyed by symbol. The catalog is
// fetched once and kept for the client's lifetime; reload forces a refetch.
// Concurrent loads are serialized.
func (e *Exchange) LoadMarkets(ctx context.Context, reload bool) (map[string]*core.Market, error) {
	e.markets.loadMu.Lock()
	defer e.markets.loadMu.Unlock()

	if !reload && e.markets.isLoaded() {
		return e.markets.snapshot(), nil
	}

	markets, err := e.fetchMarkets(ctx)
	if err != nil {
		return nil, err
	}
	e.markets.replace(markets)

	e.logger.Debug().Int("count", len(markets)).Str("source", e.marketsEndpoint()).Msg("markets loaded")
	return e.markets.snapshot(), nil
}

func (e *Exchange) marketsEndpoint() string {
	if e.config.MarketsEndpoint == EndpointMarkets {
		return EndpointMarkets
	}
	return EndpointSymbols
}

func (e *Exchange) fetchMarkets(ctx context.Context) ([]core.Market, error) {
	if e.marketsEndpoint() == EndpointMarkets {
		body, err := e.session.Do(ctx, core.OpGetMarkets, nil)
		if err != nil {
			return nil, err
		}
		resp, err := decode[marketsResponse](body, "markets")
		if err != nil {
			return nil, err
		}
		markets := make([]core.Market, 0, len(resp.Data))
		for _, info := range resp.Data {
			m, err := e.normalizer.NormalizeMarket(info)
			if err != nil {
				return nil, err
			}
			markets = append(markets, m)
		}
		return markets, nil
	}

	mt := e.config.MarketType
	body, err := e.session.Do(ctx, core.OpGetSymbols, core.Params{"market": mt})
	if err != nil {
		return nil, err
	}
	resp, err := decode[symbolsResponse](body, "symbols")
	if err != nil {
		return nil, err
	}
	markets := make([]core.Market, 0, len(resp.SymbolList))
	for _, info := range resp.SymbolList {
		m, err := e.normalizer.NormalizeSymbol(info, mt)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// market loads the catalog if needed and resolves symbol.
func (e *Exchange) market(ctx context.Context, symbol string) (*core.Market, error) {
	if symbol == "" {
		return nil, core.ErrSymbolRequired
	}
	if _, err := e.LoadMarkets(ctx, false); err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}
	return e.markets.market(symbol)
}
