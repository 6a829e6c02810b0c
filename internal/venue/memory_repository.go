package venue

import (
	"sync"
	"time"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// InMemoryRepository is a mutex-protected, map-of-maps backed Repository
// used by the engine's default wiring and by tests. A persisted backing
// store is out of scope; this keeps the engine runnable without one.
type InMemoryRepository struct {
	mu sync.RWMutex

	markets      map[string]types.NormalizedMarket
	orders       map[string]types.Order
	trades       map[string][]types.Trade // keyed by orderID
	positions    map[string]types.Position // keyed by platform:marketId:outcomeId
	marketPairs  []types.MarketPair
	opportunities []types.ArbitrageOpportunity
	traders      map[string]types.TrackedTrader
	copyPositions map[string][]types.CopyPosition // keyed by trader
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		markets:       make(map[string]types.NormalizedMarket),
		orders:        make(map[string]types.Order),
		trades:        make(map[string][]types.Trade),
		positions:     make(map[string]types.Position),
		traders:       make(map[string]types.TrackedTrader),
		copyPositions: make(map[string][]types.CopyPosition),
	}
}

func positionKey(platform types.Platform, marketID, outcomeID string) string {
	return string(platform) + ":" + marketID + ":" + outcomeID
}

func (r *InMemoryRepository) SaveMarket(m types.NormalizedMarket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markets[m.ID] = m
}

func (r *InMemoryRepository) GetMarket(id string) (types.NormalizedMarket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[id]
	return m, ok
}

func (r *InMemoryRepository) ListMarkets(platform types.Platform) []types.NormalizedMarket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.NormalizedMarket, 0, len(r.markets))
	for _, m := range r.markets {
		if platform == "" || m.Platform == platform {
			out = append(out, m)
		}
	}
	return out
}

func (r *InMemoryRepository) SaveOrder(o types.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
}

func (r *InMemoryRepository) GetOrder(id string) (types.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	return o, ok
}

func (r *InMemoryRepository) ListOpenOrders() []types.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Order, 0)
	for _, o := range r.orders {
		switch o.Status {
		case types.OrderStatusOpen, types.OrderStatusPartial, types.OrderStatusPending:
			out = append(out, o)
		}
	}
	return out
}

func (r *InMemoryRepository) SaveTrade(t types.Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades[t.OrderID] = append(r.trades[t.OrderID], t)
}

func (r *InMemoryRepository) ListTrades(orderID string) []types.Trade {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.Trade(nil), r.trades[orderID]...)
}

func (r *InMemoryRepository) SavePosition(p types.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[positionKey(p.Platform, p.MarketID, p.OutcomeID)] = p
}

func (r *InMemoryRepository) GetPosition(platform types.Platform, marketID, outcomeID string) (types.Position, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.positions[positionKey(platform, marketID, outcomeID)]
	return p, ok
}

func (r *InMemoryRepository) ListPositions() []types.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p)
	}
	return out
}

func (r *InMemoryRepository) SaveMarketPair(p types.MarketPair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.marketPairs {
		if existing.ID == p.ID {
			r.marketPairs[i] = p
			return
		}
	}
	r.marketPairs = append(r.marketPairs, p)
}

func (r *InMemoryRepository) ListMarketPairs() []types.MarketPair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.MarketPair(nil), r.marketPairs...)
}

func (r *InMemoryRepository) SaveOpportunity(o types.ArbitrageOpportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opportunities = append(r.opportunities, o)
	// bound unbounded growth: keep the most recent 10000
	if len(r.opportunities) > 10000 {
		r.opportunities = r.opportunities[len(r.opportunities)-10000:]
	}
}

func (r *InMemoryRepository) ListOpportunities(since time.Time) []types.ArbitrageOpportunity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ArbitrageOpportunity, 0)
	for _, o := range r.opportunities {
		if o.DetectedAt.After(since) {
			out = append(out, o)
		}
	}
	return out
}

func (r *InMemoryRepository) SaveTrackedTrader(t types.TrackedTrader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traders[t.Address] = t
}

func (r *InMemoryRepository) GetTrackedTrader(address string) (types.TrackedTrader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.traders[address]
	return t, ok
}

func (r *InMemoryRepository) ListTrackedTraders() []types.TrackedTrader {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.TrackedTrader, 0, len(r.traders))
	for _, t := range r.traders {
		out = append(out, t)
	}
	return out
}

func (r *InMemoryRepository) SaveCopyPosition(p types.CopyPosition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.copyPositions[p.Trader]
	for i, existing := range list {
		if existing.ID == p.ID {
			list[i] = p
			r.copyPositions[p.Trader] = list
			return
		}
	}
	r.copyPositions[p.Trader] = append(list, p)
}

func (r *InMemoryRepository) ListCopyPositions(trader string) []types.CopyPosition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.CopyPosition(nil), r.copyPositions[trader]...)
}
