package copytrading

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
	"github.com/atlas-desktop/prediction-engine/pkg/utils"
)

// Aggregator merges DetectedTrades for the same trader/market/outcome/
// side observed within a short window into a single AggregatedTrade, so
// a leader's trade split across several on-chain transactions is copied
// once rather than once per fragment.
type Aggregator struct {
	logger *zap.Logger
	clock  clock.Clock
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*aggBucket
}

type aggBucket struct {
	trader, marketID, outcomeID string
	side                        types.OrderSide
	prices, sizes               []decimal.Decimal
	start                       time.Time
}

func bucketKey(trader, marketID, outcomeID string, side types.OrderSide) string {
	return trader + ":" + marketID + ":" + outcomeID + ":" + string(side)
}

// NewAggregator constructs an Aggregator.
func NewAggregator(logger *zap.Logger, clk clock.Clock, window time.Duration) *Aggregator {
	if window == 0 {
		window = 10 * time.Second
	}
	return &Aggregator{
		logger:  logger.Named("copy-aggregator"),
		clock:   clk,
		window:  window,
		buckets: make(map[string]*aggBucket),
	}
}

// Add records a detected trade into its trader/market/outcome/side
// bucket, starting a fresh bucket if none is open or the prior one's
// window has already elapsed. Call Flush to drain closed windows.
func (a *Aggregator) Add(t types.DetectedTrade) {
	key := bucketKey(t.Trader, t.MarketID, t.OutcomeID, t.Side)
	now := a.clock.Now()

	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buckets[key]
	if !ok || now.Sub(b.start) > a.window {
		b = &aggBucket{trader: t.Trader, marketID: t.MarketID, outcomeID: t.OutcomeID, side: t.Side, start: now}
		a.buckets[key] = b
	}
	b.prices = append(b.prices, t.Price)
	b.sizes = append(b.sizes, t.Size)
}

// Flush finalizes every bucket whose window has elapsed and returns the
// resulting AggregatedTrades.
func (a *Aggregator) Flush() []types.AggregatedTrade {
	now := a.clock.Now()
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]types.AggregatedTrade, 0)
	for key, b := range a.buckets {
		if now.Sub(b.start) < a.window {
			continue
		}
		total := decimal.Zero
		for _, s := range b.sizes {
			total = total.Add(s)
		}
		out = append(out, types.AggregatedTrade{
			Trader: b.trader, MarketID: b.marketID, OutcomeID: b.outcomeID, Side: b.side,
			TotalSize: total, VWAPPrice: utils.VWAP(b.prices, b.sizes), TradeCount: len(b.prices),
			WindowStart: b.start, WindowEnd: now,
		})
		delete(a.buckets, key)
	}
	return out
}
