package copytrading

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/internal/venue"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

var tradesObservedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "copytrading_trades_observed_total",
	Help: "Detected trades observed from tracked wallets, by platform.",
}, []string{"platform"})

// Poller drains each venue client's trade stream, filters to addresses
// under active tracking, rate-limits how fast it hands trades to the
// aggregator, and periodically flushes the aggregator and sweeps the
// trader cache. The rate limit is one budget shared by all tracked
// wallets: a trade over the limit is dropped whichever wallet sent it.
type Poller struct {
	logger     *zap.Logger
	clock      clock.Clock
	cache      *TraderCache
	aggregator *Aggregator
	limiter    *rate.Limiter

	mu      sync.RWMutex
	tracked map[string]bool // addresses under active tracking
}

// NewPoller constructs a Poller. eventsPerSecond bounds how many
// detected trades are accepted across all tracked wallets per second.
func NewPoller(logger *zap.Logger, clk clock.Clock, cache *TraderCache, agg *Aggregator, eventsPerSecond float64) *Poller {
	if eventsPerSecond <= 0 {
		eventsPerSecond = 50
	}
	return &Poller{
		logger:     logger.Named("copy-poller"),
		clock:      clk,
		cache:      cache,
		aggregator: agg,
		limiter:    rate.NewLimiter(rate.Limit(eventsPerSecond), int(eventsPerSecond)),
		tracked:    make(map[string]bool),
	}
}

// Track adds an address to the set the poller accepts trades for.
func (p *Poller) Track(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracked[address] = true
}

// Untrack removes an address from tracking.
func (p *Poller) Untrack(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tracked, address)
}

func (p *Poller) isTracked(address string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tracked[address]
}

// Run drains client's detected-trade stream until ctx is cancelled,
// folding accepted trades into the shared aggregator.
func (p *Poller) Run(ctx context.Context, client venue.Client) error {
	stream, err := client.SubscribeTrades(ctx)
	if err != nil {
		return err
	}
	platform := string(client.Platform())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case trade, ok := <-stream:
			if !ok {
				return nil
			}
			if !p.isTracked(trade.Trader) {
				continue
			}
			if !p.limiter.Allow() {
				p.logger.Warn("dropping detected trade, rate limit exceeded", zap.String("trader", trade.Trader))
				continue
			}
			tradesObservedTotal.WithLabelValues(platform).Inc()
			p.aggregator.Add(trade)
		}
	}
}

// FlushLoop periodically flushes the aggregator and feeds the resulting
// AggregatedTrades to onTrade, and sweeps expired cache entries, until
// ctx is cancelled.
func (p *Poller) FlushLoop(ctx context.Context, interval time.Duration, onTrade func(types.AggregatedTrade)) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, t := range p.aggregator.Flush() {
				onTrade(t)
			}
			if removed := p.cache.Sweep(); removed > 0 {
				p.logger.Debug("swept expired trader cache entries", zap.Int("count", removed))
			}
		}
	}
}
