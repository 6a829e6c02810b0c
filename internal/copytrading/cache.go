// Package copytrading tracks external traders, ranks them, and mirrors
// their trades as sized copy-positions.
package copytrading

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// entry is a cached trader with its expiry.
type entry struct {
	trader    types.TrackedTrader
	expiresAt time.Time
}

// TraderCache is a TTL-expiring, capacity-bounded cache of tracked
// traders keyed by address. When full, the lowest-scored trader is
// evicted to make room for a new one.
type TraderCache struct {
	logger   *zap.Logger
	clock    clock.Clock
	ttl      time.Duration
	capacity int

	mu      sync.RWMutex
	entries map[string]entry
}

// NewTraderCache constructs a TraderCache.
func NewTraderCache(logger *zap.Logger, clk clock.Clock, ttl time.Duration, capacity int) *TraderCache {
	if capacity <= 0 {
		capacity = 500
	}
	return &TraderCache{
		logger:   logger.Named("trader-cache"),
		clock:    clk,
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]entry),
	}
}

// Put inserts or refreshes a trader, evicting the lowest-scored entry if
// the cache is at capacity and the address is new.
func (c *TraderCache) Put(t types.TrackedTrader) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[t.Address]; !exists && len(c.entries) >= c.capacity {
		c.evictLowestScored()
	}
	c.entries[t.Address] = entry{trader: t, expiresAt: now.Add(c.ttl)}
}

func (c *TraderCache) evictLowestScored() {
	var worstAddr string
	worstScore := types.TrackedTrader{}.Score // zero value
	first := true
	for addr, e := range c.entries {
		if first || e.trader.Score.LessThan(worstScore) {
			worstAddr = addr
			worstScore = e.trader.Score
			first = false
		}
	}
	if worstAddr != "" {
		delete(c.entries, worstAddr)
	}
}

// Get returns a trader by address if present and not expired.
func (c *TraderCache) Get(address string) (types.TrackedTrader, bool) {
	now := c.clock.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[address]
	if !ok || now.After(e.expiresAt) {
		return types.TrackedTrader{}, false
	}
	return e.trader, true
}

// All returns every non-expired trader in the cache.
func (c *TraderCache) All() []types.TrackedTrader {
	now := c.clock.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.TrackedTrader, 0, len(c.entries))
	for _, e := range c.entries {
		if !now.After(e.expiresAt) {
			out = append(out, e.trader)
		}
	}
	return out
}

// Sweep removes every expired entry, returning the count removed.
func (c *TraderCache) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for addr, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, addr)
			removed++
		}
	}
	return removed
}
