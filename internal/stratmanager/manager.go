// Package stratmanager fans a market view out across the engine's active
// strategies, deduplicates and cools down repeated signals for the same
// market/outcome/strategy, and ranks the surviving candidates by
// confidence. It generalizes the teacher's weighted-source signal
// aggregator into a dedup/cooldown/ranking engine for discrete strategy
// outputs rather than continuous indicator blending.
package stratmanager

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/internal/strategy"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// Manager owns the set of active strategies and the signal cooldown.
type Manager struct {
	logger           *zap.Logger
	clock            clock.Clock
	cooldown         time.Duration
	maxConcurrent    int

	mu         sync.Mutex
	strategies []strategy.Strategy
	lastFired  map[string]time.Time // keyed by marketId:outcomeId:strategyType
}

// New constructs a Manager with the given active strategies and a
// per-market/outcome/strategy cooldown applied between repeated signals.
// maxConcurrent bounds how many signals Evaluate returns per call, ranked
// by confidence; zero or negative falls back to a default of 5.
func New(logger *zap.Logger, clk clock.Clock, cooldown time.Duration, strategies []strategy.Strategy, maxConcurrent int) *Manager {
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &Manager{
		logger:        logger.Named("strategy-manager"),
		clock:         clk,
		cooldown:      cooldown,
		maxConcurrent: maxConcurrent,
		strategies:    strategies,
		lastFired:     make(map[string]time.Time),
	}
}

func cooldownKey(marketID, outcomeID string, st types.SignalType) string {
	return marketID + ":" + outcomeID + ":" + string(st)
}

// Evaluate runs every active strategy against the view and returns the
// signals that survive deduplication and cooldown, ranked by descending
// confidence.
func (m *Manager) Evaluate(view strategy.MarketView) ([]types.Signal, error) {
	m.mu.Lock()
	strategies := append([]strategy.Strategy(nil), m.strategies...)
	m.mu.Unlock()

	now := m.clock.Now()
	signals := make([]types.Signal, 0, len(strategies))

	for _, s := range strategies {
		sig, err := s.Analyze(view)
		if err != nil {
			m.logger.Warn("strategy analyze failed",
				zap.String("strategy", string(s.Name())), zap.Error(err))
			continue
		}
		if sig == nil {
			continue
		}

		key := cooldownKey(sig.MarketID, sig.OutcomeID, sig.Type)
		m.mu.Lock()
		last, onCooldown := m.lastFired[key]
		if onCooldown && now.Sub(last) < m.cooldown {
			m.mu.Unlock()
			continue
		}
		m.lastFired[key] = now
		m.mu.Unlock()

		signals = append(signals, *sig)
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Confidence.GreaterThan(signals[j].Confidence)
	})

	if len(signals) > m.maxConcurrent {
		signals = signals[:m.maxConcurrent]
	}

	return signals, nil
}

// ActiveSignals returns every currently-active signal across all
// strategies, for the admin surface.
func (m *Manager) ActiveSignals() []types.Signal {
	m.mu.Lock()
	strategies := append([]strategy.Strategy(nil), m.strategies...)
	m.mu.Unlock()

	out := make([]types.Signal, 0)
	for _, s := range strategies {
		out = append(out, s.ActiveSignals()...)
	}
	return out
}

// ClearSignal propagates a clear (e.g. after a signal has been acted on or
// expired) to every strategy.
func (m *Manager) ClearSignal(marketID, outcomeID string) {
	m.mu.Lock()
	strategies := append([]strategy.Strategy(nil), m.strategies...)
	m.mu.Unlock()
	for _, s := range strategies {
		s.ClearSignal(marketID, outcomeID)
	}
}
