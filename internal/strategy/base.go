package strategy

import (
	"sync"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// base provides the common active-signal bookkeeping every concrete
// strategy embeds, the same way the teacher's BaseStrategy centralizes
// shared state for its OHLCV-bar strategies.
type base struct {
	mu     sync.RWMutex
	active map[string]types.Signal // keyed by marketId:outcomeId
}

func newBase() base {
	return base{active: make(map[string]types.Signal)}
}

func activeKey(marketID, outcomeID string) string {
	return marketID + ":" + outcomeID
}

func (b *base) setSignal(sig types.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active[activeKey(sig.MarketID, sig.OutcomeID)] = sig
}

func (b *base) ClearSignal(marketID, outcomeID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.active, activeKey(marketID, outcomeID))
}

func (b *base) ActiveSignals() []types.Signal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Signal, 0, len(b.active))
	for _, s := range b.active {
		out = append(out, s)
	}
	return out
}
