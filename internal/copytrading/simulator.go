package copytrading

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// CopySimulator tracks the positions opened on behalf of copied traders
// and their P&L, independent of whether the underlying order was routed
// live or through the paper simulator.
type CopySimulator struct {
	logger *zap.Logger
	clock  clock.Clock

	mu        sync.RWMutex
	positions map[string]types.CopyPosition // keyed by ID
}

// NewCopySimulator constructs a CopySimulator.
func NewCopySimulator(logger *zap.Logger, clk clock.Clock) *CopySimulator {
	return &CopySimulator{
		logger:    logger.Named("copy-simulator"),
		clock:     clk,
		positions: make(map[string]types.CopyPosition),
	}
}

// Open records a new copy position mirroring a leader trade.
func (s *CopySimulator) Open(trader string, platform types.Platform, marketID, outcomeID string, side types.OrderSide, size, entryPrice decimal.Decimal) types.CopyPosition {
	pos := types.CopyPosition{
		ID: uuid.NewString(), Trader: trader, Platform: platform,
		MarketID: marketID, OutcomeID: outcomeID, Side: side,
		Size: size, EntryPrice: entryPrice, OpenedAt: s.clock.Now(),
	}
	s.mu.Lock()
	s.positions[pos.ID] = pos
	s.mu.Unlock()
	return pos
}

// Close realizes P&L at exitPrice and marks the position closed.
func (s *CopySimulator) Close(id string, exitPrice decimal.Decimal) (types.CopyPosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[id]
	if !ok || pos.ClosedAt != nil {
		return types.CopyPosition{}, false
	}

	sign := decimal.NewFromInt(1)
	if pos.Side == types.OrderSideSell {
		sign = decimal.NewFromInt(-1)
	}
	pos.RealizedPnL = exitPrice.Sub(pos.EntryPrice).Mul(pos.Size).Mul(sign)
	now := s.clock.Now()
	pos.ClosedAt = &now
	s.positions[id] = pos
	return pos, true
}

// OpenPositions returns every currently open copy position.
func (s *CopySimulator) OpenPositions() []types.CopyPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.CopyPosition, 0)
	for _, p := range s.positions {
		if p.ClosedAt == nil {
			out = append(out, p)
		}
	}
	return out
}

// ForTrader returns every position (open or closed) opened for trader.
func (s *CopySimulator) ForTrader(trader string) []types.CopyPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.CopyPosition, 0)
	for _, p := range s.positions {
		if p.Trader == trader {
			out = append(out, p)
		}
	}
	return out
}
