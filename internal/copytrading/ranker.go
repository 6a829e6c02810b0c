package copytrading

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
	"github.com/atlas-desktop/prediction-engine/pkg/utils"
)

// weights for the composite trader score, summing to 1.0.
var (
	weightSharpe       = decimal.NewFromFloat(0.35)
	weightWinRate      = decimal.NewFromFloat(0.25)
	weightProfitFactor = decimal.NewFromFloat(0.25)
	weightDrawdown     = decimal.NewFromFloat(0.15) // inverted: lower drawdown scores higher
)

// Ranker computes a composite score for a trader from its historical
// P&L series, the same statistical building blocks the engine's
// portfolio/backtest reporting uses, reused here to rank live wallets
// instead of backtest runs.
type Ranker struct {
	logger *zap.Logger

	mu      sync.RWMutex
	history map[string][]decimal.Decimal // address -> realized P&L series
}

// NewRanker constructs a Ranker.
func NewRanker(logger *zap.Logger) *Ranker {
	return &Ranker{
		logger:  logger.Named("trader-ranker"),
		history: make(map[string][]decimal.Decimal),
	}
}

// RecordPnL appends a realized P&L observation for a trader.
func (r *Ranker) RecordPnL(address string, pnl decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[address] = append(r.history[address], pnl)
	if len(r.history[address]) > 2000 {
		r.history[address] = r.history[address][len(r.history[address])-2000:]
	}
}

// Score computes a composite 0..1-ish score for a trader from its
// recorded P&L history. Returns a zero score with ok=false if there is
// not yet enough history to rank.
func (r *Ranker) Score(address string) (decimal.Decimal, types.TrackedTrader, bool) {
	r.mu.RLock()
	pnls := append([]decimal.Decimal(nil), r.history[address]...)
	r.mu.RUnlock()

	if len(pnls) < 5 {
		return decimal.Zero, types.TrackedTrader{}, false
	}

	equity := make([]decimal.Decimal, 0, len(pnls)+1)
	running := decimal.Zero
	equity = append(equity, running)
	for _, p := range pnls {
		running = running.Add(p)
		equity = append(equity, running)
	}

	sharpe := utils.CalculateSharpeRatio(pnls, decimal.Zero, 365)
	winRate := utils.CalculateWinRate(pnls)
	profitFactor := utils.CalculateProfitFactor(pnls)
	drawdown := utils.CalculateMaxDrawdown(equity)

	// normalize sharpe into a roughly 0..1 band via a soft clamp, since raw
	// Sharpe is unbounded; winRate and drawdown are already 0..1 fractions.
	normalizedSharpe := decimal.Max(decimal.Zero, decimal.Min(decimal.NewFromInt(1), sharpe.Div(decimal.NewFromInt(3))))
	normalizedPF := decimal.Max(decimal.Zero, decimal.Min(decimal.NewFromInt(1), profitFactor.Div(decimal.NewFromInt(3))))
	drawdownScore := decimal.NewFromInt(1).Sub(decimal.Min(decimal.NewFromInt(1), drawdown))

	score := normalizedSharpe.Mul(weightSharpe).
		Add(winRate.Mul(weightWinRate)).
		Add(normalizedPF.Mul(weightProfitFactor)).
		Add(drawdownScore.Mul(weightDrawdown))

	trader := types.TrackedTrader{
		Address:      address,
		Sharpe:       sharpe,
		WinRate:      winRate,
		ProfitFactor: profitFactor,
		MaxDrawdown:  drawdown,
		Score:        score,
		TradeCount:   len(pnls),
	}
	return score, trader, true
}

// Rank returns every address with enough history to be scored, sorted
// by descending score.
func (r *Ranker) Rank() []types.TrackedTrader {
	r.mu.RLock()
	addresses := make([]string, 0, len(r.history))
	for addr := range r.history {
		addresses = append(addresses, addr)
	}
	r.mu.RUnlock()

	out := make([]types.TrackedTrader, 0, len(addresses))
	for _, addr := range addresses {
		if _, trader, ok := r.Score(addr); ok {
			out = append(out, trader)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score.GreaterThan(out[j].Score) })
	return out
}
