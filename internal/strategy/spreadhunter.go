package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
	"github.com/atlas-desktop/prediction-engine/pkg/utils"
)

// SpreadHunterStrategy looks for abnormally wide bid/ask spreads and
// signals a passive buy one tick above the best bid, aiming to capture
// the spread as a maker rather than crossing it.
type SpreadHunterStrategy struct {
	base
	minSpreadBps decimal.Decimal
}

// NewSpreadHunterStrategy constructs a SpreadHunterStrategy; minSpreadBps
// defaults to 150 bps (1.5%).
func NewSpreadHunterStrategy(cfg Config) *SpreadHunterStrategy {
	min := cfg.SpreadHunterMinBps
	if min.IsZero() {
		min = decimal.NewFromInt(150)
	}
	return &SpreadHunterStrategy{base: newBase(), minSpreadBps: min}
}

func (s *SpreadHunterStrategy) Name() types.SignalType { return types.SignalTypeSpreadHunter }

func (s *SpreadHunterStrategy) Analyze(v MarketView) (*types.Signal, error) {
	if !v.HasBook {
		return nil, nil
	}
	bid := v.Book.BestBid()
	ask := v.Book.BestAsk()
	if bid.Price.IsZero() || ask.Price.IsZero() {
		return nil, nil
	}

	spreadBps := utils.SpreadBps(bid.Price, ask.Price)
	if spreadBps.LessThan(s.minSpreadBps) {
		return nil, nil
	}

	tick := v.Market.TickSize
	if tick.IsZero() {
		tick = decimal.NewFromFloat(0.01)
	}
	targetPrice := bid.Price.Add(tick)

	confidence := decimal.Min(spreadBps.Div(s.minSpreadBps.Mul(decimal.NewFromInt(2))), decimal.NewFromInt(1))
	sig := types.Signal{
		Type:        s.Name(),
		Platform:    v.Market.Platform,
		MarketID:    v.Market.ID,
		OutcomeID:   v.Outcome.ID,
		Side:        types.OrderSideBuy,
		Confidence:  confidence,
		TargetPrice: targetPrice,
		Reason:      "wide spread maker capture",
		GeneratedAt: v.Timestamp,
		ExpiresAt:   v.Timestamp.Add(1 * time.Minute),
	}
	s.setSignal(sig)
	return &sig, nil
}
