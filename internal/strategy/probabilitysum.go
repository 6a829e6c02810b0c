package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// ProbabilitySumStrategy signals on a single venue when the best asks of
// a binary market's two outcomes sum to less than 1 minus a margin,
// meaning both sides could be bought for less than the guaranteed $1
// payout. This is the strategy-level lookout; the Arbitrage Detector
// performs the authoritative, fee-aware, multi-leg version of the same
// check before any order is placed.
type ProbabilitySumStrategy struct {
	base
	minMarginBps decimal.Decimal
}

// NewProbabilitySumStrategy constructs a ProbabilitySumStrategy;
// minMarginBps defaults to 50 bps (0.5%).
func NewProbabilitySumStrategy(cfg Config) *ProbabilitySumStrategy {
	min := cfg.ProbabilitySumMinBps
	if min.IsZero() {
		min = decimal.NewFromInt(50)
	}
	return &ProbabilitySumStrategy{base: newBase(), minMarginBps: min}
}

func (s *ProbabilitySumStrategy) Name() types.SignalType { return types.SignalTypeProbabilitySum }

func (s *ProbabilitySumStrategy) Analyze(v MarketView) (*types.Signal, error) {
	if v.OtherOutcome == nil || v.Outcome.BestAsk.IsZero() || v.OtherOutcome.BestAsk.IsZero() {
		return nil, nil
	}

	sum := v.Outcome.BestAsk.Add(v.OtherOutcome.BestAsk)
	one := decimal.NewFromInt(1)
	if sum.GreaterThanOrEqual(one) {
		return nil, nil
	}

	marginBps := one.Sub(sum).Mul(decimal.NewFromInt(10000))
	if marginBps.LessThan(s.minMarginBps) {
		return nil, nil
	}

	confidence := decimal.Min(marginBps.Div(s.minMarginBps.Mul(decimal.NewFromInt(2))), decimal.NewFromInt(1))
	sig := types.Signal{
		Type:        s.Name(),
		Platform:    v.Market.Platform,
		MarketID:    v.Market.ID,
		OutcomeID:   v.Outcome.ID,
		Side:        types.OrderSideBuy,
		Confidence:  confidence,
		TargetPrice: v.Outcome.BestAsk,
		Reason:      "outcome asks sum below $1",
		GeneratedAt: v.Timestamp,
		ExpiresAt:   v.Timestamp.Add(30 * time.Second),
	}
	s.setSignal(sig)
	return &sig, nil
}
