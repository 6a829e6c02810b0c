package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// MomentumStrategy trades in the direction of a sustained price move,
// generalizing the teacher's OHLCV-bar momentum strategy to the engine's
// price-point driven outcomes.
type MomentumStrategy struct {
	base
	lookback  int
	threshold decimal.Decimal // percent change required to signal, e.g. 2.0 for 2%
}

// NewMomentumStrategy constructs a MomentumStrategy, defaulting lookback to
// 14 samples and threshold to 2% when unset.
func NewMomentumStrategy(cfg Config) *MomentumStrategy {
	lookback := cfg.MomentumLookback
	if lookback <= 0 {
		lookback = 14
	}
	threshold := cfg.MomentumThreshold
	if threshold.IsZero() {
		threshold = decimal.NewFromFloat(2.0)
	}
	return &MomentumStrategy{base: newBase(), lookback: lookback, threshold: threshold}
}

func (s *MomentumStrategy) Name() types.SignalType { return types.SignalTypeMomentum }

func (s *MomentumStrategy) Analyze(v MarketView) (*types.Signal, error) {
	if !v.HasStats || v.Stats.SampleCount < s.lookback {
		return nil, nil
	}
	change := v.Stats.ChangePercent
	if change.Abs().LessThan(s.threshold) {
		return nil, nil
	}

	side := types.OrderSideBuy
	if change.IsNegative() {
		side = types.OrderSideSell
	}

	confidence := decimal.Min(change.Abs().Div(s.threshold.Mul(decimal.NewFromInt(3))), decimal.NewFromInt(1))
	sig := types.Signal{
		ID:          "",
		Type:        s.Name(),
		Platform:    v.Market.Platform,
		MarketID:    v.Market.ID,
		OutcomeID:   v.Outcome.ID,
		Side:        side,
		Confidence:  confidence,
		TargetPrice: v.Outcome.LastPrice,
		Reason:      "momentum continuation",
		GeneratedAt: v.Timestamp,
		ExpiresAt:   v.Timestamp.Add(5 * time.Minute),
	}
	s.setSignal(sig)
	return &sig, nil
}
