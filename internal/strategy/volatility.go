package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// VolatilityCaptureStrategy fades sharp volatility spikes: when recent
// return volatility exceeds minSigma and price has moved away from its
// SMA20, it signals a trade back toward the mean.
type VolatilityCaptureStrategy struct {
	base
	minSigma decimal.Decimal
}

// NewVolatilityCaptureStrategy constructs a VolatilityCaptureStrategy;
// minSigma defaults to 0.05 (5% return stddev).
func NewVolatilityCaptureStrategy(cfg Config) *VolatilityCaptureStrategy {
	min := cfg.VolatilityMinSigma
	if min.IsZero() {
		min = decimal.NewFromFloat(0.05)
	}
	return &VolatilityCaptureStrategy{base: newBase(), minSigma: min}
}

func (s *VolatilityCaptureStrategy) Name() types.SignalType { return types.SignalTypeVolatilityCapture }

func (s *VolatilityCaptureStrategy) Analyze(v MarketView) (*types.Signal, error) {
	if !v.HasStats || v.Stats.Volatility.LessThan(s.minSigma) {
		return nil, nil
	}
	if v.Stats.SMA20.IsZero() || v.Outcome.LastPrice.IsZero() {
		return nil, nil
	}

	deviation := v.Outcome.LastPrice.Sub(v.Stats.SMA20)
	if deviation.IsZero() {
		return nil, nil
	}

	side := types.OrderSideSell
	if deviation.IsNegative() {
		side = types.OrderSideBuy
	}

	confidence := decimal.Min(v.Stats.Volatility.Div(s.minSigma.Mul(decimal.NewFromInt(3))), decimal.NewFromInt(1))
	sig := types.Signal{
		Type:        s.Name(),
		Platform:    v.Market.Platform,
		MarketID:    v.Market.ID,
		OutcomeID:   v.Outcome.ID,
		Side:        side,
		Confidence:  confidence,
		TargetPrice: v.Stats.SMA20,
		Reason:      "volatility spike mean reversion",
		GeneratedAt: v.Timestamp,
		ExpiresAt:   v.Timestamp.Add(3 * time.Minute),
	}
	s.setSignal(sig)
	return &sig, nil
}
