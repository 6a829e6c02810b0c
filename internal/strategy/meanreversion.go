package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// MeanReversionStrategy fades extremes in the RSI: oversold (RSI below
// 50-zThreshold*10) signals a buy expecting reversion up, overbought
// signals a sell.
type MeanReversionStrategy struct {
	base
	zThreshold decimal.Decimal
}

// NewMeanReversionStrategy constructs a MeanReversionStrategy. zThreshold
// defaults to 2.0, mapped onto RSI bands of (50-20, 50+20) = (30, 70).
func NewMeanReversionStrategy(cfg Config) *MeanReversionStrategy {
	z := cfg.MeanReversionZ
	if z.IsZero() {
		z = decimal.NewFromFloat(2.0)
	}
	return &MeanReversionStrategy{base: newBase(), zThreshold: z}
}

func (s *MeanReversionStrategy) Name() types.SignalType { return types.SignalTypeMeanReversion }

func (s *MeanReversionStrategy) Analyze(v MarketView) (*types.Signal, error) {
	if !v.HasStats || v.Stats.SampleCount < 14 {
		return nil, nil
	}
	band := s.zThreshold.Mul(decimal.NewFromInt(10))
	lower := decimal.NewFromInt(50).Sub(band)
	upper := decimal.NewFromInt(50).Add(band)

	var side types.OrderSide
	var reason string
	switch {
	case v.Stats.RSI14.LessThanOrEqual(lower):
		side = types.OrderSideBuy
		reason = "oversold RSI reversion"
	case v.Stats.RSI14.GreaterThanOrEqual(upper):
		side = types.OrderSideSell
		reason = "overbought RSI reversion"
	default:
		return nil, nil
	}

	distance := decimal.NewFromInt(50).Sub(v.Stats.RSI14).Abs()
	confidence := decimal.Min(distance.Div(decimal.NewFromInt(50)), decimal.NewFromInt(1))

	sig := types.Signal{
		Type:        s.Name(),
		Platform:    v.Market.Platform,
		MarketID:    v.Market.ID,
		OutcomeID:   v.Outcome.ID,
		Side:        side,
		Confidence:  confidence,
		TargetPrice: v.Stats.SMA20,
		Reason:      reason,
		GeneratedAt: v.Timestamp,
		ExpiresAt:   v.Timestamp.Add(5 * time.Minute),
	}
	s.setSignal(sig)
	return &sig, nil
}
