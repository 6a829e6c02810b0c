package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// EndgameStrategy trades markets approaching resolution whose price has
// already converged strongly toward one extreme, betting the market
// closes out at that extreme rather than reverting.
type EndgameStrategy struct {
	base
	window        time.Duration
	minConfidence decimal.Decimal // buy at price >= minConfidence, sell at price <= 1-minConfidence
}

// NewEndgameStrategy constructs an EndgameStrategy; window defaults to 24h
// before market close and minConfidence to 0.95 (price >= 0.95 or <= 0.05).
func NewEndgameStrategy(cfg Config) *EndgameStrategy {
	window := cfg.EndgameWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	conf := cfg.EndgameMinConfidence
	if conf.IsZero() {
		conf = decimal.NewFromFloat(0.95)
	}
	return &EndgameStrategy{base: newBase(), window: window, minConfidence: conf}
}

func (s *EndgameStrategy) Name() types.SignalType { return types.SignalTypeEndgame }

func (s *EndgameStrategy) Analyze(v MarketView) (*types.Signal, error) {
	if v.Market.EndDate.IsZero() {
		return nil, nil
	}
	until := v.Market.EndDate.Sub(v.Timestamp)
	if until <= 0 || until > s.window {
		return nil, nil
	}
	if v.Outcome.LastPrice.IsZero() {
		return nil, nil
	}

	lowBand := decimal.NewFromInt(1).Sub(s.minConfidence)
	var side types.OrderSide
	switch {
	case v.Outcome.LastPrice.GreaterThanOrEqual(s.minConfidence):
		side = types.OrderSideBuy
	case v.Outcome.LastPrice.LessThanOrEqual(lowBand):
		side = types.OrderSideSell
	default:
		return nil, nil
	}

	// confidence scales with how close to market close we are, within the window
	timeFactor := decimal.NewFromFloat(1).Sub(decimal.NewFromFloat(until.Seconds()).Div(decimal.NewFromFloat(s.window.Seconds())))
	confidence := decimal.Min(decimal.Max(timeFactor, decimal.NewFromFloat(0.5)), decimal.NewFromInt(1))

	sig := types.Signal{
		Type:        s.Name(),
		Platform:    v.Market.Platform,
		MarketID:    v.Market.ID,
		OutcomeID:   v.Outcome.ID,
		Side:        side,
		Confidence:  confidence,
		TargetPrice: v.Outcome.LastPrice,
		Reason:      "endgame convergence near resolution",
		GeneratedAt: v.Timestamp,
		ExpiresAt:   v.Market.EndDate,
	}
	s.setSignal(sig)
	return &sig, nil
}
