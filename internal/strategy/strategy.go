// Package strategy implements the engine's signal-generating strategies.
// Each strategy inspects a market's current order book and derived price
// statistics and optionally emits a Signal; strategies never place
// orders themselves, that is the Trading Engine's job once the Strategy
// Manager has deduplicated and ranked candidate signals.
package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// MarketView bundles everything a strategy needs to evaluate one outcome.
type MarketView struct {
	Market       types.NormalizedMarket
	Outcome      types.Outcome
	OtherOutcome *types.Outcome // the market's complementary binary outcome, if known
	Book         types.OrderBook
	Stats        types.PriceStats
	HasStats     bool
	HasBook      bool
	Timestamp    time.Time
}

// Strategy analyzes a market view and optionally returns a Signal.
type Strategy interface {
	Name() types.SignalType
	Analyze(view MarketView) (*types.Signal, error)
	ClearSignal(marketID, outcomeID string)
	ActiveSignals() []types.Signal
}

// Registry is a factory-map of named strategy constructors with
// register/create/list operations.
type Registry struct {
	factories map[types.SignalType]func(Config) Strategy
}

// NewRegistry constructs a Registry pre-populated with the seven built-in
// strategies.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[types.SignalType]func(Config) Strategy)}
	r.Register(types.SignalTypeMomentum, func(c Config) Strategy { return NewMomentumStrategy(c) })
	r.Register(types.SignalTypeMeanReversion, func(c Config) Strategy { return NewMeanReversionStrategy(c) })
	r.Register(types.SignalTypeOrderbookImbalance, func(c Config) Strategy { return NewImbalanceStrategy(c) })
	r.Register(types.SignalTypeSpreadHunter, func(c Config) Strategy { return NewSpreadHunterStrategy(c) })
	r.Register(types.SignalTypeVolatilityCapture, func(c Config) Strategy { return NewVolatilityCaptureStrategy(c) })
	r.Register(types.SignalTypeProbabilitySum, func(c Config) Strategy { return NewProbabilitySumStrategy(c) })
	r.Register(types.SignalTypeEndgame, func(c Config) Strategy { return NewEndgameStrategy(c) })
	return r
}

// Register adds or replaces a named strategy factory.
func (r *Registry) Register(name types.SignalType, factory func(Config) Strategy) {
	r.factories[name] = factory
}

// Create instantiates a registered strategy by name.
func (r *Registry) Create(name types.SignalType, cfg Config) (Strategy, bool) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return factory(cfg), true
}

// List returns the names of all registered strategies.
func (r *Registry) List() []types.SignalType {
	out := make([]types.SignalType, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	return out
}

// Config parameterizes the built-in strategies. Zero values are replaced
// with sensible defaults by each constructor.
type Config struct {
	MomentumLookback     int
	MomentumThreshold    decimal.Decimal
	MeanReversionZ       decimal.Decimal
	ImbalanceRatio       decimal.Decimal
	SpreadHunterMinBps   decimal.Decimal
	VolatilityMinSigma   decimal.Decimal
	ProbabilitySumMinBps decimal.Decimal
	EndgameWindow        time.Duration
	EndgameMinConfidence decimal.Decimal
	Confidence           decimal.Decimal // not read by the built-in strategies; each computes its own confidence
}
