package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// ImbalanceStrategy reads the bid/ask size ratio summed over the top book
// levels (five per side) and signals
// in the direction of the heavier side, anticipating the lighter side
// will be consumed first.
type ImbalanceStrategy struct {
	base
	minRatio decimal.Decimal // e.g. 2.0 means one side must be at least 2x the other
	depth    int
}

// NewImbalanceStrategy constructs an ImbalanceStrategy; minRatio defaults
// to 2.0 and book depth considered defaults to the top 5 levels per side.
func NewImbalanceStrategy(cfg Config) *ImbalanceStrategy {
	ratio := cfg.ImbalanceRatio
	if ratio.IsZero() {
		ratio = decimal.NewFromFloat(2.0)
	}
	return &ImbalanceStrategy{base: newBase(), minRatio: ratio, depth: 5}
}

func (s *ImbalanceStrategy) Name() types.SignalType { return types.SignalTypeOrderbookImbalance }

func sumSize(levels []types.OrderBookLevel, depth int) decimal.Decimal {
	total := decimal.Zero
	for i, l := range levels {
		if i >= depth {
			break
		}
		total = total.Add(l.Size)
	}
	return total
}

func (s *ImbalanceStrategy) Analyze(v MarketView) (*types.Signal, error) {
	if !v.HasBook || len(v.Book.Bids) == 0 || len(v.Book.Asks) == 0 {
		return nil, nil
	}
	bidVol := sumSize(v.Book.Bids, s.depth)
	askVol := sumSize(v.Book.Asks, s.depth)
	if bidVol.IsZero() || askVol.IsZero() {
		return nil, nil
	}

	var side types.OrderSide
	var ratio decimal.Decimal
	switch {
	case bidVol.Div(askVol).GreaterThanOrEqual(s.minRatio):
		side = types.OrderSideBuy
		ratio = bidVol.Div(askVol)
	case askVol.Div(bidVol).GreaterThanOrEqual(s.minRatio):
		side = types.OrderSideSell
		ratio = askVol.Div(bidVol)
	default:
		return nil, nil
	}

	confidence := decimal.Min(ratio.Div(s.minRatio.Mul(decimal.NewFromInt(2))), decimal.NewFromInt(1))
	sig := types.Signal{
		Type:        s.Name(),
		Platform:    v.Market.Platform,
		MarketID:    v.Market.ID,
		OutcomeID:   v.Outcome.ID,
		Side:        side,
		Confidence:  confidence,
		TargetPrice: v.Book.Mid(),
		Reason:      "order book imbalance",
		GeneratedAt: v.Timestamp,
		ExpiresAt:   v.Timestamp.Add(2 * time.Minute),
	}
	s.setSignal(sig)
	return &sig, nil
}
