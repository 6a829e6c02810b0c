// Package arbitrage detects and executes mispricings: a single market
// whose outcome asks sum to less than one, and matched markets across
// venue A and venue B whose implied probabilities diverge.
package arbitrage

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

var (
	opportunitiesDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbitrage_opportunities_detected_total",
		Help: "Arbitrage opportunities detected, by kind.",
	}, []string{"kind"})

	opportunitiesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbitrage_opportunities_rejected_total",
		Help: "Candidate opportunities rejected before detection, by reason.",
	}, []string{"reason"})
)

// Config tunes the detector's thresholds.
type Config struct {
	MinMarginBps   decimal.Decimal // minimum net margin, in bps, to surface an opportunity
	TakerFeeBps    decimal.Decimal // applied twice for a two-leg cross-venue opportunity
	MaxTradeSizeUSD decimal.Decimal
	OpportunityTTL time.Duration
}

// DefaultConfig returns sane production defaults.
func DefaultConfig() Config {
	return Config{
		MinMarginBps:    decimal.NewFromInt(50),
		TakerFeeBps:     decimal.NewFromInt(200),
		MaxTradeSizeUSD: decimal.NewFromInt(500),
		OpportunityTTL:  5 * time.Second,
	}
}

// Detector scans single-market books and matched market pairs for
// arbitrage, publishing opportunities on a buffered channel.
type Detector struct {
	logger *zap.Logger
	clock  clock.Clock
	cfg    Config

	mu   sync.Mutex
	seen map[string]time.Time // dedup key -> last surfaced time

	opportunities chan types.ArbitrageOpportunity
}

// New constructs a Detector.
func New(logger *zap.Logger, clk clock.Clock, cfg Config) *Detector {
	return &Detector{
		logger:        logger.Named("arbitrage-detector"),
		clock:         clk,
		cfg:           cfg,
		seen:          make(map[string]time.Time),
		opportunities: make(chan types.ArbitrageOpportunity, 1024),
	}
}

// Opportunities returns the channel opportunities are published on.
func (d *Detector) Opportunities() <-chan types.ArbitrageOpportunity { return d.opportunities }

// dedupKey identifies an opportunity shape so the same mispricing is not
// resurfaced on every book tick while it persists.
func dedupKey(kind types.ArbitrageKind, marketID string) string {
	return string(kind) + ":" + marketID
}

func (d *Detector) shouldSurface(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock.Now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.cfg.OpportunityTTL {
		return false
	}
	d.seen[key] = now
	return true
}

func (d *Detector) publish(opp types.ArbitrageOpportunity) {
	opportunitiesDetectedTotal.WithLabelValues(string(opp.Kind)).Inc()
	select {
	case d.opportunities <- opp:
		d.logger.Info("arbitrage opportunity detected",
			zap.String("id", opp.ID), zap.String("kind", string(opp.Kind)),
			zap.String("netMarginBps", opp.NetMarginBps.String()))
	default:
		d.logger.Warn("opportunity channel full, dropping", zap.String("kind", string(opp.Kind)))
	}
}

// DetectProbabilitySum checks a single binary market whose two outcomes'
// best asks sum to less than one once fees are accounted for: buying
// both sides locks in a profit regardless of which outcome resolves.
func (d *Detector) DetectProbabilitySum(market types.NormalizedMarket, a, b types.Outcome) (types.ArbitrageOpportunity, bool) {
	if a.BestAsk.IsZero() || b.BestAsk.IsZero() || a.BestAskSize.IsZero() || b.BestAskSize.IsZero() {
		opportunitiesRejectedTotal.WithLabelValues("invalid_price").Inc()
		return types.ArbitrageOpportunity{}, false
	}

	sum := a.BestAsk.Add(b.BestAsk)
	grossMarginBps := decimal.NewFromInt(1).Sub(sum).Mul(decimal.NewFromInt(10000))
	netMarginBps := grossMarginBps.Sub(d.cfg.TakerFeeBps.Mul(decimal.NewFromInt(2)))

	if netMarginBps.LessThan(d.cfg.MinMarginBps) {
		opportunitiesRejectedTotal.WithLabelValues("below_threshold").Inc()
		return types.ArbitrageOpportunity{}, false
	}

	key := dedupKey(types.ArbitrageKindProbabilitySum, market.ID)
	if !d.shouldSurface(key) {
		return types.ArbitrageOpportunity{}, false
	}

	maxSize := decimal.Min(a.BestAskSize, b.BestAskSize, d.cfg.MaxTradeSizeUSD)
	now := d.clock.Now()

	opp := types.ArbitrageOpportunity{
		ID:   uuid.NewString(),
		Kind: types.ArbitrageKindProbabilitySum,
		Legs: []types.ArbitrageLeg{
			{Platform: market.Platform, MarketID: market.ID, OutcomeID: a.ID, Side: types.OrderSideBuy, Price: a.BestAsk, Size: maxSize},
			{Platform: market.Platform, MarketID: market.ID, OutcomeID: b.ID, Side: types.OrderSideBuy, Price: b.BestAsk, Size: maxSize},
		},
		GrossMarginBps: grossMarginBps,
		NetMarginBps:   netMarginBps,
		MaxSize:        maxSize,
		DetectedAt:     now,
		ExpiresAt:      now.Add(d.cfg.OpportunityTTL),
	}
	d.publish(opp)
	return opp, true
}

// DetectCrossVenue compares a matched market pair's mapped outcomes
// across both venues and surfaces an opportunity when buying the
// cheaper side on one venue and the equivalent side on the other would
// lock in a profit after fees.
func (d *Detector) DetectCrossVenue(pair types.MarketPair, marketA, marketB types.NormalizedMarket, outcomesA, outcomesB map[string]types.Outcome) (types.ArbitrageOpportunity, bool) {
	var best *types.ArbitrageOpportunity

	for _, mapping := range pair.Mappings {
		a, ok := outcomesA[mapping.OutcomeAID]
		if !ok {
			continue
		}
		b, ok := outcomesB[mapping.OutcomeBID]
		if !ok {
			continue
		}
		if a.BestAsk.IsZero() || b.BestAsk.IsZero() {
			continue
		}

		// same polarity: both outcomes resolve together, so buying the
		// cheaper ask and selling the other venue's matching bid captures
		// the spread. inverted polarity: outcome B resolves opposite to
		// outcome A, so the synthetic "B-equivalent of A" price is 1-bid.
		bEquivalentAsk := b.BestAsk
		bEquivalentBid := b.BestBid
		if mapping.Polarity == types.PolarityInverted {
			bEquivalentAsk = decimal.NewFromInt(1).Sub(b.BestBid)
			bEquivalentBid = decimal.NewFromInt(1).Sub(b.BestAsk)
		}

		opp, found := d.bestDirection(marketA, marketB, a, b, bEquivalentAsk, bEquivalentBid, pair.ID)
		if !found {
			continue
		}
		if best == nil || opp.NetMarginBps.GreaterThan(best.NetMarginBps) {
			best = &opp
		}
	}

	if best == nil {
		return types.ArbitrageOpportunity{}, false
	}
	key := dedupKey(types.ArbitrageKindCrossVenue, pair.ID)
	if !d.shouldSurface(key) {
		return types.ArbitrageOpportunity{}, false
	}
	d.publish(*best)
	return *best, true
}

// bestDirection checks both directions (buy A / sell-equivalent on B,
// and the reverse) and returns whichever clears the margin threshold.
func (d *Detector) bestDirection(marketA, marketB types.NormalizedMarket, a, b types.Outcome, bEquivAsk, bEquivBid decimal.Decimal, pairID string) (types.ArbitrageOpportunity, bool) {
	now := d.clock.Now()
	fee := d.cfg.TakerFeeBps.Mul(decimal.NewFromInt(2))

	// direction 1: buy A's ask, sell B's equivalent bid
	margin1 := bEquivBid.Sub(a.BestAsk).Mul(decimal.NewFromInt(10000)).Sub(fee)
	// direction 2: buy B's equivalent ask, sell A's bid
	margin2 := a.BestBid.Sub(bEquivAsk).Mul(decimal.NewFromInt(10000)).Sub(fee)

	if margin1.LessThan(d.cfg.MinMarginBps) && margin2.LessThan(d.cfg.MinMarginBps) {
		return types.ArbitrageOpportunity{}, false
	}

	maxSize := decimal.Min(a.BestAskSize, b.BestAskSize, d.cfg.MaxTradeSizeUSD)

	if margin1.GreaterThanOrEqual(margin2) {
		return types.ArbitrageOpportunity{
			ID: uuid.NewString(), Kind: types.ArbitrageKindCrossVenue, MarketPairID: pairID,
			Legs: []types.ArbitrageLeg{
				{Platform: marketA.Platform, MarketID: marketA.ID, OutcomeID: a.ID, Side: types.OrderSideBuy, Price: a.BestAsk, Size: maxSize},
				{Platform: marketB.Platform, MarketID: marketB.ID, OutcomeID: b.ID, Side: types.OrderSideSell, Price: b.BestBid, Size: maxSize},
			},
			GrossMarginBps: margin1.Add(fee), NetMarginBps: margin1, MaxSize: maxSize,
			DetectedAt: now, ExpiresAt: now.Add(d.cfg.OpportunityTTL),
		}, true
	}
	return types.ArbitrageOpportunity{
		ID: uuid.NewString(), Kind: types.ArbitrageKindCrossVenue, MarketPairID: pairID,
		Legs: []types.ArbitrageLeg{
			{Platform: marketB.Platform, MarketID: marketB.ID, OutcomeID: b.ID, Side: types.OrderSideBuy, Price: b.BestAsk, Size: maxSize},
			{Platform: marketA.Platform, MarketID: marketA.ID, OutcomeID: a.ID, Side: types.OrderSideSell, Price: a.BestBid, Size: maxSize},
		},
		GrossMarginBps: margin2.Add(fee), NetMarginBps: margin2, MaxSize: maxSize,
		DetectedAt: now, ExpiresAt: now.Add(d.cfg.OpportunityTTL),
	}, true
}
