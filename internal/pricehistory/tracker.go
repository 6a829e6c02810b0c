// Package pricehistory maintains a bounded rolling window of observed
// prices per venue/market/outcome and derives the statistics strategies
// consume (SMA20, VWAP, volatility, RSI14, percent change).
package pricehistory

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
	"github.com/atlas-desktop/prediction-engine/pkg/utils"
)

const defaultWindow = 200

// SignificantMoveThresholdPct is the default percent-change magnitude
// (over the tracked window) that triggers a significant-move event.
const SignificantMoveThresholdPct = 5

var (
	pointsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricehistory_points_total",
		Help: "Total price points ingested by the price history tracker.",
	}, []string{"platform"})

	significantMovesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricehistory_significant_moves_total",
		Help: "Total significant-move events emitted by the price history tracker.",
	}, []string{"platform"})
)

// SignificantMove is emitted when an outcome's price has moved more than
// SignificantMoveThresholdPct since the start of the tracked window.
type SignificantMove struct {
	Platform      types.Platform
	MarketID      string
	OutcomeID     string
	ChangePercent decimal.Decimal
	Stats         types.PriceStats
}

type series struct {
	prices []decimal.Decimal
	sizes  []decimal.Decimal
	sma    *utils.SMA
	rsi    *utils.RSI
}

// Tracker ingests PricePoints and derives PriceStats per outcome.
type Tracker struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	window   int
	series   map[string]*series // keyed by platform:marketId:outcomeId
	moveSubs []chan SignificantMove
}

// New constructs a Tracker with the given rolling window size (number of
// samples kept per outcome). A window of 0 uses the default of 200.
func New(logger *zap.Logger, window int) *Tracker {
	if window <= 0 {
		window = defaultWindow
	}
	return &Tracker{
		logger: logger.Named("pricehistory"),
		window: window,
		series: make(map[string]*series),
	}
}

func seriesKey(p types.PricePoint) string {
	return string(p.Platform) + ":" + p.MarketID + ":" + p.OutcomeID
}

// SubscribeSignificantMoves returns a channel of significant-move events.
// The channel is buffered; callers must drain it promptly.
func (t *Tracker) SubscribeSignificantMoves() <-chan SignificantMove {
	ch := make(chan SignificantMove, 64)
	t.mu.Lock()
	t.moveSubs = append(t.moveSubs, ch)
	t.mu.Unlock()
	return ch
}

// Ingest records a new price point and returns the updated statistics.
func (t *Tracker) Ingest(p types.PricePoint) types.PriceStats {
	key := seriesKey(p)

	t.mu.Lock()
	s, ok := t.series[key]
	if !ok {
		s = &series{sma: utils.NewSMA(20), rsi: utils.NewRSI(14)}
		t.series[key] = s
	}
	s.prices = append(s.prices, p.Price)
	s.sizes = append(s.sizes, p.Size)
	if len(s.prices) > t.window {
		s.prices = s.prices[len(s.prices)-t.window:]
		s.sizes = s.sizes[len(s.sizes)-t.window:]
	}
	sma := s.sma.Add(p.Price)
	rsi := s.rsi.Add(p.Price)
	vwap := utils.VWAP(s.prices, s.sizes)
	vol := utils.CalculateStdDev(utils.CalculateReturns(s.prices))
	changePct := decimal.Zero
	if len(s.prices) > 1 && !s.prices[0].IsZero() {
		changePct = utils.CalculatePercentageChange(s.prices[0], p.Price)
	}
	stats := types.PriceStats{
		SMA20:         sma,
		VWAP:          vwap,
		Volatility:    vol,
		RSI14:         rsi,
		ChangePercent: changePct,
		SampleCount:   len(s.prices),
		UpdatedAt:     p.Timestamp,
	}
	subs := append([]chan SignificantMove(nil), t.moveSubs...)
	t.mu.Unlock()

	pointsTotal.WithLabelValues(string(p.Platform)).Inc()

	if changePct.Abs().GreaterThanOrEqual(decimal.NewFromInt(SignificantMoveThresholdPct)) {
		significantMovesTotal.WithLabelValues(string(p.Platform)).Inc()
		move := SignificantMove{
			Platform:      p.Platform,
			MarketID:      p.MarketID,
			OutcomeID:     p.OutcomeID,
			ChangePercent: changePct,
			Stats:         stats,
		}
		for _, ch := range subs {
			select {
			case ch <- move:
			default:
				t.logger.Warn("significant move subscriber channel full, dropping event",
					zap.String("marketId", p.MarketID), zap.String("outcomeId", p.OutcomeID))
			}
		}
	}

	return stats
}

// Stats returns the current SMA20, VWAP, volatility, RSI14 and sample
// count for an outcome, or the zero value and false if no points have
// been ingested yet. ChangePercent and UpdatedAt are left zero; only the
// stats returned by Ingest carry them.
func (t *Tracker) Stats(platform types.Platform, marketID, outcomeID string) (types.PriceStats, bool) {
	key := string(platform) + ":" + marketID + ":" + outcomeID
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.series[key]
	if !ok || len(s.prices) == 0 {
		return types.PriceStats{}, false
	}
	return types.PriceStats{
		SMA20:         s.sma.Current(),
		VWAP:          utils.VWAP(s.prices, s.sizes),
		Volatility:    utils.CalculateStdDev(utils.CalculateReturns(s.prices)),
		RSI14:         s.rsi.Current(),
		SampleCount:   len(s.prices),
	}, true
}

// History returns a copy of the tracked prices for an outcome, oldest first.
func (t *Tracker) History(platform types.Platform, marketID, outcomeID string) []decimal.Decimal {
	key := string(platform) + ":" + marketID + ":" + outcomeID
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.series[key]
	if !ok {
		return nil
	}
	return append([]decimal.Decimal(nil), s.prices...)
}
