package execution

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// RiskSeverity classifies a risk violation.
type RiskSeverity string

const (
	RiskSeverityWarning  RiskSeverity = "warning"
	RiskSeverityCritical RiskSeverity = "critical"
)

// RiskViolation is a single rule breach recorded for audit/alerting.
type RiskViolation struct {
	Rule      string          `json:"rule"`
	Severity  RiskSeverity    `json:"severity"`
	Value     decimal.Decimal `json:"value"`
	Limit     decimal.Decimal `json:"limit"`
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

// RiskManager gates new orders against position/exposure/loss limits and
// tracks the running state (exposure, daily P&L, consecutive losses) that
// both it and the health/kill-switch subsystem consult.
type RiskManager struct {
	logger *zap.Logger
	clock  clock.Clock
	config types.RiskLimits

	mu                    sync.RWMutex
	marketExposure        map[string]decimal.Decimal // keyed by marketId
	openPositionCount     int
	dailyRealizedPnL      decimal.Decimal
	cumulativeRealizedPnL decimal.Decimal // never reset by ResetDaily; feeds drawdown
	unrealizedPnL         decimal.Decimal
	peakEquity            decimal.Decimal
	consecutiveLosses     int
	violations            []RiskViolation

	riskEvents chan RiskViolation
}

// NewRiskManager constructs a RiskManager.
func NewRiskManager(logger *zap.Logger, clk clock.Clock, config types.RiskLimits) *RiskManager {
	return &RiskManager{
		logger:         logger.Named("risk-manager"),
		clock:          clk,
		config:         config,
		marketExposure: make(map[string]decimal.Decimal),
		riskEvents:     make(chan RiskViolation, 256),
	}
}

// Events returns the channel of recorded risk violations.
func (rm *RiskManager) Events() <-chan RiskViolation { return rm.riskEvents }

// CheckOrder evaluates a candidate order against configured limits. It
// returns false with a reason if the order should be rejected.
func (rm *RiskManager) CheckOrder(order types.Order) (bool, string) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	notional := order.Price.Mul(order.Size)

	if !rm.config.MinOrderSizeUSD.IsZero() && notional.LessThan(rm.config.MinOrderSizeUSD) {
		return false, fmt.Sprintf("order notional %s below minimum %s", notional, rm.config.MinOrderSizeUSD)
	}
	if !rm.config.MaxPositionUSD.IsZero() && notional.GreaterThan(rm.config.MaxPositionUSD) {
		return false, fmt.Sprintf("order notional %s exceeds max position size %s", notional, rm.config.MaxPositionUSD)
	}

	if !rm.config.MaxExposurePerMarket.IsZero() {
		current := rm.marketExposure[order.MarketID]
		if current.Add(notional).GreaterThan(rm.config.MaxExposurePerMarket) {
			return false, fmt.Sprintf("market %s exposure would exceed limit %s", order.MarketID, rm.config.MaxExposurePerMarket)
		}
	}

	if !rm.config.MaxTotalExposureUSD.IsZero() {
		total := decimal.Zero
		for _, exp := range rm.marketExposure {
			total = total.Add(exp)
		}
		if total.Add(notional).GreaterThan(rm.config.MaxTotalExposureUSD) {
			return false, fmt.Sprintf("total exposure would exceed limit %s", rm.config.MaxTotalExposureUSD)
		}
	}

	if rm.config.MaxOpenPositions > 0 && rm.openPositionCount >= rm.config.MaxOpenPositions {
		return false, fmt.Sprintf("open position count %d at limit %d", rm.openPositionCount, rm.config.MaxOpenPositions)
	}

	dayPnL := rm.dailyRealizedPnL.Add(rm.unrealizedPnL)
	if !rm.config.MaxDailyLossUSD.IsZero() && dayPnL.LessThan(rm.config.MaxDailyLossUSD.Neg()) {
		return false, fmt.Sprintf("today's realized+unrealized loss %s exceeds limit %s", dayPnL, rm.config.MaxDailyLossUSD)
	}

	if !rm.config.MaxDrawdownPercent.IsZero() {
		if drawdown := rm.drawdownPercentLocked(); drawdown.GreaterThanOrEqual(rm.config.MaxDrawdownPercent) {
			return false, fmt.Sprintf("drawdown %s%% at or above limit %s%%", drawdown, rm.config.MaxDrawdownPercent)
		}
	}

	return true, ""
}

// drawdownPercentLocked computes the current peak-to-equity drawdown as a
// percentage. Callers must hold rm.mu.
func (rm *RiskManager) drawdownPercentLocked() decimal.Decimal {
	if !rm.peakEquity.IsPositive() {
		return decimal.Zero
	}
	equity := rm.cumulativeRealizedPnL.Add(rm.unrealizedPnL)
	drawdown := rm.peakEquity.Sub(equity)
	if !drawdown.IsPositive() {
		return decimal.Zero
	}
	return drawdown.Div(rm.peakEquity).Mul(decimal.NewFromInt(100))
}

// UpdateUnrealizedPnL refreshes the mark-to-market P&L figure the risk
// gate uses for daily-loss and drawdown checks; the engine calls this
// periodically from tracked positions.
func (rm *RiskManager) UpdateUnrealizedPnL(unrealized decimal.Decimal) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.unrealizedPnL = unrealized
	equity := rm.cumulativeRealizedPnL.Add(rm.unrealizedPnL)
	if equity.GreaterThan(rm.peakEquity) {
		rm.peakEquity = equity
	}
}

// RecordOrderOpened increments exposure bookkeeping when an order is
// accepted by the venue.
func (rm *RiskManager) RecordOrderOpened(order types.Order) {
	notional := order.Price.Mul(order.Size)
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.marketExposure[order.MarketID] = rm.marketExposure[order.MarketID].Add(notional)
	rm.openPositionCount++
}

// RecordTrade updates daily P&L and consecutive-loss tracking from a
// realized trade outcome.
func (rm *RiskManager) RecordTrade(realizedPnL decimal.Decimal) {
	rm.mu.Lock()
	rm.dailyRealizedPnL = rm.dailyRealizedPnL.Add(realizedPnL)
	rm.cumulativeRealizedPnL = rm.cumulativeRealizedPnL.Add(realizedPnL)
	if equity := rm.cumulativeRealizedPnL.Add(rm.unrealizedPnL); equity.GreaterThan(rm.peakEquity) {
		rm.peakEquity = equity
	}
	if realizedPnL.IsNegative() {
		rm.consecutiveLosses++
	} else if realizedPnL.IsPositive() {
		rm.consecutiveLosses = 0
	}
	dayPnL := rm.dailyRealizedPnL.Add(rm.unrealizedPnL)
	breach := rm.config.MaxDailyLossUSD.IsPositive() && dayPnL.LessThan(rm.config.MaxDailyLossUSD.Neg())
	now := rm.clock.Now()
	rm.mu.Unlock()

	if breach {
		rm.recordViolation(RiskViolation{
			Rule: "max_daily_loss", Severity: RiskSeverityCritical,
			Value: rm.dailyRealizedPnL, Limit: rm.config.MaxDailyLossUSD.Neg(),
			Message: "daily realized loss limit breached", Timestamp: now,
		})
	}
}

func (rm *RiskManager) recordViolation(v RiskViolation) {
	rm.mu.Lock()
	rm.violations = append(rm.violations, v)
	if len(rm.violations) > 1000 {
		rm.violations = rm.violations[len(rm.violations)-1000:]
	}
	rm.mu.Unlock()

	select {
	case rm.riskEvents <- v:
	default:
		rm.logger.Warn("risk event channel full, dropping violation", zap.String("rule", v.Rule))
	}
}

// ResetDaily clears the rolling daily P&L counter; called by the engine
// on a UTC day boundary.
func (rm *RiskManager) ResetDaily() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.dailyRealizedPnL = decimal.Zero
}

// ConsecutiveLosses returns the current consecutive-loss streak.
func (rm *RiskManager) ConsecutiveLosses() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.consecutiveLosses
}

// DailyRealizedPnL returns today's realized P&L.
func (rm *RiskManager) DailyRealizedPnL() decimal.Decimal {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.dailyRealizedPnL
}

// Violations returns a copy of recorded risk violations.
func (rm *RiskManager) Violations() []RiskViolation {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return append([]RiskViolation(nil), rm.violations...)
}
