package execution

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

func newTestRiskManager() *RiskManager {
	limits := types.RiskLimits{
		MaxPositionUSD:       decimal.NewFromInt(500),
		MaxOpenPositions:     2,
		MaxDailyLossUSD:      decimal.NewFromInt(100),
		MaxExposurePerMarket: decimal.NewFromInt(600),
		MinOrderSizeUSD:      decimal.NewFromInt(10),
	}
	return NewRiskManager(zap.NewNop(), clock.NewMock(time.Now()), limits)
}

func order(price, size float64) types.Order {
	return types.Order{MarketID: "m1", Price: decimal.NewFromFloat(price), Size: decimal.NewFromFloat(size)}
}

func TestCheckOrderRejectsBelowMinSize(t *testing.T) {
	rm := newTestRiskManager()
	ok, reason := rm.CheckOrder(order(0.5, 5)) // $2.5 notional
	if ok {
		t.Error("expected order below minimum notional to be rejected")
	}
	if reason == "" {
		t.Error("expected a rejection reason")
	}
}

func TestCheckOrderRejectsAboveMaxPosition(t *testing.T) {
	rm := newTestRiskManager()
	ok, _ := rm.CheckOrder(order(0.9, 700)) // $630 notional > $500 max
	if ok {
		t.Error("expected order above max position size to be rejected")
	}
}

func TestCheckOrderAcceptsWithinLimits(t *testing.T) {
	rm := newTestRiskManager()
	ok, reason := rm.CheckOrder(order(0.5, 100)) // $50 notional
	if !ok {
		t.Errorf("expected order within limits to be accepted, got reason: %s", reason)
	}
}

func TestCheckOrderRejectsWhenMarketExposureExceeded(t *testing.T) {
	rm := newTestRiskManager()
	rm.RecordOrderOpened(order(0.5, 1000)) // $500 exposure on m1

	ok, _ := rm.CheckOrder(order(0.5, 300)) // another $150 would push to $650 > 600
	if ok {
		t.Error("expected order to be rejected once market exposure limit would be exceeded")
	}
}

func TestCheckOrderRejectsWhenOpenPositionsAtLimit(t *testing.T) {
	rm := newTestRiskManager()
	rm.RecordOrderOpened(order(0.4, 50))
	rm.RecordOrderOpened(order(0.4, 50))

	ok, _ := rm.CheckOrder(order(0.5, 50))
	if ok {
		t.Error("expected order to be rejected once open position count is at limit")
	}
}

func TestRecordTradeTracksConsecutiveLosses(t *testing.T) {
	rm := newTestRiskManager()
	rm.RecordTrade(decimal.NewFromInt(-10))
	rm.RecordTrade(decimal.NewFromInt(-5))
	if rm.ConsecutiveLosses() != 2 {
		t.Errorf("expected 2 consecutive losses, got %d", rm.ConsecutiveLosses())
	}
	rm.RecordTrade(decimal.NewFromInt(20))
	if rm.ConsecutiveLosses() != 0 {
		t.Errorf("expected consecutive losses reset after a win, got %d", rm.ConsecutiveLosses())
	}
}

func TestRecordTradeEmitsViolationOnDailyLossBreach(t *testing.T) {
	rm := newTestRiskManager()
	rm.RecordTrade(decimal.NewFromInt(-150)) // exceeds $100 daily loss limit

	select {
	case v := <-rm.Events():
		if v.Rule != "max_daily_loss" {
			t.Errorf("expected max_daily_loss violation, got %s", v.Rule)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a risk violation event")
	}

	if len(rm.Violations()) != 1 {
		t.Errorf("expected 1 recorded violation, got %d", len(rm.Violations()))
	}
}

func TestCheckOrderRejectsWhenDailyLossLimitBreached(t *testing.T) {
	rm := newTestRiskManager()
	rm.RecordTrade(decimal.NewFromInt(-150))

	ok, _ := rm.CheckOrder(order(0.5, 50))
	if ok {
		t.Error("expected all new orders rejected once daily loss limit is breached")
	}
}

func TestCheckOrderRejectsWhenTotalExposureExceeded(t *testing.T) {
	limits := types.RiskLimits{
		MaxPositionUSD: decimal.NewFromInt(10000), MaxOpenPositions: 100,
		MaxDailyLossUSD: decimal.NewFromInt(10000), MaxExposurePerMarket: decimal.NewFromInt(10000),
		MinOrderSizeUSD: decimal.NewFromInt(1), MaxTotalExposureUSD: decimal.NewFromInt(1000),
	}
	rm := NewRiskManager(zap.NewNop(), clock.NewMock(time.Now()), limits)
	rm.marketExposure["m1"] = decimal.NewFromInt(500)
	rm.marketExposure["m2"] = decimal.NewFromInt(400)

	ok, _ := rm.CheckOrder(types.Order{MarketID: "m3", Price: decimal.NewFromFloat(1), Size: decimal.NewFromInt(200)})
	if ok {
		t.Error("expected order rejected once total exposure across all markets would exceed the limit")
	}
}

func TestCheckOrderRejectsOnDailyLossIncludingUnrealized(t *testing.T) {
	rm := newTestRiskManager()
	rm.RecordTrade(decimal.NewFromInt(-60)) // within the $100 limit on its own
	rm.UpdateUnrealizedPnL(decimal.NewFromInt(-50))

	ok, _ := rm.CheckOrder(order(0.5, 50))
	if ok {
		t.Error("expected realized+unrealized loss beyond the daily limit to reject new orders")
	}
}

func TestCheckOrderRejectsWhenDrawdownAtLimit(t *testing.T) {
	limits := types.RiskLimits{
		MaxPositionUSD: decimal.NewFromInt(10000), MaxOpenPositions: 100,
		MaxDailyLossUSD: decimal.NewFromInt(10000), MaxExposurePerMarket: decimal.NewFromInt(10000),
		MinOrderSizeUSD: decimal.NewFromInt(1), MaxDrawdownPercent: decimal.NewFromInt(20),
	}
	rm := NewRiskManager(zap.NewNop(), clock.NewMock(time.Now()), limits)
	rm.RecordTrade(decimal.NewFromInt(1000)) // establishes a peak
	rm.UpdateUnrealizedPnL(decimal.NewFromInt(-250)) // 25% drawdown from the 1000 peak

	ok, _ := rm.CheckOrder(order(0.5, 50))
	if ok {
		t.Error("expected a 25% drawdown to reject new orders against a 20% limit")
	}
}

func TestResetDailyClearsRealizedPnL(t *testing.T) {
	rm := newTestRiskManager()
	rm.RecordTrade(decimal.NewFromInt(-20))
	if rm.DailyRealizedPnL().IsZero() {
		t.Fatal("expected nonzero daily P&L before reset")
	}
	rm.ResetDaily()
	if !rm.DailyRealizedPnL().IsZero() {
		t.Errorf("expected daily P&L reset to zero, got %s", rm.DailyRealizedPnL())
	}
}
