package copytrading

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

func leaderTrade(totalSize, vwap float64) types.AggregatedTrade {
	return types.AggregatedTrade{
		Trader: "0xabc", TotalSize: decimal.NewFromFloat(totalSize), VWAPPrice: decimal.NewFromFloat(vwap),
		WindowStart: time.Now(), WindowEnd: time.Now(),
	}
}

func TestSizeFixedModeIgnoresLeaderNotional(t *testing.T) {
	s := NewSizer(types.CopyTradingConfig{SizingMode: types.CopySizingFixed, FixedSizeUSD: decimal.NewFromInt(50)})
	size := s.Size(leaderTrade(1000, 0.5), types.TrackedTrader{}, decimal.NewFromInt(10000))
	if !size.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected fixed size 50, got %s", size)
	}
}

func TestSizePercentageModeScalesWithLeaderNotional(t *testing.T) {
	s := NewSizer(types.CopyTradingConfig{SizingMode: types.CopySizingPercentage, SizingPercent: decimal.NewFromFloat(0.1)})
	// leader notional = 1000 * 0.5 = 500; 10% of that = 50
	size := s.Size(leaderTrade(1000, 0.5), types.TrackedTrader{}, decimal.NewFromInt(10000))
	if !size.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected percentage size 50, got %s", size)
	}
}

func adaptiveCfg() types.CopyTradingConfig {
	return types.CopyTradingConfig{
		SizingMode: types.CopySizingAdaptive,
		AdaptiveMinPercent: decimal.NewFromFloat(0.02), AdaptiveMaxPercent: decimal.NewFromFloat(0.15),
		AdaptiveK: decimal.NewFromFloat(0.0001),
	}
}

func TestSizeAdaptiveModeDecaysPercentAsTraderNotionalGrows(t *testing.T) {
	s := NewSizer(adaptiveCfg())
	// small leader trade: pct stays near the max
	small := s.Size(leaderTrade(100, 1), types.TrackedTrader{}, decimal.NewFromInt(1000000))
	// large leader trade: k*traderUsd pushes pct down toward the floor
	large := s.Size(leaderTrade(10000, 1), types.TrackedTrader{}, decimal.NewFromInt(1000000))

	smallPct := small.Div(decimal.NewFromInt(100))
	largePct := large.Div(decimal.NewFromInt(10000))
	if !smallPct.GreaterThan(largePct) {
		t.Errorf("expected the effective percentage to decay as trader notional grows: small=%s large=%s", smallPct, largePct)
	}
}

func TestSizeAdaptiveFloorsAtMinPercent(t *testing.T) {
	cfg := adaptiveCfg()
	s := NewSizer(cfg)
	// traderUsd large enough that maxPercent - k*traderUsd goes negative
	size := s.Size(leaderTrade(1000000, 1), types.TrackedTrader{}, decimal.NewFromInt(1000000000))
	pct := size.Div(decimal.NewFromInt(1000000))
	if !pct.Equal(cfg.AdaptiveMinPercent) {
		t.Errorf("expected the adaptive percentage to floor at minPercent %s, got %s", cfg.AdaptiveMinPercent, pct)
	}
}

func TestSizeAdaptiveSkippedBelowMinTradeSize(t *testing.T) {
	cfg := adaptiveCfg()
	cfg.MinTradeSizeUSD = decimal.NewFromInt(1000)
	s := NewSizer(cfg)
	size := s.Size(leaderTrade(10, 1), types.TrackedTrader{}, decimal.NewFromInt(1000000))
	if !size.IsZero() {
		t.Errorf("expected a trade sizing below minTradeSize to be skipped (zero), got %s", size)
	}
}

func TestSizePercentageModeFlooredAtMinTradeSize(t *testing.T) {
	s := NewSizer(types.CopyTradingConfig{
		SizingMode: types.CopySizingPercentage, SizingPercent: decimal.NewFromFloat(0.01),
		MinTradeSizeUSD: decimal.NewFromInt(20),
	})
	// leader notional = 10 * 0.5 = 5; 1% of that is 0.05, well under the floor
	size := s.Size(leaderTrade(10, 0.5), types.TrackedTrader{}, decimal.NewFromInt(10000))
	if !size.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected the minTradeSize floor of 20, got %s", size)
	}
}

func TestSizeCappedByMaxPositionSize(t *testing.T) {
	s := NewSizer(types.CopyTradingConfig{
		SizingMode: types.CopySizingPercentage, SizingPercent: decimal.NewFromFloat(1),
		MaxPositionSizeUSD: decimal.NewFromInt(200),
	})
	// leader notional = 1000 * 0.5 = 500; 100% of that is 500, above the cap
	size := s.Size(leaderTrade(1000, 0.5), types.TrackedTrader{}, decimal.NewFromInt(10000))
	if !size.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected the maxPositionSize cap of 200, got %s", size)
	}
}

func TestSizeCappedByAvailableCapital(t *testing.T) {
	s := NewSizer(types.CopyTradingConfig{SizingMode: types.CopySizingFixed, FixedSizeUSD: decimal.NewFromInt(500)})
	size := s.Size(leaderTrade(1000, 0.5), types.TrackedTrader{}, decimal.NewFromInt(100))
	if !size.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected size capped at available capital 100, got %s", size)
	}
}

func TestSizeNeverNegative(t *testing.T) {
	s := NewSizer(types.CopyTradingConfig{SizingMode: types.CopySizingFixed, FixedSizeUSD: decimal.NewFromInt(-10)})
	size := s.Size(leaderTrade(1000, 0.5), types.TrackedTrader{}, decimal.NewFromInt(100))
	if size.IsNegative() {
		t.Errorf("expected size to never go negative, got %s", size)
	}
}
