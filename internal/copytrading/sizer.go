package copytrading

import (
	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// Sizer derives a copy-trade's size from the leader's observed trade and
// the configured sizing mode.
type Sizer struct {
	cfg types.CopyTradingConfig
}

// NewSizer constructs a Sizer.
func NewSizer(cfg types.CopyTradingConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size computes the USD notional to copy for a leader trade, given the
// leader trader's composite score and the follower's available capital.
// It implements the three sizing formulas: PERCENTAGE (percent of the
// trader's notional, floored at minTradeSize and capped at
// maxPositionSize), FIXED (a flat amount clamped by the same limits), and
// ADAPTIVE (a percentage that decays linearly with the trader's own
// notional, so large leader trades are copied at a smaller fraction).
// Any result below minTradeSize is skipped (returns zero).
func (s *Sizer) Size(leaderTrade types.AggregatedTrade, trader types.TrackedTrader, availableCapitalUSD decimal.Decimal) decimal.Decimal {
	traderUSD := leaderTrade.TotalSize.Mul(leaderTrade.VWAPPrice)

	var size decimal.Decimal
	switch s.cfg.SizingMode {
	case types.CopySizingFixed:
		size = s.cfg.FixedSizeUSD

	case types.CopySizingAdaptive:
		pct := decimal.Max(s.cfg.AdaptiveMinPercent, s.cfg.AdaptiveMaxPercent.Sub(s.cfg.AdaptiveK.Mul(traderUSD)))
		size = traderUSD.Mul(pct)

	case types.CopySizingPercentage:
		fallthrough
	default:
		size = decimal.Max(traderUSD.Mul(s.cfg.SizingPercent), s.cfg.MinTradeSizeUSD)
	}

	if !s.cfg.MaxPositionSizeUSD.IsZero() && size.GreaterThan(s.cfg.MaxPositionSizeUSD) {
		size = s.cfg.MaxPositionSizeUSD
	}
	if size.GreaterThan(availableCapitalUSD) {
		size = availableCapitalUSD
	}
	if size.LessThan(s.cfg.MinTradeSizeUSD) {
		return decimal.Zero
	}
	return decimal.Max(decimal.Zero, size)
}
