// Package types defines the core data model shared across the trading
// engine: venues, markets, orders, trades, positions, signals and
// arbitrage opportunities.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Platform identifies a trading venue.
type Platform string

const (
	PlatformVenueA Platform = "venue_a" // CLOB, crypto-settled
	PlatformVenueB Platform = "venue_b" // regulated API venue
)

// Polarity describes how an outcome on venue B relates to its matched
// outcome on venue A.
type Polarity string

const (
	PolaritySame     Polarity = "same"
	PolarityInverted Polarity = "inverted"
)

// Outcome is one side (YES/NO) of a binary market.
type Outcome struct {
	ID          string          `json:"id"`
	MarketID    string          `json:"marketId"`
	Name        string          `json:"name"` // "YES" or "NO"
	BestBid     decimal.Decimal `json:"bestBid"`
	BestAsk     decimal.Decimal `json:"bestAsk"`
	BestBidSize decimal.Decimal `json:"bestBidSize"`
	BestAskSize decimal.Decimal `json:"bestAskSize"`
	LastPrice   decimal.Decimal `json:"lastPrice"`
}

// NormalizedMarket is a venue-agnostic binary market.
type NormalizedMarket struct {
	ID           string          `json:"id"`
	Platform     Platform        `json:"platform"`
	Title        string          `json:"title"`
	Slug         string          `json:"slug"`
	Outcomes     []Outcome       `json:"outcomes"` // exactly 2 for a binary market
	EndDate      time.Time       `json:"endDate"`
	Active       bool            `json:"active"`
	Closed       bool            `json:"closed"`
	MinOrderSize decimal.Decimal `json:"minOrderSize"`
	TickSize     decimal.Decimal `json:"tickSize"`
	FeeBps       decimal.Decimal `json:"feeBps"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// OrderBookLevel is a single price/size level in a book.
type OrderBookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBook is a normalized two-sided book for one outcome. Seq is the
// venue's monotonic update sequence number for this (platform, marketId,
// outcomeId) book; a consumer applying updates in seq order can detect
// drops or reordering and resync instead of silently drifting.
type OrderBook struct {
	Platform  Platform         `json:"platform"`
	MarketID  string           `json:"marketId"`
	OutcomeID string           `json:"outcomeId"`
	Seq       uint64           `json:"seq"`
	Bids      []OrderBookLevel `json:"bids"` // descending by price
	Asks      []OrderBookLevel `json:"asks"` // ascending by price
	Timestamp time.Time        `json:"timestamp"`
}

// BestBid returns the top bid level, or a zero level if the book is empty.
func (b OrderBook) BestBid() OrderBookLevel {
	if len(b.Bids) == 0 {
		return OrderBookLevel{}
	}
	return b.Bids[0]
}

// BestAsk returns the top ask level, or a zero level if the book is empty.
func (b OrderBook) BestAsk() OrderBookLevel {
	if len(b.Asks) == 0 {
		return OrderBookLevel{}
	}
	return b.Asks[0]
}

// Mid returns the midpoint of the best bid/ask, or zero if either side is empty.
func (b OrderBook) Mid() decimal.Decimal {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid.Price.IsZero() || ask.Price.IsZero() {
		return decimal.Zero
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2))
}

// PricePoint is a single observed price sample for an outcome.
type PricePoint struct {
	Platform  Platform        `json:"platform"`
	MarketID  string          `json:"marketId"`
	OutcomeID string          `json:"outcomeId"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Timestamp time.Time       `json:"timestamp"`
}

// PriceStats are derived statistics over a rolling price history window.
type PriceStats struct {
	SMA20         decimal.Decimal `json:"sma20"`
	VWAP          decimal.Decimal `json:"vwap"`
	Volatility    decimal.Decimal `json:"volatility"` // stddev of returns
	RSI14         decimal.Decimal `json:"rsi14"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	SampleCount   int             `json:"sampleCount"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// OrderSide is buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType is the execution style requested.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
	OrderTypeIOC    OrderType = "ioc"
)

// OrderStatus is a node in the order lifecycle state machine.
//
//	pending -> open -> partial -> partial (repeatable) -> filled
//	pending -> rejected
//	open    -> cancelled
//	open    -> filled
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order is a single-leg order routed to one venue.
type Order struct {
	ID            string          `json:"id"`
	ClientOrderID string          `json:"clientOrderId"`
	Platform      Platform        `json:"platform"`
	MarketID      string          `json:"marketId"`
	OutcomeID     string          `json:"outcomeId"`
	Side          OrderSide       `json:"side"`
	Type          OrderType       `json:"type"`
	Price         decimal.Decimal `json:"price"`
	Size          decimal.Decimal `json:"size"`
	FilledSize    decimal.Decimal `json:"filledSize"`
	AvgFillPrice  decimal.Decimal `json:"avgFillPrice"`
	Status        OrderStatus     `json:"status"`
	Tag           string          `json:"tag,omitempty"` // e.g. arbitrage opportunity ID, copy-trade ID
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	FilledAt      *time.Time      `json:"filledAt,omitempty"`
}

// Remaining returns the unfilled portion of the order's size.
func (o Order) Remaining() decimal.Decimal {
	return o.Size.Sub(o.FilledSize)
}

// Trade is a single fill (partial or full) of an order.
type Trade struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"orderId"`
	Platform   Platform        `json:"platform"`
	MarketID   string          `json:"marketId"`
	OutcomeID  string          `json:"outcomeId"`
	Side       OrderSide       `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Fee        decimal.Decimal `json:"fee"`
	ExecutedAt time.Time       `json:"executedAt"`
}

// Position is the engine's net holding of one outcome.
type Position struct {
	Platform      Platform        `json:"platform"`
	MarketID      string          `json:"marketId"`
	OutcomeID     string          `json:"outcomeId"`
	Size          decimal.Decimal `json:"size"` // signed: positive long, negative short
	AvgEntryPrice decimal.Decimal `json:"avgEntryPrice"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl"`
	OpenedAt      time.Time       `json:"openedAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// UnrealizedPnL marks the position to the given price.
func (p Position) UnrealizedPnL(markPrice decimal.Decimal) decimal.Decimal {
	if p.Size.IsZero() {
		return decimal.Zero
	}
	return markPrice.Sub(p.AvgEntryPrice).Mul(p.Size)
}

// OutcomeMapping ties a venue-A outcome to its venue-B counterpart.
type OutcomeMapping struct {
	OutcomeAID string   `json:"outcomeAId"`
	OutcomeBID string   `json:"outcomeBId"`
	Polarity   Polarity `json:"polarity"`
}

// MarketPair is a matched market across both venues.
type MarketPair struct {
	ID         string           `json:"id"`
	MarketAID  string           `json:"marketAId"`
	MarketBID  string           `json:"marketBId"`
	Similarity decimal.Decimal  `json:"similarity"` // 0..1 title-similarity score
	Mappings   []OutcomeMapping `json:"mappings"`
	MatchedAt  time.Time        `json:"matchedAt"`
}

// SignalType distinguishes the strategy family that produced a signal.
type SignalType string

const (
	SignalTypeMomentum           SignalType = "momentum"
	SignalTypeMeanReversion      SignalType = "mean_reversion"
	SignalTypeOrderbookImbalance SignalType = "orderbook_imbalance"
	SignalTypeSpreadHunter       SignalType = "spread_hunter"
	SignalTypeVolatilityCapture  SignalType = "volatility_capture"
	SignalTypeProbabilitySum     SignalType = "probability_sum"
	SignalTypeEndgame            SignalType = "endgame"
)

// Signal is a strategy's recommendation to trade one outcome.
type Signal struct {
	ID          string          `json:"id"`
	Type        SignalType      `json:"type"`
	Platform    Platform        `json:"platform"`
	MarketID    string          `json:"marketId"`
	OutcomeID   string          `json:"outcomeId"`
	Side        OrderSide       `json:"side"`
	Confidence  decimal.Decimal `json:"confidence"` // 0..1
	TargetPrice decimal.Decimal `json:"targetPrice"`
	Reason      string          `json:"reason"`
	GeneratedAt time.Time       `json:"generatedAt"`
	ExpiresAt   time.Time       `json:"expiresAt"`
}

// ArbitrageKind distinguishes single-venue from cross-venue opportunities.
type ArbitrageKind string

const (
	ArbitrageKindProbabilitySum ArbitrageKind = "probability_sum" // single venue: sum of asks < 1
	ArbitrageKindCrossVenue     ArbitrageKind = "cross_venue"     // matched markets mispriced across venues
)

// ArbitrageLeg is one order to be placed as part of an opportunity.
type ArbitrageLeg struct {
	Platform  Platform        `json:"platform"`
	MarketID  string          `json:"marketId"`
	OutcomeID string          `json:"outcomeId"`
	Side      OrderSide       `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
}

// ArbitrageOpportunity is a detected mispricing with its executable legs.
type ArbitrageOpportunity struct {
	ID             string          `json:"id"`
	Kind           ArbitrageKind   `json:"kind"`
	MarketPairID   string          `json:"marketPairId,omitempty"`
	Legs           []ArbitrageLeg  `json:"legs"`
	GrossMarginBps decimal.Decimal `json:"grossMarginBps"`
	NetMarginBps   decimal.Decimal `json:"netMarginBps"` // after fees
	MaxSize        decimal.Decimal `json:"maxSize"`      // bottleneck across legs
	DetectedAt     time.Time       `json:"detectedAt"`
	ExpiresAt      time.Time       `json:"expiresAt"`
}

// TrackedTrader is a copy-trading source wallet under observation.
type TrackedTrader struct {
	Address        string          `json:"address"`
	Platform       Platform        `json:"platform"`
	Label          string          `json:"label,omitempty"`
	ROI            decimal.Decimal `json:"roi"`
	WinRate        decimal.Decimal `json:"winRate"`
	ProfitFactor   decimal.Decimal `json:"profitFactor"`
	Sharpe         decimal.Decimal `json:"sharpe"`
	MaxDrawdown    decimal.Decimal `json:"maxDrawdown"`
	Score          decimal.Decimal `json:"score"` // composite ranking score
	TradeCount     int             `json:"tradeCount"`
	LastActivityAt time.Time       `json:"lastActivityAt"`
}

// DetectedTrade is a single on-chain/venue trade observed for a tracked wallet.
type DetectedTrade struct {
	ID         string          `json:"id"`
	Trader     string          `json:"trader"`
	Platform   Platform        `json:"platform"`
	MarketID   string          `json:"marketId"`
	OutcomeID  string          `json:"outcomeId"`
	Side       OrderSide       `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	ObservedAt time.Time       `json:"observedAt"`
}

// AggregatedTrade merges multiple DetectedTrades for the same trader/market/
// outcome/side observed within a short aggregation window.
type AggregatedTrade struct {
	Trader      string          `json:"trader"`
	Platform    Platform        `json:"platform"`
	MarketID    string          `json:"marketId"`
	OutcomeID   string          `json:"outcomeId"`
	Side        OrderSide       `json:"side"`
	TotalSize   decimal.Decimal `json:"totalSize"`
	VWAPPrice   decimal.Decimal `json:"vwapPrice"`
	TradeCount  int             `json:"tradeCount"`
	WindowStart time.Time       `json:"windowStart"`
	WindowEnd   time.Time       `json:"windowEnd"`
}

// CopySizingMode selects how a copy-trade's size is derived from the
// observed leader trade.
type CopySizingMode string

const (
	CopySizingPercentage CopySizingMode = "percentage" // fixed % of leader's size
	CopySizingFixed      CopySizingMode = "fixed"       // fixed notional regardless of leader size
	CopySizingAdaptive   CopySizingMode = "adaptive"    // scaled by trader score and available capital
)

// CopyPosition is a position opened on behalf of a copied trader.
type CopyPosition struct {
	ID          string          `json:"id"`
	Trader      string          `json:"trader"`
	Platform    Platform        `json:"platform"`
	MarketID    string          `json:"marketId"`
	OutcomeID   string          `json:"outcomeId"`
	Side        OrderSide       `json:"side"`
	Size        decimal.Decimal `json:"size"`
	EntryPrice  decimal.Decimal `json:"entryPrice"`
	RealizedPnL decimal.Decimal `json:"realizedPnl"`
	OpenedAt    time.Time       `json:"openedAt"`
	ClosedAt    *time.Time      `json:"closedAt,omitempty"`
}
