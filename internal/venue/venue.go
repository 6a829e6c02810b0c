// Package venue defines the contract every trading venue adapter must
// satisfy, independent of the wire protocol a concrete venue speaks. The
// engine is built entirely against this interface; no concrete HTTP/WS
// client ships here — wiring a real venue is an integration concern left
// to the operator, per the engine's external-interfaces boundary.
package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// Client is the normalized contract the engine drives a venue through.
type Client interface {
	Platform() types.Platform

	// Connect establishes the venue session (REST auth + WS handshake).
	Connect(ctx context.Context) error
	// Disconnect tears the session down.
	Disconnect(ctx context.Context) error

	// ListMarkets returns currently active binary markets.
	ListMarkets(ctx context.Context) ([]types.NormalizedMarket, error)
	// GetOrderBook returns the current book for one outcome.
	GetOrderBook(ctx context.Context, marketID, outcomeID string) (types.OrderBook, error)

	// SubscribeBookUpdates streams book changes until ctx is cancelled.
	SubscribeBookUpdates(ctx context.Context) (<-chan types.OrderBook, error)
	// SubscribeTrades streams venue-observed trades (for copy-trading).
	SubscribeTrades(ctx context.Context) (<-chan types.DetectedTrade, error)

	// PlaceOrder submits a new order and returns the venue's accepted order.
	PlaceOrder(ctx context.Context, order types.Order) (types.Order, error)
	// CancelOrder cancels a resting order.
	CancelOrder(ctx context.Context, orderID string) error
	// GetOrder fetches current order state.
	GetOrder(ctx context.Context, orderID string) (types.Order, error)

	// GetBalance returns available USD balance and, if the venue reports
	// one, its fee in bps (zero when it reports none). The engine reads
	// only the balance; the returned fee is not used.
	GetBalance(ctx context.Context) (balanceUSD decimal.Decimal, feeBps decimal.Decimal, err error)
}

// Repository is the narrow persisted-state contract the engine reads and
// writes through. Concrete storage backends are out of scope; InMemory
// below exists only to make the engine runnable and testable without one.
type Repository interface {
	SaveMarket(types.NormalizedMarket)
	GetMarket(id string) (types.NormalizedMarket, bool)
	ListMarkets(platform types.Platform) []types.NormalizedMarket

	SaveOrder(types.Order)
	GetOrder(id string) (types.Order, bool)
	ListOpenOrders() []types.Order

	SaveTrade(types.Trade)
	ListTrades(orderID string) []types.Trade

	SavePosition(types.Position)
	GetPosition(platform types.Platform, marketID, outcomeID string) (types.Position, bool)
	ListPositions() []types.Position

	SaveMarketPair(types.MarketPair)
	ListMarketPairs() []types.MarketPair

	SaveOpportunity(types.ArbitrageOpportunity)
	ListOpportunities(since time.Time) []types.ArbitrageOpportunity

	SaveTrackedTrader(types.TrackedTrader)
	GetTrackedTrader(address string) (types.TrackedTrader, bool)
	ListTrackedTraders() []types.TrackedTrader

	SaveCopyPosition(types.CopyPosition)
	ListCopyPositions(trader string) []types.CopyPosition
}
