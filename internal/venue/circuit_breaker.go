package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// BreakerConfig tunes the per-venue circuit breaker wrapping a Client's
// network calls.
type BreakerConfig struct {
	MaxRequestsHalfOpen uint32
	Interval            time.Duration
	Timeout             time.Duration
	FailureThreshold    uint32 // consecutive failures before the breaker opens
}

// DefaultBreakerConfig returns sensible production defaults: five
// consecutive failures opens the breaker, it stays open for 30s, then
// allows a single trial request before fully closing.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequestsHalfOpen: 1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		FailureThreshold:    5,
	}
}

// BreakerClient wraps a Client, routing every REST-style call (order
// placement/cancellation/lookup, book/balance reads) through a
// gobreaker.CircuitBreaker so a venue having an outage stops being
// hammered with doomed requests and instead fails fast. Streaming calls
// (SubscribeBookUpdates/SubscribeTrades) are passed through unwrapped,
// since a long-lived stream is not the kind of call a request breaker is
// built to gate.
type BreakerClient struct {
	inner  Client
	logger *zap.Logger
	cb     *gobreaker.CircuitBreaker[any]
}

// NewBreakerClient wraps inner with a circuit breaker using cfg.
func NewBreakerClient(inner Client, logger *zap.Logger, cfg BreakerConfig) *BreakerClient {
	name := "venue-breaker:" + string(inner.Platform())
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequestsHalfOpen,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("venue circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &BreakerClient{inner: inner, logger: logger.Named("venue-breaker"), cb: gobreaker.NewCircuitBreaker[any](settings)}
}

func (c *BreakerClient) Platform() types.Platform { return c.inner.Platform() }

func (c *BreakerClient) Connect(ctx context.Context) error    { return c.inner.Connect(ctx) }
func (c *BreakerClient) Disconnect(ctx context.Context) error { return c.inner.Disconnect(ctx) }

func (c *BreakerClient) ListMarkets(ctx context.Context) ([]types.NormalizedMarket, error) {
	result, err := c.cb.Execute(func() (any, error) { return c.inner.ListMarkets(ctx) })
	if err != nil {
		return nil, err
	}
	return result.([]types.NormalizedMarket), nil
}

func (c *BreakerClient) GetOrderBook(ctx context.Context, marketID, outcomeID string) (types.OrderBook, error) {
	result, err := c.cb.Execute(func() (any, error) { return c.inner.GetOrderBook(ctx, marketID, outcomeID) })
	if err != nil {
		return types.OrderBook{}, err
	}
	return result.(types.OrderBook), nil
}

func (c *BreakerClient) SubscribeBookUpdates(ctx context.Context) (<-chan types.OrderBook, error) {
	return c.inner.SubscribeBookUpdates(ctx)
}

func (c *BreakerClient) SubscribeTrades(ctx context.Context) (<-chan types.DetectedTrade, error) {
	return c.inner.SubscribeTrades(ctx)
}

func (c *BreakerClient) PlaceOrder(ctx context.Context, order types.Order) (types.Order, error) {
	result, err := c.cb.Execute(func() (any, error) { return c.inner.PlaceOrder(ctx, order) })
	if err != nil {
		return types.Order{}, err
	}
	return result.(types.Order), nil
}

func (c *BreakerClient) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.cb.Execute(func() (any, error) { return nil, c.inner.CancelOrder(ctx, orderID) })
	return err
}

func (c *BreakerClient) GetOrder(ctx context.Context, orderID string) (types.Order, error) {
	result, err := c.cb.Execute(func() (any, error) { return c.inner.GetOrder(ctx, orderID) })
	if err != nil {
		return types.Order{}, err
	}
	return result.(types.Order), nil
}

func (c *BreakerClient) GetBalance(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	type balance struct {
		usd, feeBps decimal.Decimal
	}
	result, err := c.cb.Execute(func() (any, error) {
		usd, feeBps, err := c.inner.GetBalance(ctx)
		return balance{usd, feeBps}, err
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	b := result.(balance)
	return b.usd, b.feeBps, nil
}
