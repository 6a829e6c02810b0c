package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/internal/events"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// fakeVenueClient implements venue.Client minimally for executor tests.
type fakeVenueClient struct {
	platform  types.Platform
	placeErr  error
	fillPrice decimal.Decimal
	fillSize  decimal.Decimal
}

func (f *fakeVenueClient) Platform() types.Platform                     { return f.platform }
func (f *fakeVenueClient) Connect(ctx context.Context) error            { return nil }
func (f *fakeVenueClient) Disconnect(ctx context.Context) error         { return nil }
func (f *fakeVenueClient) ListMarkets(ctx context.Context) ([]types.NormalizedMarket, error) {
	return nil, nil
}
func (f *fakeVenueClient) GetOrderBook(ctx context.Context, marketID, outcomeID string) (types.OrderBook, error) {
	return types.OrderBook{}, nil
}
func (f *fakeVenueClient) SubscribeBookUpdates(ctx context.Context) (<-chan types.OrderBook, error) {
	return nil, nil
}
func (f *fakeVenueClient) SubscribeTrades(ctx context.Context) (<-chan types.DetectedTrade, error) {
	return nil, nil
}
func (f *fakeVenueClient) PlaceOrder(ctx context.Context, order types.Order) (types.Order, error) {
	if f.placeErr != nil {
		return types.Order{}, f.placeErr
	}
	order.FilledSize = f.fillSize
	order.AvgFillPrice = f.fillPrice
	return order, nil
}
func (f *fakeVenueClient) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (f *fakeVenueClient) GetOrder(ctx context.Context, orderID string) (types.Order, error) {
	return types.Order{ID: orderID}, nil
}
func (f *fakeVenueClient) GetBalance(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.NewFromInt(1000), decimal.Zero, nil
}

func newTestExecutor(isPaper bool) *Executor {
	mock := clock.NewMock(time.Now())
	bus := events.NewBus(zap.NewNop(), events.Config{NumWorkers: 1, BufferSize: 16})
	risk := NewRiskManager(zap.NewNop(), mock, types.RiskLimits{
		MaxPositionUSD: decimal.NewFromInt(10000), MaxOpenPositions: 100,
		MaxDailyLossUSD: decimal.NewFromInt(10000), MaxExposurePerMarket: decimal.NewFromInt(10000),
		MinOrderSizeUSD: decimal.NewFromInt(1),
	})
	orders := NewOrderManager(zap.NewNop(), mock, bus)
	paper := NewPaperSimulator(zap.NewNop(), mock, deterministicFillConfig())
	return NewExecutor(zap.NewNop(), mock, risk, orders, paper, isPaper)
}

func testOrder() types.Order {
	return types.Order{ID: "o1", Platform: types.PlatformVenueA, MarketID: "m1", OutcomeID: "yes",
		Side: types.OrderSideBuy, Price: decimal.NewFromFloat(0.5), Size: decimal.NewFromInt(10)}
}

func TestRouteRejectsOrderFailingRiskCheck(t *testing.T) {
	e := newTestExecutor(true)
	tiny := testOrder()
	tiny.Price = decimal.NewFromFloat(0.001)
	tiny.Size = decimal.NewFromFloat(0.001) // notional well under MinOrderSizeUSD

	_, err := e.Route(context.Background(), tiny, decimal.Zero)
	if err == nil {
		t.Fatal("expected a risk rejection error")
	}
}

func TestRouteFillsThroughPaperSimulator(t *testing.T) {
	e := newTestExecutor(true)
	got, err := e.Route(context.Background(), testOrder(), decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != types.OrderStatusFilled {
		t.Errorf("expected filled status in paper mode, got %s", got.Status)
	}
}

func TestRouteRejectsWhenNoClientRegisteredForPlatform(t *testing.T) {
	e := newTestExecutor(false) // live mode, no clients added
	_, err := e.Route(context.Background(), testOrder(), decimal.Zero)
	if err == nil {
		t.Fatal("expected a config error when no venue client is registered")
	}
}

func TestRouteSucceedsThroughLiveClient(t *testing.T) {
	e := newTestExecutor(false)
	e.AddClient(&fakeVenueClient{platform: types.PlatformVenueA, fillPrice: decimal.NewFromFloat(0.5), fillSize: decimal.NewFromInt(10)})

	got, err := e.Route(context.Background(), testOrder(), decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != types.OrderStatusFilled {
		t.Errorf("expected filled status after a live full fill, got %s", got.Status)
	}
}

func TestRouteMarksRejectedWhenLiveClientErrors(t *testing.T) {
	e := newTestExecutor(false)
	e.AddClient(&fakeVenueClient{platform: types.PlatformVenueA, placeErr: errors.New("connection reset")})

	got, err := e.Route(context.Background(), testOrder(), decimal.Zero)
	if err == nil {
		t.Fatal("expected an error when the venue client rejects placement")
	}
	if got.Status != types.OrderStatusRejected {
		t.Errorf("expected rejected status, got %s", got.Status)
	}
}
