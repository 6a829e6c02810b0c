package execution

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/apperr"
	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/internal/venue"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
	"github.com/atlas-desktop/prediction-engine/pkg/utils"
)

var (
	ordersRoutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "executor_orders_routed_total",
		Help: "Orders routed to a venue or the paper simulator, by platform and outcome.",
	}, []string{"platform", "outcome"})

	orderRouteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "executor_order_route_errors_total",
		Help: "Order routing failures by classified reason.",
	}, []string{"reason"})
)

// Executor routes a single-leg order through risk checks to either a
// venue client or the paper simulator, and records the outcome with the
// order manager. It is the single-order counterpart to the two-leg
// atomic arbitrage executor in internal/arbitrage.
type Executor struct {
	logger  *zap.Logger
	clock   clock.Clock
	clients map[types.Platform]venue.Client
	risk    *RiskManager
	orders  *OrderManager
	paper   *PaperSimulator
	isPaper bool
}

// NewExecutor constructs an Executor. When isPaper is true, orders never
// reach a live venue client and are instead filled by paper.
func NewExecutor(logger *zap.Logger, clk clock.Clock, risk *RiskManager, orders *OrderManager, paper *PaperSimulator, isPaper bool) *Executor {
	return &Executor{
		logger:  logger.Named("executor"),
		clock:   clk,
		clients: make(map[types.Platform]venue.Client),
		risk:    risk,
		orders:  orders,
		paper:   paper,
		isPaper: isPaper,
	}
}

// AddClient registers a venue client the executor may route live orders to.
func (e *Executor) AddClient(c venue.Client) {
	e.clients[c.Platform()] = c
}

// Route submits order through the risk gate and then to either the paper
// simulator or the venue client for its platform.
func (e *Executor) Route(ctx context.Context, order types.Order, volatility decimal.Decimal) (types.Order, error) {
	if allowed, reason := e.risk.CheckOrder(order); !allowed {
		orderRouteErrorsTotal.WithLabelValues("risk_rejection").Inc()
		return types.Order{}, &apperr.RiskRejectionError{Reason: reason}
	}

	tracked := e.orders.Track(order)

	if e.isPaper {
		fill, err := e.paper.Execute(tracked, volatility)
		if err != nil {
			orderRouteErrorsTotal.WithLabelValues("paper_execution").Inc()
			tracked, _ = e.orders.Transition(tracked.ID, types.OrderStatusRejected)
			return tracked, fmt.Errorf("paper execution: %w", err)
		}
		tracked, _ = e.orders.Transition(tracked.ID, types.OrderStatusOpen)
		e.risk.RecordOrderOpened(tracked)
		if !fill.Filled {
			return tracked, nil
		}
		tracked, _, err = e.orders.RecordFill(tracked.ID, fill.FillPrice, fill.FilledSize, fill.Fee)
		if err != nil {
			return tracked, err
		}
		ordersRoutedTotal.WithLabelValues(string(order.Platform), order.OutcomeID).Inc()
		return tracked, nil
	}

	client, ok := e.clients[order.Platform]
	if !ok {
		orderRouteErrorsTotal.WithLabelValues("config").Inc()
		tracked, _ = e.orders.Transition(tracked.ID, types.OrderStatusRejected)
		return tracked, &apperr.ConfigError{Reason: fmt.Sprintf("no venue client registered for platform %s", order.Platform)}
	}

	placed, err := utils.Retry(utils.DefaultRetryConfig(), func() (types.Order, error) {
		return client.PlaceOrder(ctx, tracked)
	})
	if err != nil {
		orderRouteErrorsTotal.WithLabelValues(apperr.Classify(err)).Inc()
		tracked, _ = e.orders.Transition(tracked.ID, types.OrderStatusRejected)
		return tracked, fmt.Errorf("place order: %w", &apperr.TransportError{Reason: err.Error()})
	}
	tracked, _ = e.orders.Transition(tracked.ID, types.OrderStatusOpen)
	e.risk.RecordOrderOpened(tracked)

	ordersRoutedTotal.WithLabelValues(string(order.Platform), order.OutcomeID).Inc()
	if !placed.FilledSize.IsZero() {
		tracked, _, err = e.orders.RecordFill(tracked.ID, placed.AvgFillPrice, placed.FilledSize, decimal.Zero)
		if err != nil {
			return tracked, err
		}
	}
	return tracked, nil
}
