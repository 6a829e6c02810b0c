package arbitrage

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atlas-desktop/prediction-engine/internal/apperr"
	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/internal/events"
	"github.com/atlas-desktop/prediction-engine/internal/execution"
	"github.com/atlas-desktop/prediction-engine/internal/venue"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

var (
	legsExecutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbitrage_legs_executed_total",
		Help: "Arbitrage legs executed, by platform and outcome.",
	}, []string{"platform", "result"})

	opportunitiesExecutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbitrage_opportunities_executed_total",
		Help: "Arbitrage opportunities executed, by outcome.",
	}, []string{"result"})
)

// Result summarizes the outcome of executing one opportunity.
type Result struct {
	OpportunityID  string
	Success        bool
	Orders         []types.Order
	RealizedUSD    decimal.Decimal
	Error          error
}

// Executor places every leg of an arbitrage opportunity concurrently and,
// if any leg fails or cannot be confirmed within its timeout, asks the
// venue to cancel the legs that did land, since a one-sided fill turns a
// hedge into a naked directional bet.
type Executor struct {
	logger        *zap.Logger
	clock         clock.Clock
	single        *execution.Executor
	clients       map[types.Platform]venue.Client
	bus           *events.Bus
	legFillTimeout time.Duration
}

// NewExecutor constructs an arbitrage Executor. single is the same
// single-leg executor used for strategy-driven orders, so risk limits
// and position bookkeeping stay unified across both paths.
func NewExecutor(logger *zap.Logger, clk clock.Clock, single *execution.Executor, bus *events.Bus) *Executor {
	return &Executor{
		logger:         logger.Named("arbitrage-executor"),
		clock:          clk,
		single:         single,
		clients:        make(map[types.Platform]venue.Client),
		bus:            bus,
		legFillTimeout: 5 * time.Second,
	}
}

// AddClient registers a venue client used for leg cancellation on a
// failed unwind.
func (e *Executor) AddClient(c venue.Client) {
	e.clients[c.Platform()] = c
}

// Execute places every leg of opp concurrently via errgroup, so a
// two-venue opportunity does not pay one leg's full round-trip latency
// before starting the other.
func (e *Executor) Execute(ctx context.Context, opp types.ArbitrageOpportunity) Result {
	if !opp.ExpiresAt.IsZero() && e.clock.Now().After(opp.ExpiresAt) {
		err := &apperr.ExecutionError{Reason: "opportunity expired before execution"}
		e.logger.Warn("skipping expired arbitrage opportunity",
			zap.String("opportunityId", opp.ID), zap.Time("expiresAt", opp.ExpiresAt))
		opportunitiesExecutedTotal.WithLabelValues("expired").Inc()
		return Result{OpportunityID: opp.ID, Success: false, Error: err}
	}

	ctx, cancel := context.WithTimeout(ctx, e.legFillTimeout)
	defer cancel()

	orders := make([]types.Order, len(opp.Legs))
	g, gctx := errgroup.WithContext(ctx)

	for i, leg := range opp.Legs {
		i, leg := i, leg
		g.Go(func() error {
			order := types.Order{
				Platform:  leg.Platform,
				MarketID:  leg.MarketID,
				OutcomeID: leg.OutcomeID,
				Side:      leg.Side,
				Type:      types.OrderTypeIOC,
				Price:     leg.Price,
				Size:      leg.Size,
				Tag:       opp.ID,
			}
			placed, err := e.single.Route(gctx, order, decimal.Zero)
			if err != nil {
				legsExecutedTotal.WithLabelValues(string(leg.Platform), "error").Inc()
				return fmt.Errorf("leg %d (%s %s): %w", i, leg.Platform, leg.OutcomeID, err)
			}
			if placed.Status != types.OrderStatusFilled && placed.Status != types.OrderStatusPartial {
				legsExecutedTotal.WithLabelValues(string(leg.Platform), "unfilled").Inc()
				return fmt.Errorf("leg %d (%s %s): %w", i, leg.Platform, leg.OutcomeID,
					&apperr.ExecutionError{Reason: fmt.Sprintf("leg settled in status %s, expected a fill", placed.Status)})
			}
			legsExecutedTotal.WithLabelValues(string(leg.Platform), "filled").Inc()
			orders[i] = placed
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Error("arbitrage execution failed, unwinding filled legs",
			zap.String("opportunityId", opp.ID), zap.Error(err))
		e.unwind(ctx, orders)
		opportunitiesExecutedTotal.WithLabelValues("failed").Inc()
		if e.bus != nil {
			e.bus.Publish(events.OpportunityEvent{
				BaseEvent:   events.BaseEvent{ID: opp.ID, Type: events.EventTypeOpportunity, Timestamp: e.clock.Now()},
				Opportunity: opp,
				Executed:    false,
			})
		}
		return Result{OpportunityID: opp.ID, Success: false, Orders: orders, Error: err}
	}

	realized := realizedUSD(opp, orders)
	opportunitiesExecutedTotal.WithLabelValues("success").Inc()
	if e.bus != nil {
		e.bus.Publish(events.OpportunityEvent{
			BaseEvent:   events.BaseEvent{ID: opp.ID, Type: events.EventTypeOpportunity, Timestamp: e.clock.Now()},
			Opportunity: opp,
			Executed:    true,
		})
	}
	return Result{OpportunityID: opp.ID, Success: true, Orders: orders, RealizedUSD: realized}
}

// unwind asks each landed leg's venue client to cancel it, on a
// best-effort basis, after the opportunity as a whole could not be
// completed. It places no offsetting order, so a leg that has already
// filled keeps its position.
func (e *Executor) unwind(ctx context.Context, orders []types.Order) {
	for _, o := range orders {
		if o.ID == "" || o.Status == types.OrderStatusRejected {
			continue
		}
		client, ok := e.clients[o.Platform]
		if !ok {
			continue
		}
		if err := client.CancelOrder(ctx, o.ID); err != nil {
			e.logger.Warn("failed to cancel leg during unwind",
				zap.String("orderId", o.ID), zap.String("platform", string(o.Platform)), zap.Error(err))
		}
	}
}

// realizedUSD sums the notional captured by the opportunity's margin
// across whatever size actually filled, which may be less than the
// opportunity's originally quoted MaxSize.
func realizedUSD(opp types.ArbitrageOpportunity, orders []types.Order) decimal.Decimal {
	minFilled := opp.MaxSize
	for _, o := range orders {
		if o.FilledSize.LessThan(minFilled) {
			minFilled = o.FilledSize
		}
	}
	if minFilled.IsNegative() {
		minFilled = decimal.Zero
	}
	return minFilled.Mul(opp.NetMarginBps).Div(decimal.NewFromInt(10000))
}
