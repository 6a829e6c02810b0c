// Package execution owns the order lifecycle, risk checks, and
// paper-trading simulation for single-leg orders routed to a venue.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/apperr"
	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/internal/events"
	"github.com/atlas-desktop/prediction-engine/internal/venue"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// validTransitions is the order lifecycle state machine. Any transition
// not present here is logged and ignored rather than applied, per the
// engine's invariant that an order's status only ever moves forward
// along this DAG.
var validTransitions = map[types.OrderStatus][]types.OrderStatus{
	types.OrderStatusPending: {types.OrderStatusOpen, types.OrderStatusRejected},
	types.OrderStatusOpen:    {types.OrderStatusPartial, types.OrderStatusFilled, types.OrderStatusCancelled},
	types.OrderStatusPartial: {types.OrderStatusPartial, types.OrderStatusFilled, types.OrderStatusCancelled},
}

func isValidTransition(from, to types.OrderStatus) bool {
	if from == to && from == types.OrderStatusPartial {
		return true // repeated partial fills are a self-loop
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderManager tracks every order the engine has placed, validates status
// transitions against the lifecycle DAG, and maintains positions derived
// from fills.
type OrderManager struct {
	logger *zap.Logger
	clock  clock.Clock
	bus    *events.Bus

	mu        sync.RWMutex
	orders    map[string]types.Order
	positions map[string]types.Position // keyed by platform:marketId:outcomeId
	clients   map[types.Platform]venue.Client
}

// NewOrderManager constructs an OrderManager.
func NewOrderManager(logger *zap.Logger, clk clock.Clock, bus *events.Bus) *OrderManager {
	return &OrderManager{
		logger:    logger.Named("order-manager"),
		clock:     clk,
		bus:       bus,
		orders:    make(map[string]types.Order),
		positions: make(map[string]types.Position),
		clients:   make(map[types.Platform]venue.Client),
	}
}

// AddClient registers the venue client an open order for its platform is
// cancelled through.
func (om *OrderManager) AddClient(c venue.Client) {
	om.mu.Lock()
	defer om.mu.Unlock()
	om.clients[c.Platform()] = c
}

// Track begins tracking a new order in the pending state.
func (om *OrderManager) Track(order types.Order) types.Order {
	order.Status = types.OrderStatusPending
	order.CreatedAt = om.clock.Now()
	order.UpdatedAt = order.CreatedAt

	om.mu.Lock()
	om.orders[order.ID] = order
	om.mu.Unlock()

	om.logger.Info("tracking order",
		zap.String("orderId", order.ID), zap.String("marketId", order.MarketID),
		zap.String("side", string(order.Side)))
	return order
}

// Transition attempts to move an order to a new status. Invalid
// transitions are logged and ignored; the current order state is always
// returned.
func (om *OrderManager) Transition(orderID string, to types.OrderStatus) (types.Order, error) {
	om.mu.Lock()
	order, ok := om.orders[orderID]
	if !ok {
		om.mu.Unlock()
		return types.Order{}, fmt.Errorf("order %s not tracked", orderID)
	}
	from := order.Status
	if !isValidTransition(from, to) {
		om.mu.Unlock()
		om.logger.Warn("ignoring invalid order transition",
			zap.String("orderId", orderID), zap.String("from", string(from)), zap.String("to", string(to)))
		return order, nil
	}
	order.Status = to
	order.UpdatedAt = om.clock.Now()
	if to == types.OrderStatusFilled {
		t := order.UpdatedAt
		order.FilledAt = &t
	}
	om.orders[orderID] = order
	om.mu.Unlock()

	if om.bus != nil {
		om.bus.Publish(events.OrderStatusEvent{
			BaseEvent: events.BaseEvent{ID: orderID, Type: events.EventTypeOrderStatus, Timestamp: order.UpdatedAt},
			Order:     order,
			Previous:  from,
		})
	}
	return order, nil
}

// RecordFill applies a fill to a tracked order: updates filled size,
// average fill price, transitions status to partial/filled, and updates
// the derived position.
func (om *OrderManager) RecordFill(orderID string, price, size, fee decimal.Decimal) (types.Order, types.Trade, error) {
	om.mu.Lock()
	order, ok := om.orders[orderID]
	if !ok {
		om.mu.Unlock()
		return types.Order{}, types.Trade{}, fmt.Errorf("order %s not tracked", orderID)
	}
	if order.Status != types.OrderStatusOpen && order.Status != types.OrderStatusPartial {
		om.mu.Unlock()
		return order, types.Trade{}, fmt.Errorf("order %s not fillable in status %s", orderID, order.Status)
	}

	prevNotional := order.AvgFillPrice.Mul(order.FilledSize)
	order.FilledSize = order.FilledSize.Add(size)
	order.AvgFillPrice = prevNotional.Add(price.Mul(size)).Div(order.FilledSize)
	now := om.clock.Now()
	order.UpdatedAt = now

	to := types.OrderStatusPartial
	if order.FilledSize.GreaterThanOrEqual(order.Size) {
		to = types.OrderStatusFilled
		order.FilledAt = &now
	}
	order.Status = to
	om.orders[orderID] = order
	om.mu.Unlock()

	om.applyFillToPosition(order, price, size)

	trade := types.Trade{
		OrderID:    order.ID,
		Platform:   order.Platform,
		MarketID:   order.MarketID,
		OutcomeID:  order.OutcomeID,
		Side:       order.Side,
		Price:      price,
		Size:       size,
		Fee:        fee,
		ExecutedAt: now,
	}

	if om.bus != nil {
		om.bus.Publish(events.TradeUpdateEvent{
			BaseEvent: events.BaseEvent{ID: order.ID, Type: events.EventTypeTradeUpdate, Timestamp: now},
			Trade:     trade,
		})
		om.bus.Publish(events.OrderStatusEvent{
			BaseEvent: events.BaseEvent{ID: order.ID, Type: events.EventTypeOrderStatus, Timestamp: now},
			Order:     order,
			Previous:  types.OrderStatusOpen,
		})
	}

	return order, trade, nil
}

func positionKey(platform types.Platform, marketID, outcomeID string) string {
	return string(platform) + ":" + marketID + ":" + outcomeID
}

func (om *OrderManager) applyFillToPosition(order types.Order, price, size decimal.Decimal) {
	key := positionKey(order.Platform, order.MarketID, order.OutcomeID)
	signedSize := size
	if order.Side == types.OrderSideSell {
		signedSize = size.Neg()
	}

	om.mu.Lock()
	defer om.mu.Unlock()

	pos, exists := om.positions[key]
	now := om.clock.Now()
	if !exists {
		pos = types.Position{
			Platform: order.Platform, MarketID: order.MarketID, OutcomeID: order.OutcomeID,
			OpenedAt: now,
		}
	}

	newSize := pos.Size.Add(signedSize)
	switch {
	case pos.Size.IsZero() || pos.Size.Sign() == signedSize.Sign():
		// opening or adding to a position in the same direction
		totalNotional := pos.AvgEntryPrice.Mul(pos.Size.Abs()).Add(price.Mul(size))
		pos.AvgEntryPrice = totalNotional.Div(newSize.Abs())
	case newSize.Sign() != pos.Size.Sign() && !newSize.IsZero():
		// flipped through zero: realize the old side, re-open at fill price
		pos.RealizedPnL = pos.RealizedPnL.Add(price.Sub(pos.AvgEntryPrice).Mul(pos.Size.Abs()).Mul(decimal.NewFromInt(int64(pos.Size.Sign()))))
		pos.AvgEntryPrice = price
	default:
		// reducing or closing: realize proportional PnL
		closedSize := decimal.Min(pos.Size.Abs(), size)
		pos.RealizedPnL = pos.RealizedPnL.Add(price.Sub(pos.AvgEntryPrice).Mul(closedSize).Mul(decimal.NewFromInt(int64(pos.Size.Sign()))))
	}
	pos.Size = newSize
	pos.UpdatedAt = now
	om.positions[key] = pos
}

// GetOrder returns a tracked order by ID.
func (om *OrderManager) GetOrder(orderID string) (types.Order, bool) {
	om.mu.RLock()
	defer om.mu.RUnlock()
	o, ok := om.orders[orderID]
	return o, ok
}

// OpenOrders returns every order not yet in a terminal state.
func (om *OrderManager) OpenOrders() []types.Order {
	om.mu.RLock()
	defer om.mu.RUnlock()
	out := make([]types.Order, 0)
	for _, o := range om.orders {
		switch o.Status {
		case types.OrderStatusPending, types.OrderStatusOpen, types.OrderStatusPartial:
			out = append(out, o)
		}
	}
	return out
}

// CancelOrder cancels a single tracked order through its venue client and
// transitions it to cancelled on success. Orders already in a terminal
// state are left untouched.
func (om *OrderManager) CancelOrder(ctx context.Context, orderID string) error {
	om.mu.RLock()
	order, ok := om.orders[orderID]
	client, hasClient := om.clients[order.Platform]
	om.mu.RUnlock()
	if !ok {
		return fmt.Errorf("order %s not tracked", orderID)
	}
	switch order.Status {
	case types.OrderStatusFilled, types.OrderStatusCancelled, types.OrderStatusRejected:
		return nil
	}
	if !hasClient {
		return &apperr.ConfigError{Reason: fmt.Sprintf("no venue client registered for platform %s", order.Platform)}
	}
	if err := client.CancelOrder(ctx, orderID); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, &apperr.TransportError{Reason: err.Error()})
	}
	_, err := om.Transition(orderID, types.OrderStatusCancelled)
	return err
}

// CancelAllOrders cancels every tracked order not yet in a terminal state.
// It is the operation the kill switch and engine shutdown drive: it keeps
// going after an individual cancel fails so one unreachable venue can't
// block cancellation of orders on another.
func (om *OrderManager) CancelAllOrders(ctx context.Context) error {
	open := om.OpenOrders()
	var firstErr error
	for _, o := range open {
		if err := om.CancelOrder(ctx, o.ID); err != nil {
			om.logger.Error("failed to cancel order",
				zap.String("orderId", o.ID), zap.String("platform", string(o.Platform)), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// GetPosition returns the current position for an outcome.
func (om *OrderManager) GetPosition(platform types.Platform, marketID, outcomeID string) (types.Position, bool) {
	om.mu.RLock()
	defer om.mu.RUnlock()
	p, ok := om.positions[positionKey(platform, marketID, outcomeID)]
	return p, ok
}

// AllPositions returns every currently tracked position.
func (om *OrderManager) AllPositions() []types.Position {
	om.mu.RLock()
	defer om.mu.RUnlock()
	out := make([]types.Position, 0, len(om.positions))
	for _, p := range om.positions {
		out = append(out, p)
	}
	return out
}

// Stats summarizes order manager state for the admin surface.
type Stats struct {
	TotalOrders     int
	OpenOrders      int
	FilledOrders    int
	CancelledOrders int
	RejectedOrders  int
	TotalPositions  int
}

// Stats computes current order/position counts.
func (om *OrderManager) Stats() Stats {
	om.mu.RLock()
	defer om.mu.RUnlock()
	s := Stats{TotalOrders: len(om.orders), TotalPositions: len(om.positions)}
	for _, o := range om.orders {
		switch o.Status {
		case types.OrderStatusPending, types.OrderStatusOpen, types.OrderStatusPartial:
			s.OpenOrders++
		case types.OrderStatusFilled:
			s.FilledOrders++
		case types.OrderStatusCancelled:
			s.CancelledOrders++
		case types.OrderStatusRejected:
			s.RejectedOrders++
		}
	}
	return s
}

// CleanupOldOrders removes terminal orders older than maxAge, bounding
// unbounded memory growth the way the teacher's equivalent does.
func (om *OrderManager) CleanupOldOrders(maxAge time.Duration) int {
	om.mu.Lock()
	defer om.mu.Unlock()
	cutoff := om.clock.Now().Add(-maxAge)
	removed := 0
	for id, o := range om.orders {
		switch o.Status {
		case types.OrderStatusFilled, types.OrderStatusCancelled, types.OrderStatusRejected:
			if o.UpdatedAt.Before(cutoff) {
				delete(om.orders, id)
				removed++
			}
		}
	}
	return removed
}
