// Package events provides the engine's internal event bus: a worker-pool
// backed fan-out of typed events (book updates, signals, opportunities,
// order status changes, health changes) to interested subscribers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// EventType categorizes an Event.
type EventType string

const (
	EventTypeBookUpdate    EventType = "book_update"
	EventTypeTradeUpdate   EventType = "trade_update"
	EventTypeSignal        EventType = "signal"
	EventTypeOpportunity   EventType = "opportunity_detected"
	EventTypeOrderStatus   EventType = "order_status_changed"
	EventTypeHealthChanged EventType = "health_changed"
)

// Event is the base interface every published event satisfies.
type Event interface {
	GetType() EventType
	GetTimestamp() time.Time
	GetID() string
}

// BaseEvent provides the common Event fields and methods.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) GetType() EventType      { return e.Type }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetID() string           { return e.ID }

// BookUpdateEvent wraps a venue order book change.
type BookUpdateEvent struct {
	BaseEvent
	Book types.OrderBook `json:"book"`
}

// TradeUpdateEvent wraps a fill observed on a tracked order or wallet.
type TradeUpdateEvent struct {
	BaseEvent
	Trade types.Trade `json:"trade"`
}

// SignalEvent wraps a strategy-generated signal.
type SignalEvent struct {
	BaseEvent
	Signal types.Signal `json:"signal"`
}

// OpportunityEvent wraps a detected arbitrage opportunity. Executed is
// false for the initial detection event and true when the executor
// later reports the opportunity as filled (or failed to unwind).
type OpportunityEvent struct {
	BaseEvent
	Opportunity types.ArbitrageOpportunity `json:"opportunity"`
	Executed    bool                       `json:"executed"`
}

// OrderStatusEvent wraps an order lifecycle transition.
type OrderStatusEvent struct {
	BaseEvent
	Order    types.Order       `json:"order"`
	Previous types.OrderStatus `json:"previousStatus"`
}

// HealthChangedEvent wraps a change to the engine's overall health state.
type HealthChangedEvent struct {
	BaseEvent
	Healthy bool   `json:"healthy"`
	Reason  string `json:"reason"`
}

// Handler processes one event. Handlers must not block indefinitely; the
// bus recovers from panics but does not enforce a timeout.
type Handler func(Event)

// Subscription is a live registration returned by Subscribe.
type Subscription struct {
	id     uint64
	etype  EventType
	handler Handler
	active atomic.Bool
}

// Cancel deactivates the subscription; in-flight dispatches already routed
// to it still complete.
func (s *Subscription) Cancel() {
	s.active.Store(false)
}

// Config tunes the bus's worker pool and buffering.
type Config struct {
	NumWorkers int
	BufferSize int
}

// DefaultConfig returns sensible defaults for a single-process engine.
func DefaultConfig() Config {
	return Config{NumWorkers: 8, BufferSize: 4096}
}

// Stats reports bus throughput counters.
type Stats struct {
	Published uint64
	Dispatched uint64
	Dropped    uint64
}

// Bus is the worker-pool backed event bus.
type Bus struct {
	logger *zap.Logger
	cfg    Config

	queue chan Event

	mu   sync.RWMutex
	subs map[EventType][]*Subscription
	all  []*Subscription

	nextID uint64

	published  atomic.Uint64
	dispatched atomic.Uint64
	dropped    atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewBus constructs and starts a Bus with its worker pool running.
func NewBus(logger *zap.Logger, cfg Config) *Bus {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = DefaultConfig().NumWorkers
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	b := &Bus{
		logger: logger.Named("event-bus"),
		cfg:    cfg,
		queue:  make(chan Event, cfg.BufferSize),
		subs:   make(map[EventType][]*Subscription),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < cfg.NumWorkers; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}
	return b
}

// Subscribe registers handler for events of the given type. Pass "" to
// receive every event type.
func (b *Bus) Subscribe(etype EventType, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{id: b.nextID, etype: etype, handler: handler}
	sub.active.Store(true)
	if etype == "" {
		b.all = append(b.all, sub)
	} else {
		b.subs[etype] = append(b.subs[etype], sub)
	}
	return sub
}

// Publish enqueues an event for asynchronous dispatch. If the internal
// queue is full the event is dropped and counted rather than blocking the
// publisher.
func (b *Bus) Publish(e Event) {
	b.published.Add(1)
	select {
	case b.queue <- e:
	default:
		b.dropped.Add(1)
		b.logger.Warn("event queue full, dropping event",
			zap.String("type", string(e.GetType())), zap.String("id", e.GetID()))
	}
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		case e := <-b.queue:
			b.dispatch(e)
		}
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	targeted := append([]*Subscription(nil), b.subs[e.GetType()]...)
	broad := append([]*Subscription(nil), b.all...)
	b.mu.RUnlock()

	for _, sub := range targeted {
		b.invoke(sub, e)
	}
	for _, sub := range broad {
		b.invoke(sub, e)
	}
}

func (b *Bus) invoke(sub *Subscription, e Event) {
	if !sub.active.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.Any("recovered", r), zap.String("type", string(e.GetType())))
		}
	}()
	sub.handler(e)
	b.dispatched.Add(1)
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:  b.published.Load(),
		Dispatched: b.dispatched.Load(),
		Dropped:    b.dropped.Load(),
	}
}

// Stop drains in-flight dispatches and shuts the worker pool down. Safe to
// call more than once.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	b.wg.Wait()
}
