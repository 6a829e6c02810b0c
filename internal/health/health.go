// Package health owns the engine's kill switch and component liveness
// tracking. Unlike the risk manager's per-order limit checks, a kill
// switch trip is a global halt: once tripped it stays latched until an
// operator explicitly re-arms it, never on an automatic cooldown timer.
package health

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/internal/events"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

var (
	killSwitchTripped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "health_kill_switch_tripped",
		Help: "1 if the kill switch is currently latched, 0 otherwise.",
	})

	componentHeartbeatAge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_component_heartbeat_age_seconds",
		Help: "Seconds since each component last reported a heartbeat.",
	}, []string{"component"})
)

// TripReason names why the kill switch latched.
type TripReason string

const (
	TripReasonDailyLoss       TripReason = "max_daily_loss"
	TripReasonDrawdown        TripReason = "max_drawdown"
	TripReasonConsecutiveLoss TripReason = "max_consecutive_losses"
	TripReasonVenueErrorRate  TripReason = "venue_error_rate"
	TripReasonInternalErrors  TripReason = "internal_error_rate"
	TripReasonHeartbeatStale  TripReason = "heartbeat_stale"
	TripReasonManual          TripReason = "manual"
)

// TripEvent records one kill-switch trip for the audit log.
type TripEvent struct {
	Reason    TripReason
	Detail    string
	TrippedAt time.Time
}

// RearmEvent records an operator's explicit re-arm.
type RearmEvent struct {
	Operator  string
	RearmedAt time.Time
}

// window is a slice of timestamped booleans, trimmed on each record to
// the trailing duration, used to compute an error rate over that duration.
type window struct {
	events   []windowEvent
	duration time.Duration
}

type windowEvent struct {
	at  time.Time
	err bool
}

func (w *window) record(now time.Time, isErr bool) {
	w.events = append(w.events, windowEvent{at: now, err: isErr})
	cutoff := now.Add(-w.duration)
	i := 0
	for ; i < len(w.events); i++ {
		if w.events[i].at.After(cutoff) {
			break
		}
	}
	w.events = w.events[i:]
}

func (w *window) rate() decimal.Decimal {
	if len(w.events) == 0 {
		return decimal.Zero
	}
	errs := 0
	for _, e := range w.events {
		if e.err {
			errs++
		}
	}
	return decimal.NewFromInt(int64(errs)).Div(decimal.NewFromInt(int64(len(w.events))))
}

// Monitor is the kill switch and liveness tracker. Callers feed it daily
// P&L, drawdown, consecutive-loss counts, venue/internal error outcomes,
// and component heartbeats; Monitor decides when to trip and stays
// latched until ReArm is called.
type Monitor struct {
	logger *zap.Logger
	clock  clock.Clock
	bus    *events.Bus
	cfg    types.KillSwitchConfig

	mu           sync.RWMutex
	tripped      bool
	trips        []TripEvent
	rearms       []RearmEvent
	venueErrors  *window
	internalErrs *window
	heartbeats   map[string]time.Time
}

// New constructs a Monitor.
func New(logger *zap.Logger, clk clock.Clock, bus *events.Bus, cfg types.KillSwitchConfig) *Monitor {
	if cfg.ErrorRateWindow == 0 {
		cfg.ErrorRateWindow = 5 * time.Minute
	}
	return &Monitor{
		logger:       logger.Named("health"),
		clock:        clk,
		bus:          bus,
		cfg:          cfg,
		venueErrors:  &window{duration: cfg.ErrorRateWindow},
		internalErrs: &window{duration: cfg.ErrorRateWindow},
		heartbeats:   make(map[string]time.Time),
	}
}

// IsTripped reports whether the kill switch is currently latched. When
// true, the engine must refuse to route new orders.
func (m *Monitor) IsTripped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tripped
}

// trip latches the kill switch and publishes a HealthChangedEvent. It is
// idempotent: re-tripping an already-tripped switch just appends a trip
// record for the audit trail.
func (m *Monitor) trip(reason TripReason, detail string) {
	now := m.clock.Now()
	m.mu.Lock()
	wasTripped := m.tripped
	m.tripped = true
	m.trips = append(m.trips, TripEvent{Reason: reason, Detail: detail, TrippedAt: now})
	m.mu.Unlock()

	killSwitchTripped.Set(1)
	m.logger.Error("kill switch tripped", zap.String("reason", string(reason)), zap.String("detail", detail))

	if !wasTripped && m.bus != nil {
		m.bus.Publish(events.HealthChangedEvent{
			BaseEvent: events.BaseEvent{ID: string(reason), Type: events.EventTypeHealthChanged, Timestamp: now},
			Healthy:   false,
			Reason:    detail,
		})
	}
}

// CheckDailyLoss trips the switch if realized loss exceeds the configured
// limit.
func (m *Monitor) CheckDailyLoss(realizedPnL decimal.Decimal) {
	if m.cfg.MaxDailyLossUSD.IsPositive() && realizedPnL.LessThan(m.cfg.MaxDailyLossUSD.Neg()) {
		m.trip(TripReasonDailyLoss, fmt.Sprintf("realized P&L %s breached limit -%s", realizedPnL, m.cfg.MaxDailyLossUSD))
	}
}

// CheckDrawdown trips the switch if drawdown-from-peak exceeds the
// configured percentage.
func (m *Monitor) CheckDrawdown(drawdownPct decimal.Decimal) {
	if m.cfg.MaxDrawdownPct.IsPositive() && drawdownPct.GreaterThanOrEqual(m.cfg.MaxDrawdownPct) {
		m.trip(TripReasonDrawdown, fmt.Sprintf("drawdown %s%% reached limit %s%%", drawdownPct, m.cfg.MaxDrawdownPct))
	}
}

// CheckConsecutiveLosses trips the switch once a losing streak reaches
// the configured threshold.
func (m *Monitor) CheckConsecutiveLosses(streak int) {
	if m.cfg.MaxConsecutiveLosses > 0 && streak >= m.cfg.MaxConsecutiveLosses {
		m.trip(TripReasonConsecutiveLoss, fmt.Sprintf("%d consecutive losses reached limit %d", streak, m.cfg.MaxConsecutiveLosses))
	}
}

// RecordVenueCall records a venue call outcome and trips the switch if
// the trailing error rate exceeds the configured threshold.
func (m *Monitor) RecordVenueCall(isErr bool) {
	now := m.clock.Now()
	m.mu.Lock()
	m.venueErrors.record(now, isErr)
	rate := m.venueErrors.rate()
	m.mu.Unlock()

	if m.cfg.MaxVenueErrorRate.IsPositive() && rate.GreaterThanOrEqual(m.cfg.MaxVenueErrorRate) {
		m.trip(TripReasonVenueErrorRate, fmt.Sprintf("venue error rate %s over %s window", rate, m.cfg.ErrorRateWindow))
	}
}

// RecordInternalError records an internal-fault outcome and trips the
// switch if the trailing error rate exceeds the configured threshold.
func (m *Monitor) RecordInternalError(isErr bool) {
	now := m.clock.Now()
	m.mu.Lock()
	m.internalErrs.record(now, isErr)
	rate := m.internalErrs.rate()
	m.mu.Unlock()

	if m.cfg.MaxInternalErrorRate.IsPositive() && rate.GreaterThanOrEqual(m.cfg.MaxInternalErrorRate) {
		m.trip(TripReasonInternalErrors, fmt.Sprintf("internal error rate %s over %s window", rate, m.cfg.ErrorRateWindow))
	}
}

// Heartbeat records that component last reported liveness at the current
// clock time.
func (m *Monitor) Heartbeat(component string) {
	now := m.clock.Now()
	m.mu.Lock()
	m.heartbeats[component] = now
	m.mu.Unlock()
	componentHeartbeatAge.WithLabelValues(component).Set(0)
}

// CheckHeartbeats trips the switch if any registered component has gone
// silent longer than HeartbeatTimeout. Intended to run on a ticker.
func (m *Monitor) CheckHeartbeats() {
	if m.cfg.HeartbeatTimeout == 0 {
		return
	}
	now := m.clock.Now()
	m.mu.RLock()
	stale := make([]string, 0)
	for component, last := range m.heartbeats {
		age := now.Sub(last)
		componentHeartbeatAge.WithLabelValues(component).Set(age.Seconds())
		if age > m.cfg.HeartbeatTimeout {
			stale = append(stale, component)
		}
	}
	m.mu.RUnlock()

	for _, component := range stale {
		m.trip(TripReasonHeartbeatStale, fmt.Sprintf("component %q has not reported a heartbeat within %s", component, m.cfg.HeartbeatTimeout))
	}
}

// Manual trips the switch on explicit operator command, independent of
// any configured threshold.
func (m *Monitor) Manual(detail string) {
	m.trip(TripReasonManual, detail)
}

// ReArm clears the kill switch. This is the only way to un-latch it:
// there is no automatic cooldown re-enable, by design.
func (m *Monitor) ReArm(operator string) {
	now := m.clock.Now()
	m.mu.Lock()
	m.tripped = false
	m.rearms = append(m.rearms, RearmEvent{Operator: operator, RearmedAt: now})
	m.mu.Unlock()

	killSwitchTripped.Set(0)
	m.logger.Warn("kill switch re-armed by operator", zap.String("operator", operator))

	if m.bus != nil {
		m.bus.Publish(events.HealthChangedEvent{
			BaseEvent: events.BaseEvent{ID: "rearm", Type: events.EventTypeHealthChanged, Timestamp: now},
			Healthy:   true,
			Reason:    fmt.Sprintf("re-armed by %s", operator),
		})
	}
}

// Trips returns a copy of every recorded trip event.
func (m *Monitor) Trips() []TripEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]TripEvent(nil), m.trips...)
}

// Snapshot summarizes current health state for the admin surface.
type Snapshot struct {
	Tripped    bool
	LastTrip   *TripEvent
	Heartbeats map[string]time.Time
}

// Snapshot returns a locked copy of current health state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hb := make(map[string]time.Time, len(m.heartbeats))
	for k, v := range m.heartbeats {
		hb[k] = v
	}
	var last *TripEvent
	if len(m.trips) > 0 {
		t := m.trips[len(m.trips)-1]
		last = &t
	}
	return Snapshot{Tripped: m.tripped, LastTrip: last, Heartbeats: hb}
}
