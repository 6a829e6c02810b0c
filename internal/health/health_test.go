package health

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/internal/events"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

func testCfg() types.KillSwitchConfig {
	return types.KillSwitchConfig{
		MaxDailyLossUSD:      decimal.NewFromInt(100),
		MaxDrawdownPct:       decimal.NewFromInt(20),
		MaxConsecutiveLosses: 3,
		MaxVenueErrorRate:    decimal.NewFromFloat(0.5),
		MaxInternalErrorRate: decimal.NewFromFloat(0.5),
		ErrorRateWindow:      time.Minute,
		HeartbeatTimeout:     30 * time.Second,
	}
}

func TestIsTrippedFalseInitially(t *testing.T) {
	m := New(zap.NewNop(), clock.NewMock(time.Now()), nil, testCfg())
	if m.IsTripped() {
		t.Error("expected kill switch to start untripped")
	}
}

func TestCheckDailyLossTripsOnBreach(t *testing.T) {
	m := New(zap.NewNop(), clock.NewMock(time.Now()), nil, testCfg())
	m.CheckDailyLoss(decimal.NewFromInt(-150))
	if !m.IsTripped() {
		t.Error("expected a daily loss breach to trip the switch")
	}
}

func TestCheckDailyLossDoesNotTripWithinLimit(t *testing.T) {
	m := New(zap.NewNop(), clock.NewMock(time.Now()), nil, testCfg())
	m.CheckDailyLoss(decimal.NewFromInt(-50))
	if m.IsTripped() {
		t.Error("expected no trip within the daily loss limit")
	}
}

func TestCheckDrawdownTripsAtThreshold(t *testing.T) {
	m := New(zap.NewNop(), clock.NewMock(time.Now()), nil, testCfg())
	m.CheckDrawdown(decimal.NewFromInt(20))
	if !m.IsTripped() {
		t.Error("expected drawdown at the configured threshold to trip")
	}
}

func TestCheckConsecutiveLossesTripsAtLimit(t *testing.T) {
	m := New(zap.NewNop(), clock.NewMock(time.Now()), nil, testCfg())
	m.CheckConsecutiveLosses(2)
	if m.IsTripped() {
		t.Fatal("expected no trip below the consecutive loss limit")
	}
	m.CheckConsecutiveLosses(3)
	if !m.IsTripped() {
		t.Error("expected a trip once the consecutive loss limit is reached")
	}
}

func TestRecordVenueCallTripsOnSustainedErrorRate(t *testing.T) {
	m := New(zap.NewNop(), clock.NewMock(time.Now()), nil, testCfg())
	for i := 0; i < 3; i++ {
		m.RecordVenueCall(true)
	}
	if !m.IsTripped() {
		t.Error("expected an all-error venue window to trip the switch")
	}
}

func TestRecordVenueCallDoesNotTripOnLowErrorRate(t *testing.T) {
	m := New(zap.NewNop(), clock.NewMock(time.Now()), nil, testCfg())
	for i := 0; i < 10; i++ {
		m.RecordVenueCall(false)
	}
	m.RecordVenueCall(true)
	if m.IsTripped() {
		t.Error("expected a low error rate to stay under threshold")
	}
}

func TestRecordVenueCallWindowExpires(t *testing.T) {
	mock := clock.NewMock(time.Now())
	m := New(zap.NewNop(), mock, nil, testCfg())

	// two successes first keep the error at a 1/3 rate, under the 0.5 limit
	m.RecordVenueCall(false)
	m.RecordVenueCall(false)
	m.RecordVenueCall(true)
	mock.Advance(2 * time.Minute) // past ErrorRateWindow, old error falls out of the window
	m.RecordVenueCall(false)
	m.RecordVenueCall(false)

	if m.IsTripped() {
		t.Error("expected the stale error to have aged out of the trailing window")
	}
	if rate := m.venueErrors.rate(); !rate.IsZero() {
		t.Errorf("expected a zero error rate once the old calls aged out, got %s", rate)
	}
}

func TestRecordInternalErrorTripsOnSustainedErrorRate(t *testing.T) {
	m := New(zap.NewNop(), clock.NewMock(time.Now()), nil, testCfg())
	for i := 0; i < 3; i++ {
		m.RecordInternalError(true)
	}
	if !m.IsTripped() {
		t.Error("expected an all-error internal window to trip the switch")
	}
}

func TestCheckHeartbeatsTripsOnStaleComponent(t *testing.T) {
	mock := clock.NewMock(time.Now())
	m := New(zap.NewNop(), mock, nil, testCfg())
	m.Heartbeat("matcher")

	mock.Advance(time.Minute) // past the 30s HeartbeatTimeout
	m.CheckHeartbeats()

	if !m.IsTripped() {
		t.Error("expected a stale heartbeat to trip the switch")
	}
}

func TestCheckHeartbeatsDoesNotTripWhileFresh(t *testing.T) {
	mock := clock.NewMock(time.Now())
	m := New(zap.NewNop(), mock, nil, testCfg())
	m.Heartbeat("matcher")

	mock.Advance(5 * time.Second)
	m.CheckHeartbeats()

	if m.IsTripped() {
		t.Error("expected no trip while the heartbeat is fresh")
	}
}

func TestManualTripsImmediately(t *testing.T) {
	m := New(zap.NewNop(), clock.NewMock(time.Now()), nil, testCfg())
	m.Manual("operator requested halt")
	if !m.IsTripped() {
		t.Error("expected a manual trip to latch the kill switch")
	}
	last := m.Snapshot().LastTrip
	if last == nil || last.Reason != TripReasonManual {
		t.Errorf("expected last trip reason %q, got %+v", TripReasonManual, last)
	}
}

func TestReArmClearsTripAndDoesNotAutoReTrip(t *testing.T) {
	m := New(zap.NewNop(), clock.NewMock(time.Now()), nil, testCfg())
	m.Manual("halt")
	m.ReArm("alice")
	if m.IsTripped() {
		t.Error("expected ReArm to clear the tripped state")
	}
}

func TestTripIsIdempotentAndKeepsAuditTrail(t *testing.T) {
	m := New(zap.NewNop(), clock.NewMock(time.Now()), nil, testCfg())
	m.Manual("first")
	m.Manual("second")
	if len(m.Trips()) != 2 {
		t.Errorf("expected both trips recorded in the audit trail, got %d", len(m.Trips()))
	}
}

func TestTripPublishesHealthChangedEventOnce(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), events.Config{NumWorkers: 1, BufferSize: 16})
	defer bus.Stop()

	received := make(chan events.HealthChangedEvent, 4)
	bus.Subscribe(events.EventTypeHealthChanged, func(e events.Event) {
		received <- e.(events.HealthChangedEvent)
	})

	m := New(zap.NewNop(), clock.NewMock(time.Now()), bus, testCfg())
	m.Manual("halt")
	m.Manual("halt again") // already tripped, must not publish a second event

	select {
	case evt := <-received:
		if evt.Healthy {
			t.Error("expected the trip event to report unhealthy")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for health changed event")
	}

	select {
	case evt := <-received:
		t.Errorf("expected no second health changed event for an already-tripped switch, got %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReArmPublishesHealthyEvent(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), events.Config{NumWorkers: 1, BufferSize: 16})
	defer bus.Stop()

	received := make(chan events.HealthChangedEvent, 4)
	bus.Subscribe(events.EventTypeHealthChanged, func(e events.Event) {
		received <- e.(events.HealthChangedEvent)
	})

	m := New(zap.NewNop(), clock.NewMock(time.Now()), bus, testCfg())
	m.Manual("halt")
	<-received // drain the trip event

	m.ReArm("bob")
	select {
	case evt := <-received:
		if !evt.Healthy {
			t.Error("expected the re-arm event to report healthy")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for re-arm event")
	}
}

func TestSnapshotReportsHeartbeatsAndLastTrip(t *testing.T) {
	m := New(zap.NewNop(), clock.NewMock(time.Now()), nil, testCfg())
	m.Heartbeat("engine")
	m.Manual("halt")

	snap := m.Snapshot()
	if !snap.Tripped {
		t.Error("expected snapshot to report tripped")
	}
	if _, ok := snap.Heartbeats["engine"]; !ok {
		t.Error("expected snapshot to include the recorded heartbeat")
	}
	if snap.LastTrip == nil || snap.LastTrip.Detail != "halt" {
		t.Errorf("expected last trip detail %q, got %+v", "halt", snap.LastTrip)
	}
}
