package copytrading

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

func TestPutAndGetRoundTrip(t *testing.T) {
	c := NewTraderCache(zap.NewNop(), clock.NewMock(time.Now()), time.Minute, 10)
	c.Put(types.TrackedTrader{Address: "0xabc", Score: decimal.NewFromFloat(0.8)})

	got, ok := c.Get("0xabc")
	if !ok {
		t.Fatal("expected the trader to be present")
	}
	if got.Address != "0xabc" {
		t.Errorf("expected address 0xabc, got %s", got.Address)
	}
}

func TestGetMissingReturnsFalse(t *testing.T) {
	c := NewTraderCache(zap.NewNop(), clock.NewMock(time.Now()), time.Minute, 10)
	if _, ok := c.Get("0xnone"); ok {
		t.Error("expected no entry for an address never put")
	}
}

func TestGetExpiredReturnsFalse(t *testing.T) {
	mock := clock.NewMock(time.Now())
	c := NewTraderCache(zap.NewNop(), mock, time.Minute, 10)
	c.Put(types.TrackedTrader{Address: "0xabc"})

	mock.Advance(2 * time.Minute)
	if _, ok := c.Get("0xabc"); ok {
		t.Error("expected the entry to have expired")
	}
}

func TestPutEvictsLowestScoredWhenAtCapacity(t *testing.T) {
	c := NewTraderCache(zap.NewNop(), clock.NewMock(time.Now()), time.Minute, 2)
	c.Put(types.TrackedTrader{Address: "low", Score: decimal.NewFromFloat(0.1)})
	c.Put(types.TrackedTrader{Address: "high", Score: decimal.NewFromFloat(0.9)})
	c.Put(types.TrackedTrader{Address: "new", Score: decimal.NewFromFloat(0.5)})

	if _, ok := c.Get("low"); ok {
		t.Error("expected the lowest-scored entry to have been evicted")
	}
	if _, ok := c.Get("high"); !ok {
		t.Error("expected the highest-scored entry to remain")
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("expected the newly inserted entry to be present")
	}
}

func TestPutRefreshesExistingAddressWithoutEviction(t *testing.T) {
	c := NewTraderCache(zap.NewNop(), clock.NewMock(time.Now()), time.Minute, 1)
	c.Put(types.TrackedTrader{Address: "a", Score: decimal.NewFromFloat(0.5)})
	c.Put(types.TrackedTrader{Address: "a", Score: decimal.NewFromFloat(0.7)})

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected the refreshed entry to still be present")
	}
	if !got.Score.Equal(decimal.NewFromFloat(0.7)) {
		t.Errorf("expected refreshed score 0.7, got %s", got.Score)
	}
}

func TestAllExcludesExpired(t *testing.T) {
	mock := clock.NewMock(time.Now())
	c := NewTraderCache(zap.NewNop(), mock, time.Minute, 10)
	c.Put(types.TrackedTrader{Address: "stale"})
	mock.Advance(2 * time.Minute)
	c.Put(types.TrackedTrader{Address: "fresh"})

	all := c.All()
	if len(all) != 1 || all[0].Address != "fresh" {
		t.Errorf("expected only the fresh entry, got %+v", all)
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	mock := clock.NewMock(time.Now())
	c := NewTraderCache(zap.NewNop(), mock, time.Minute, 10)
	c.Put(types.TrackedTrader{Address: "a"})
	c.Put(types.TrackedTrader{Address: "b"})
	mock.Advance(2 * time.Minute)

	removed := c.Sweep()
	if removed != 2 {
		t.Errorf("expected 2 entries swept, got %d", removed)
	}
	if len(c.All()) != 0 {
		t.Error("expected the cache to be empty after sweeping")
	}
}
