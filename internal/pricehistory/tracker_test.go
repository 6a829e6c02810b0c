package pricehistory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

func point(price float64, size float64, ts time.Time) types.PricePoint {
	return types.PricePoint{
		Platform: types.PlatformVenueA, MarketID: "m1", OutcomeID: "yes",
		Price: decimal.NewFromFloat(price), Size: decimal.NewFromFloat(size), Timestamp: ts,
	}
}

func TestIngestTracksSampleCount(t *testing.T) {
	tr := New(zap.NewNop(), 10)
	base := time.Now()

	var stats types.PriceStats
	for i := 0; i < 5; i++ {
		stats = tr.Ingest(point(0.5+float64(i)*0.01, 100, base.Add(time.Duration(i)*time.Second)))
	}

	if stats.SampleCount != 5 {
		t.Errorf("expected sample count 5, got %d", stats.SampleCount)
	}
}

func TestIngestTrimsToWindow(t *testing.T) {
	tr := New(zap.NewNop(), 3)
	base := time.Now()

	for i := 0; i < 10; i++ {
		tr.Ingest(point(0.5, 100, base.Add(time.Duration(i)*time.Second)))
	}

	history := tr.History(types.PlatformVenueA, "m1", "yes")
	if len(history) != 3 {
		t.Errorf("expected history trimmed to window size 3, got %d", len(history))
	}
}

func TestIngestEmitsSignificantMoveOnLargeChange(t *testing.T) {
	tr := New(zap.NewNop(), 10)
	ch := tr.SubscribeSignificantMoves()
	base := time.Now()

	tr.Ingest(point(0.50, 100, base))
	tr.Ingest(point(0.60, 100, base.Add(time.Second))) // +20% change from 0.50

	select {
	case move := <-ch:
		if move.MarketID != "m1" {
			t.Errorf("expected marketID m1, got %s", move.MarketID)
		}
		if !move.ChangePercent.Abs().GreaterThanOrEqual(decimal.NewFromInt(SignificantMoveThresholdPct)) {
			t.Errorf("expected change percent >= threshold, got %s", move.ChangePercent)
		}
	default:
		t.Fatal("expected a significant move event")
	}
}

func TestStatsReturnsFalseWhenUntracked(t *testing.T) {
	tr := New(zap.NewNop(), 10)
	_, ok := tr.Stats(types.PlatformVenueA, "missing", "yes")
	if ok {
		t.Error("expected ok=false for an untracked outcome")
	}
}

func TestStatsMatchesLastIngest(t *testing.T) {
	tr := New(zap.NewNop(), 10)
	base := time.Now()

	tr.Ingest(point(0.5, 100, base))
	want := tr.Ingest(point(0.55, 100, base.Add(time.Second)))

	got, ok := tr.Stats(types.PlatformVenueA, "m1", "yes")
	if !ok {
		t.Fatal("expected stats to be tracked")
	}
	if !got.SMA20.Equal(want.SMA20) {
		t.Errorf("expected SMA20 %s, got %s", want.SMA20, got.SMA20)
	}
	if got.SampleCount != want.SampleCount {
		t.Errorf("expected sample count %d, got %d", want.SampleCount, got.SampleCount)
	}
}
