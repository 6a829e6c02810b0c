package copytrading

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

func trade(trader string, price, size float64) types.DetectedTrade {
	return types.DetectedTrade{
		Trader: trader, MarketID: "m1", OutcomeID: "yes", Side: types.OrderSideBuy,
		Price: decimal.NewFromFloat(price), Size: decimal.NewFromFloat(size),
	}
}

func TestFlushSkipsBucketsStillWithinWindow(t *testing.T) {
	mock := clock.NewMock(time.Now())
	a := NewAggregator(zap.NewNop(), mock, 10*time.Second)
	a.Add(trade("0xabc", 0.5, 100))

	if flushed := a.Flush(); len(flushed) != 0 {
		t.Errorf("expected no flush before the window elapses, got %+v", flushed)
	}
}

func TestFlushMergesFragmentsIntoVWAP(t *testing.T) {
	mock := clock.NewMock(time.Now())
	a := NewAggregator(zap.NewNop(), mock, 10*time.Second)
	a.Add(trade("0xabc", 0.40, 100))
	a.Add(trade("0xabc", 0.60, 100))

	mock.Advance(11 * time.Second)
	flushed := a.Flush()
	if len(flushed) != 1 {
		t.Fatalf("expected one aggregated trade, got %d", len(flushed))
	}
	agg := flushed[0]
	if !agg.TotalSize.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected total size 200, got %s", agg.TotalSize)
	}
	if !agg.VWAPPrice.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("expected VWAP 0.5, got %s", agg.VWAPPrice)
	}
	if agg.TradeCount != 2 {
		t.Errorf("expected trade count 2, got %d", agg.TradeCount)
	}
}

func TestFlushKeepsDistinctBucketsSeparate(t *testing.T) {
	mock := clock.NewMock(time.Now())
	a := NewAggregator(zap.NewNop(), mock, 10*time.Second)
	a.Add(trade("0xabc", 0.5, 100))
	a.Add(trade("0xdef", 0.5, 50))

	mock.Advance(11 * time.Second)
	flushed := a.Flush()
	if len(flushed) != 2 {
		t.Fatalf("expected two separate aggregated trades, got %d", len(flushed))
	}
}

func TestFlushRemovesDrainedBuckets(t *testing.T) {
	mock := clock.NewMock(time.Now())
	a := NewAggregator(zap.NewNop(), mock, 10*time.Second)
	a.Add(trade("0xabc", 0.5, 100))
	mock.Advance(11 * time.Second)

	a.Flush()
	if flushed := a.Flush(); len(flushed) != 0 {
		t.Errorf("expected the drained bucket to not reappear, got %+v", flushed)
	}
}

func TestAddAfterWindowElapsedStartsFreshBucket(t *testing.T) {
	mock := clock.NewMock(time.Now())
	a := NewAggregator(zap.NewNop(), mock, 10*time.Second)
	a.Add(trade("0xabc", 0.5, 100))

	mock.Advance(11 * time.Second)
	a.Add(trade("0xabc", 0.5, 50)) // new bucket since the first's window has elapsed

	if flushed := a.Flush(); len(flushed) != 0 {
		t.Errorf("expected the fresh bucket to not be ready to flush yet, got %+v", flushed)
	}
}
