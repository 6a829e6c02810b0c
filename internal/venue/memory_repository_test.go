package venue

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

func TestSaveAndGetMarket(t *testing.T) {
	r := NewInMemoryRepository()
	r.SaveMarket(types.NormalizedMarket{ID: "m1", Platform: types.PlatformVenueA})

	got, ok := r.GetMarket("m1")
	if !ok || got.ID != "m1" {
		t.Fatalf("expected market m1, got %+v ok=%v", got, ok)
	}
}

func TestListMarketsFiltersByPlatform(t *testing.T) {
	r := NewInMemoryRepository()
	r.SaveMarket(types.NormalizedMarket{ID: "a", Platform: types.PlatformVenueA})
	r.SaveMarket(types.NormalizedMarket{ID: "b", Platform: types.PlatformVenueB})

	onlyA := r.ListMarkets(types.PlatformVenueA)
	if len(onlyA) != 1 || onlyA[0].ID != "a" {
		t.Errorf("expected only platform A market, got %+v", onlyA)
	}
	all := r.ListMarkets("")
	if len(all) != 2 {
		t.Errorf("expected empty platform filter to return all markets, got %d", len(all))
	}
}

func TestSaveAndGetOrder(t *testing.T) {
	r := NewInMemoryRepository()
	r.SaveOrder(types.Order{ID: "o1", Status: types.OrderStatusOpen})

	got, ok := r.GetOrder("o1")
	if !ok || got.Status != types.OrderStatusOpen {
		t.Fatalf("expected order o1 open, got %+v ok=%v", got, ok)
	}
}

func TestListOpenOrdersExcludesTerminalStatuses(t *testing.T) {
	r := NewInMemoryRepository()
	r.SaveOrder(types.Order{ID: "o1", Status: types.OrderStatusOpen})
	r.SaveOrder(types.Order{ID: "o2", Status: types.OrderStatusPartial})
	r.SaveOrder(types.Order{ID: "o3", Status: types.OrderStatusPending})
	r.SaveOrder(types.Order{ID: "o4", Status: types.OrderStatusFilled})
	r.SaveOrder(types.Order{ID: "o5", Status: types.OrderStatusRejected})

	open := r.ListOpenOrders()
	if len(open) != 3 {
		t.Errorf("expected 3 open/partial/pending orders, got %d: %+v", len(open), open)
	}
}

func TestSaveTradeAppendsByOrderID(t *testing.T) {
	r := NewInMemoryRepository()
	r.SaveTrade(types.Trade{ID: "t1", OrderID: "o1"})
	r.SaveTrade(types.Trade{ID: "t2", OrderID: "o1"})
	r.SaveTrade(types.Trade{ID: "t3", OrderID: "o2"})

	trades := r.ListTrades("o1")
	if len(trades) != 2 {
		t.Errorf("expected 2 trades for o1, got %d", len(trades))
	}
}

func TestSaveAndGetPositionKeyedByPlatformMarketOutcome(t *testing.T) {
	r := NewInMemoryRepository()
	r.SavePosition(types.Position{Platform: types.PlatformVenueA, MarketID: "m1", OutcomeID: "yes", Size: decimal.NewFromInt(10)})

	got, ok := r.GetPosition(types.PlatformVenueA, "m1", "yes")
	if !ok || !got.Size.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected position size 10, got %+v ok=%v", got, ok)
	}
	if _, ok := r.GetPosition(types.PlatformVenueB, "m1", "yes"); ok {
		t.Error("expected no position for a different platform with the same market/outcome")
	}
}

func TestListPositionsReturnsAll(t *testing.T) {
	r := NewInMemoryRepository()
	r.SavePosition(types.Position{Platform: types.PlatformVenueA, MarketID: "m1", OutcomeID: "yes"})
	r.SavePosition(types.Position{Platform: types.PlatformVenueA, MarketID: "m2", OutcomeID: "no"})

	if len(r.ListPositions()) != 2 {
		t.Errorf("expected 2 positions, got %d", len(r.ListPositions()))
	}
}

func TestSaveMarketPairUpsertsByID(t *testing.T) {
	r := NewInMemoryRepository()
	r.SaveMarketPair(types.MarketPair{ID: "p1", MarketAID: "a1"})
	r.SaveMarketPair(types.MarketPair{ID: "p1", MarketAID: "a2"})

	pairs := r.ListMarketPairs()
	if len(pairs) != 1 || pairs[0].MarketAID != "a2" {
		t.Errorf("expected the existing pair to be updated in place, got %+v", pairs)
	}
}

func TestSaveOpportunityBoundsUnboundedGrowth(t *testing.T) {
	r := NewInMemoryRepository()
	for i := 0; i < 10005; i++ {
		r.SaveOpportunity(types.ArbitrageOpportunity{ID: "o", DetectedAt: time.Now()})
	}
	if len(r.opportunities) > 10000 {
		t.Errorf("expected opportunity history capped at 10000, got %d", len(r.opportunities))
	}
}

func TestListOpportunitiesFiltersBySince(t *testing.T) {
	r := NewInMemoryRepository()
	now := time.Now()
	r.SaveOpportunity(types.ArbitrageOpportunity{ID: "old", DetectedAt: now.Add(-time.Hour)})
	r.SaveOpportunity(types.ArbitrageOpportunity{ID: "new", DetectedAt: now.Add(time.Minute)})

	recent := r.ListOpportunities(now)
	if len(recent) != 1 || recent[0].ID != "new" {
		t.Errorf("expected only the opportunity detected after `since`, got %+v", recent)
	}
}

func TestSaveAndGetTrackedTrader(t *testing.T) {
	r := NewInMemoryRepository()
	r.SaveTrackedTrader(types.TrackedTrader{Address: "0xabc", Score: decimal.NewFromFloat(0.9)})

	got, ok := r.GetTrackedTrader("0xabc")
	if !ok || !got.Score.Equal(decimal.NewFromFloat(0.9)) {
		t.Fatalf("expected tracked trader with score 0.9, got %+v ok=%v", got, ok)
	}
	if len(r.ListTrackedTraders()) != 1 {
		t.Errorf("expected 1 tracked trader, got %d", len(r.ListTrackedTraders()))
	}
}

func TestSaveCopyPositionUpsertsByID(t *testing.T) {
	r := NewInMemoryRepository()
	r.SaveCopyPosition(types.CopyPosition{ID: "c1", Trader: "0xabc", Size: decimal.NewFromInt(10)})
	r.SaveCopyPosition(types.CopyPosition{ID: "c1", Trader: "0xabc", Size: decimal.NewFromInt(20)})
	r.SaveCopyPosition(types.CopyPosition{ID: "c2", Trader: "0xabc", Size: decimal.NewFromInt(5)})

	positions := r.ListCopyPositions("0xabc")
	if len(positions) != 2 {
		t.Fatalf("expected 2 distinct copy positions, got %d", len(positions))
	}
	for _, p := range positions {
		if p.ID == "c1" && !p.Size.Equal(decimal.NewFromInt(20)) {
			t.Errorf("expected c1 updated in place to size 20, got %s", p.Size)
		}
	}
}

func TestListCopyPositionsUnknownTraderReturnsEmpty(t *testing.T) {
	r := NewInMemoryRepository()
	if positions := r.ListCopyPositions("0xnone"); len(positions) != 0 {
		t.Errorf("expected no positions for an untracked trader, got %+v", positions)
	}
}
