// Package api_test provides tests for the admin API server.
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/api"
	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/internal/config"
	"github.com/atlas-desktop/prediction-engine/internal/engine"
	"github.com/atlas-desktop/prediction-engine/internal/venue"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// stubClient is a no-op venue.Client used only to exercise engine/server
// wiring; it never connects to a real venue.
type stubClient struct {
	platform types.Platform
}

func (s *stubClient) Platform() types.Platform { return s.platform }
func (s *stubClient) Connect(ctx context.Context) error    { return nil }
func (s *stubClient) Disconnect(ctx context.Context) error { return nil }
func (s *stubClient) ListMarkets(ctx context.Context) ([]types.NormalizedMarket, error) {
	return nil, nil
}
func (s *stubClient) GetOrderBook(ctx context.Context, marketID, outcomeID string) (types.OrderBook, error) {
	return types.OrderBook{}, nil
}
func (s *stubClient) SubscribeBookUpdates(ctx context.Context) (<-chan types.OrderBook, error) {
	ch := make(chan types.OrderBook)
	go func() { <-ctx.Done(); close(ch) }()
	return ch, nil
}
func (s *stubClient) SubscribeTrades(ctx context.Context) (<-chan types.DetectedTrade, error) {
	ch := make(chan types.DetectedTrade)
	go func() { <-ctx.Done(); close(ch) }()
	return ch, nil
}
func (s *stubClient) PlaceOrder(ctx context.Context, order types.Order) (types.Order, error) {
	return order, nil
}
func (s *stubClient) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (s *stubClient) GetOrder(ctx context.Context, orderID string) (types.Order, error) {
	return types.Order{ID: orderID}, nil
}
func (s *stubClient) GetBalance(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.NewFromInt(1000), decimal.Zero, nil
}

func setupTestServer(t *testing.T) (*api.Server, *httptest.Server) {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.Defaults()
	repo := venue.NewInMemoryRepository()

	eng := engine.New(logger, clock.New(), *cfg, repo)
	eng.AddClient(&stubClient{platform: types.PlatformVenueA})
	eng.AddClient(&stubClient{platform: types.PlatformVenueB})

	server := api.NewServer(logger, cfg.Server, eng, repo)
	ts := httptest.NewServer(server.Router())
	return server, ts
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", result["status"])
	}
}

func TestListMarketsEmpty(t *testing.T) {
	_, ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/markets?platform=venue_a")
	if err != nil {
		t.Fatalf("markets request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	markets, ok := result["markets"].([]interface{})
	if !ok {
		t.Fatalf("expected markets array, got %T", result["markets"])
	}
	if len(markets) != 0 {
		t.Errorf("expected no markets, got %d", len(markets))
	}
}

func TestKillSwitchTripAndRearm(t *testing.T) {
	_, ts := setupTestServer(t)
	defer ts.Close()

	tripResp, err := http.Post(ts.URL+"/kill-switch", "application/json", jsonBody(map[string]string{"reason": "test trip"}))
	if err != nil {
		t.Fatalf("trip request failed: %v", err)
	}
	defer tripResp.Body.Close()
	if tripResp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 on trip, got %d", tripResp.StatusCode)
	}

	statusResp, err := http.Get(ts.URL + "/kill-switch")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer statusResp.Body.Close()
	var snapshot map[string]interface{}
	if err := json.NewDecoder(statusResp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if tripped, _ := snapshot["tripped"].(bool); !tripped {
		t.Errorf("expected kill switch tripped after manual trip")
	}

	rearmResp, err := http.Post(ts.URL+"/kill-switch/rearm", "application/json", jsonBody(map[string]string{"operator": "test-operator"}))
	if err != nil {
		t.Fatalf("rearm request failed: %v", err)
	}
	defer rearmResp.Body.Close()
	if rearmResp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 on rearm, got %d", rearmResp.StatusCode)
	}
}

func TestKillSwitchRearmRequiresOperator(t *testing.T) {
	_, ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/kill-switch/rearm", "application/json", jsonBody(map[string]string{}))
	if err != nil {
		t.Fatalf("rearm request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400 for missing operator, got %d", resp.StatusCode)
	}
}

func TestTradingScanTriggersManualScan(t *testing.T) {
	_, ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/trading/scan", "application/json", nil)
	if err != nil {
		t.Fatalf("scan request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}

func jsonBody(v interface{}) *bytes.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}
