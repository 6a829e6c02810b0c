// Package api provides the engine's admin HTTP/WebSocket surface: read
// endpoints over market/order/position state, and a narrow set of
// control endpoints (start/stop/scan, kill-switch) gated behind no
// authentication beyond what sits in front of this process — it is an
// operator console, not a public API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/engine"
	"github.com/atlas-desktop/prediction-engine/internal/events"
	"github.com/atlas-desktop/prediction-engine/internal/venue"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// Server is the HTTP/WebSocket API server fronting a running Engine.
type Server struct {
	logger     *zap.Logger
	config     types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	engine     *engine.Engine
	repo       venue.Repository
	hub        *Hub
}

// NewServer constructs a Server wired to engine and repo, with its
// WebSocket hub subscribed to the engine's event bus.
func NewServer(logger *zap.Logger, config types.ServerConfig, eng *engine.Engine, repo venue.Repository) *Server {
	s := &Server{
		logger: logger.Named("api"), config: config,
		router: mux.NewRouter(), engine: eng, repo: repo,
		hub: NewHub(logger),
	}
	s.setupRoutes()
	s.subscribeToEvents()
	return s
}

// Router exposes the underlying mux.Router, primarily so tests can drive
// it through httptest without a bound listener.
func (s *Server) Router() *mux.Router { return s.router }

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/markets", s.handleListMarkets).Methods("GET")
	s.router.HandleFunc("/positions", s.handleListPositions).Methods("GET")
	s.router.HandleFunc("/balances", s.handleBalances).Methods("GET")
	s.router.HandleFunc("/orders", s.handleListOrders).Methods("GET")

	s.router.HandleFunc("/trading/status", s.handleTradingStatus).Methods("GET")
	s.router.HandleFunc("/trading/pairs", s.handleTradingPairs).Methods("GET")
	s.router.HandleFunc("/trading/start", s.handleTradingStart).Methods("POST")
	s.router.HandleFunc("/trading/stop", s.handleTradingStop).Methods("POST")
	s.router.HandleFunc("/trading/scan", s.handleTradingScan).Methods("POST")

	s.router.HandleFunc("/kill-switch", s.handleKillSwitchStatus).Methods("GET")
	s.router.HandleFunc("/kill-switch", s.handleKillSwitchTrip).Methods("POST")
	s.router.HandleFunc("/kill-switch/rearm", s.handleKillSwitchRearm).Methods("POST")

	s.router.HandleFunc(s.config.WebSocketPath, s.hub.ServeWS)
}

// subscribeToEvents wires the signal, order-status, opportunity, health
// and trade-update events into the WebSocket hub so connected operators
// see trading activity as it happens. Book-update events are not
// forwarded.
func (s *Server) subscribeToEvents() {
	bus := s.engine.Bus()
	bus.Subscribe(events.EventTypeSignal, func(e events.Event) {
		s.hub.Broadcast(MsgTypeSignalUpdate, e)
	})
	bus.Subscribe(events.EventTypeOrderStatus, func(e events.Event) {
		s.hub.Broadcast(MsgTypeOrderUpdate, e)
	})
	bus.Subscribe(events.EventTypeOpportunity, func(e events.Event) {
		s.hub.Broadcast(MsgTypeOpportunity, e)
	})
	bus.Subscribe(events.EventTypeHealthChanged, func(e events.Event) {
		s.hub.Broadcast(MsgTypeHealthChanged, e)
	})
	bus.Subscribe(events.EventTypeTradeUpdate, func(e events.Event) {
		s.hub.Broadcast(MsgTypeTradeUpdate, e)
	})
}

// Start starts the HTTP server, blocking until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr: addr, Handler: handler,
		ReadTimeout: s.config.ReadTimeout, WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting admin API", zap.String("addr", addr))
	go s.hub.Run()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.engine.Health().Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok", "tripped": snapshot.Tripped, "time": time.Now().UTC(),
	})
}

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	platform := types.Platform(r.URL.Query().Get("platform"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"markets": s.repo.ListMarkets(platform),
	})
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"positions": s.repo.ListPositions(),
	})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": s.repo.ListOpenOrders(),
	})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"paper": s.engine.Paper().Snapshot(),
	})
}

func (s *Server) handleTradingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": s.engine.Orders().Stats(),
		"health": s.engine.Health().Snapshot(),
	})
}

func (s *Server) handleTradingPairs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pairs": s.repo.ListMarketPairs(),
	})
}

func (s *Server) handleTradingStart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Start(r.Context()); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleTradingStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleTradingScan(w http.ResponseWriter, r *http.Request) {
	s.engine.ScanOnce(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "scanned"})
}

func (s *Server) handleKillSwitchStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Health().Snapshot())
}

func (s *Server) handleKillSwitchTrip(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "manual trip via admin API"
	}
	s.engine.Health().Manual(body.Reason)
	writeJSON(w, http.StatusOK, map[string]string{"status": "tripped"})
}

func (s *Server) handleKillSwitchRearm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Operator string `json:"operator"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Operator == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "operator is required"})
		return
	}
	s.engine.Health().ReArm(body.Operator)
	writeJSON(w, http.StatusOK, map[string]string{"status": "rearmed"})
}
