// Package engine is the composition root: it wires price history,
// strategies, arbitrage, order execution, risk, health, and copy-trading
// into one runnable trading engine driven off each venue's book/trade
// streams and a periodic full-market scan.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/apperr"
	"github.com/atlas-desktop/prediction-engine/internal/arbitrage"
	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/internal/copytrading"
	"github.com/atlas-desktop/prediction-engine/internal/events"
	"github.com/atlas-desktop/prediction-engine/internal/execution"
	"github.com/atlas-desktop/prediction-engine/internal/health"
	"github.com/atlas-desktop/prediction-engine/internal/pricehistory"
	"github.com/atlas-desktop/prediction-engine/internal/stratmanager"
	"github.com/atlas-desktop/prediction-engine/internal/strategy"
	"github.com/atlas-desktop/prediction-engine/internal/venue"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// Engine is the top-level trading system. All of its subcomponents are
// built in New and wired together here rather than self-assembling, so
// the composition is visible in one place.
type Engine struct {
	logger *zap.Logger
	clock  clock.Clock
	cfg    types.EngineConfig

	bus     *events.Bus
	repo    venue.Repository
	clients map[types.Platform]venue.Client

	prices     *pricehistory.Tracker
	strategies *stratmanager.Manager
	matcher    *Matcher

	arbDetector *arbitrage.Detector
	arbExecutor *arbitrage.Executor

	orders   *execution.OrderManager
	risk     *execution.RiskManager
	paper    *execution.PaperSimulator
	executor *execution.Executor

	health *health.Monitor

	copyCache      *copytrading.TraderCache
	copyRanker     *copytrading.Ranker
	copyAggregator *copytrading.Aggregator
	copySizer      *copytrading.Sizer
	copyPoller     *copytrading.Poller
	copySim        *copytrading.CopySimulator

	seqMu   sync.Mutex
	lastSeq map[string]uint64 // platform:marketId:outcomeId -> last applied book seq

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs an Engine and every subcomponent it composes, wiring
// the event bus, repository, risk/health limits, and strategy set from
// cfg.
func New(logger *zap.Logger, clk clock.Clock, cfg types.EngineConfig, repo venue.Repository) *Engine {
	bus := events.NewBus(logger, events.DefaultConfig())

	prices := pricehistory.New(logger, 200)

	registry := strategy.NewRegistry()
	strategyCfg := strategy.Config{
		MomentumLookback: cfg.Strategies.MomentumLookback, MomentumThreshold: cfg.Strategies.MomentumThreshold,
		MeanReversionZ: cfg.Strategies.MeanReversionZ, ImbalanceRatio: cfg.Strategies.ImbalanceRatio,
		SpreadHunterMinBps: cfg.Strategies.SpreadHunterMinBps, VolatilityMinSigma: cfg.Strategies.VolatilityMinSigma,
		ProbabilitySumMinBps: cfg.Strategies.ProbabilitySumMinBps, EndgameWindow: cfg.Strategies.EndgameWindow,
		EndgameMinConfidence: cfg.Strategies.EndgameMinConfidence,
	}
	enabled := cfg.Strategies.Enabled
	if len(enabled) == 0 {
		enabled = registry.List()
	}
	active := make([]strategy.Strategy, 0, len(enabled))
	for _, name := range enabled {
		if s, ok := registry.Create(name, strategyCfg); ok {
			active = append(active, s)
		}
	}
	stratMgr := stratmanager.New(logger, clk, cfg.Strategies.SignalCooldown, active, cfg.Strategies.MaxConcurrentSignals)

	risk := execution.NewRiskManager(logger, clk, cfg.Risk)
	orders := execution.NewOrderManager(logger, clk, bus)
	paperCfg := execution.DefaultPaperSimulatorConfig()
	if cfg.PaperTrading.InitialBalanceUSD.IsPositive() {
		paperCfg.InitialBalanceUSD = cfg.PaperTrading.InitialBalanceUSD
	}
	paper := execution.NewPaperSimulator(logger, clk, paperCfg)
	executor := execution.NewExecutor(logger, clk, risk, orders, paper, cfg.Paper)

	arbDetector := arbitrage.New(logger, clk, arbitrage.Config{
		MinMarginBps:   cfg.Arbitrage.MinNetMarginBps,
		OpportunityTTL: time.Duration(cfg.Arbitrage.MaxOpportunityAgeMs) * time.Millisecond,
	})
	arbExecutor := arbitrage.NewExecutor(logger, clk, executor, bus)

	healthMonitor := health.New(logger, clk, bus, cfg.KillSwitch)

	copyCache := copytrading.NewTraderCache(logger, clk, cfg.CopyTrading.TraderCacheTTL, cfg.CopyTrading.MaxTrackedTraders)
	copyRanker := copytrading.NewRanker(logger)
	copyAgg := copytrading.NewAggregator(logger, clk, cfg.CopyTrading.AggregationWindow)
	copySizer := copytrading.NewSizer(cfg.CopyTrading)
	copyPoller := copytrading.NewPoller(logger, clk, copyCache, copyAgg, 50)
	copySim := copytrading.NewCopySimulator(logger, clk)

	matcher := NewMatcher(clk, cfg.Arbitrage.MinTitleSimilarity, cfg.Arbitrage.EndDateWindow)

	e := &Engine{
		logger: logger.Named("engine"), clock: clk, cfg: cfg,
		bus: bus, repo: repo, clients: make(map[types.Platform]venue.Client),
		prices: prices, strategies: stratMgr, matcher: matcher,
		arbDetector: arbDetector, arbExecutor: arbExecutor,
		orders: orders, risk: risk, paper: paper, executor: executor,
		health: healthMonitor,
		copyCache: copyCache, copyRanker: copyRanker, copyAggregator: copyAgg,
		copySizer: copySizer, copyPoller: copyPoller, copySim: copySim,
		lastSeq: make(map[string]uint64),
		stopCh:  make(chan struct{}),
	}

	// The kill switch halts the engine by cancelling every resting order
	// the moment it trips, per the health monitor's latched trip/rearm
	// contract; this reacts to the same event the admin API observes.
	bus.Subscribe(events.EventTypeHealthChanged, func(ev events.Event) {
		hc, ok := ev.(events.HealthChangedEvent)
		if !ok || hc.Healthy {
			return
		}
		if err := e.orders.CancelAllOrders(context.Background()); err != nil {
			e.logger.Error("cancel-all on kill switch trip failed", zap.Error(err))
		}
	})

	return e
}

// AddClient registers a venue client with every component that routes
// through one.
func (e *Engine) AddClient(c venue.Client) {
	e.clients[c.Platform()] = c
	e.executor.AddClient(c)
	e.arbExecutor.AddClient(c)
	e.orders.AddClient(c)
}

// Bus exposes the engine's event bus for external subscribers (e.g. the
// admin API's WebSocket hub).
func (e *Engine) Bus() *events.Bus { return e.bus }

// Health exposes the kill-switch/liveness monitor for the admin API.
func (e *Engine) Health() *health.Monitor { return e.health }

// Orders exposes the order manager for the admin API.
func (e *Engine) Orders() *execution.OrderManager { return e.orders }

// Risk exposes the risk manager for the admin API.
func (e *Engine) Risk() *execution.RiskManager { return e.risk }

// Paper exposes the paper-trading ledger for the admin API.
func (e *Engine) Paper() *execution.PaperSimulator { return e.paper }

// Matcher exposes the cross-venue market matcher for the admin API and
// the scan loop.
func (e *Engine) Matcher() *Matcher { return e.matcher }

// Start begins the engine's background loops: per-venue book/trade
// consumption, the periodic full-market scan, health heartbeats, and (if
// enabled) copy-trading.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	// The copy-trading loops only watch a context, so they get one that
	// Stop's close of stopCh also cancels.
	copyCtx, cancelCopy := context.WithCancel(ctx)
	go func(stop <-chan struct{}) {
		select {
		case <-stop:
		case <-copyCtx.Done():
		}
		cancelCopy()
	}(e.stopCh)

	for _, client := range e.clients {
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("connect %s: %w", client.Platform(), err)
		}
		e.wg.Add(1)
		go e.consumeBooks(ctx, client)

		if e.cfg.CopyTrading.Enabled {
			e.wg.Add(1)
			go func(c venue.Client) {
				defer e.wg.Done()
				if err := e.copyPoller.Run(copyCtx, c); err != nil {
					e.logger.Warn("copy poller stopped", zap.String("platform", string(c.Platform())), zap.Error(err))
				}
			}(client)
		}
	}

	e.wg.Add(1)
	go e.scanLoop(ctx)

	e.wg.Add(1)
	go e.heartbeatLoop(ctx)

	if e.cfg.CopyTrading.Enabled {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.copyPoller.FlushLoop(copyCtx, e.cfg.CopyTrading.PollInterval, e.handleAggregatedTrade)
		}()
	}

	e.logger.Info("engine started", zap.Bool("paper", e.cfg.Paper), zap.Int("venues", len(e.clients)))
	return nil
}

// Stop signals every background loop to exit and waits for them to
// finish, then disconnects each venue client.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	if err := e.orders.CancelAllOrders(ctx); err != nil {
		e.logger.Warn("cancel-all on shutdown did not fully complete", zap.Error(err))
	}
	for _, client := range e.clients {
		_ = client.Disconnect(ctx)
	}
	e.bus.Stop()
	e.logger.Info("engine stopped")
}

// consumeBooks feeds every book update from client into the price
// tracker, re-evaluates strategies for the affected outcome, and checks
// single-market probability-sum arbitrage.
func (e *Engine) consumeBooks(ctx context.Context, client venue.Client) {
	defer e.wg.Done()

	stream, err := client.SubscribeBookUpdates(ctx)
	if err != nil {
		e.logger.Error("failed to subscribe to book updates", zap.String("platform", string(client.Platform())), zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case book, ok := <-stream:
			if !ok {
				return
			}
			e.health.Heartbeat("books:" + string(client.Platform()))
			e.handleBookUpdate(ctx, client, book)
		}
	}
}

func bookSeqKey(platform types.Platform, marketID, outcomeID string) string {
	return string(platform) + ":" + marketID + ":" + outcomeID
}

// checkSeq enforces the book's per-(platform,marketId,outcomeId) sequence
// order: out-of-order or repeated updates are discarded, and a detected
// gap triggers an immediate resync against the venue's REST snapshot so
// the book never silently drifts from what the venue actually holds.
func (e *Engine) checkSeq(ctx context.Context, client venue.Client, book types.OrderBook) bool {
	if book.Seq == 0 {
		return true // venue doesn't sequence updates; nothing to enforce
	}
	key := bookSeqKey(book.Platform, book.MarketID, book.OutcomeID)

	e.seqMu.Lock()
	last, known := e.lastSeq[key]
	if known && book.Seq <= last {
		e.seqMu.Unlock()
		e.logger.Warn("discarding out-of-order book update",
			zap.String("marketId", book.MarketID), zap.Uint64("seq", book.Seq), zap.Uint64("lastSeq", last))
		return false
	}
	gapped := known && book.Seq != last+1
	e.lastSeq[key] = book.Seq
	e.seqMu.Unlock()

	if gapped {
		e.logger.Warn("book sequence gap detected, resyncing",
			zap.String("marketId", book.MarketID), zap.Uint64("seq", book.Seq), zap.Uint64("lastSeq", last))
		e.resyncBook(ctx, client, book, key)
	}
	return true
}

// resyncBook refetches the authoritative book snapshot after a sequence
// gap and rebases the tracked seq on it.
func (e *Engine) resyncBook(ctx context.Context, client venue.Client, book types.OrderBook, key string) {
	fresh, err := client.GetOrderBook(ctx, book.MarketID, book.OutcomeID)
	if err != nil {
		e.logger.Error("book resync failed", zap.String("marketId", book.MarketID), zap.Error(err))
		return
	}
	e.seqMu.Lock()
	e.lastSeq[key] = fresh.Seq
	e.seqMu.Unlock()
}

func (e *Engine) handleBookUpdate(ctx context.Context, client venue.Client, book types.OrderBook) {
	if !e.checkSeq(ctx, client, book) {
		return
	}
	bestBid, bestAsk := book.BestBid(), book.BestAsk()
	stats := e.prices.Ingest(types.PricePoint{
		Platform: book.Platform, MarketID: book.MarketID, OutcomeID: book.OutcomeID,
		Price: book.Mid(), Timestamp: book.Timestamp,
	})

	e.bus.Publish(events.BookUpdateEvent{
		BaseEvent: events.BaseEvent{ID: book.MarketID + ":" + book.OutcomeID, Type: events.EventTypeBookUpdate, Timestamp: book.Timestamp},
		Book:      book,
	})

	market, ok := e.repo.GetMarket(book.MarketID)
	if !ok {
		return
	}

	var outcome types.Outcome
	var otherOutcome *types.Outcome
	for i, o := range market.Outcomes {
		if o.ID == book.OutcomeID {
			outcome = o
			outcome.BestBid, outcome.BestAsk = bestBid.Price, bestAsk.Price
			outcome.BestBidSize, outcome.BestAskSize = bestBid.Size, bestAsk.Size
			market.Outcomes[i] = outcome
		}
	}
	for _, o := range market.Outcomes {
		if o.ID != book.OutcomeID {
			other := o
			otherOutcome = &other
		}
	}
	e.repo.SaveMarket(market)

	view := strategy.MarketView{
		Market: market, Outcome: outcome, OtherOutcome: otherOutcome,
		Book: book, Stats: stats, HasStats: true, HasBook: true, Timestamp: book.Timestamp,
	}

	signals, err := e.strategies.Evaluate(view)
	if err != nil {
		e.logger.Warn("strategy evaluation failed", zap.Error(err))
	}
	for _, sig := range signals {
		e.bus.Publish(events.SignalEvent{
			BaseEvent: events.BaseEvent{ID: sig.ID, Type: events.EventTypeSignal, Timestamp: sig.GeneratedAt},
			Signal:    sig,
		})
		e.routeSignal(ctx, sig, stats.Volatility)
	}

	if otherOutcome != nil && !e.health.IsTripped() {
		if opp, found := e.arbDetector.DetectProbabilitySum(market, outcome, *otherOutcome); found {
			e.handleOpportunity(ctx, opp)
		}
	}
}

// routeSignal turns a strategy signal into an order routed through the
// single-leg executor, skipping entirely while the kill switch is
// latched.
func (e *Engine) routeSignal(ctx context.Context, sig types.Signal, volatility decimal.Decimal) {
	if e.health.IsTripped() {
		return
	}
	order := types.Order{
		Platform: sig.Platform, MarketID: sig.MarketID, OutcomeID: sig.OutcomeID,
		Side: sig.Side, Type: types.OrderTypeLimit, Price: sig.TargetPrice,
		Size: e.cfg.Risk.MinOrderSizeUSD, Tag: string(sig.Type),
	}
	placed, err := e.executor.Route(ctx, order, volatility)
	e.health.RecordVenueCall(err != nil && apperr.Classify(err) == "transport")
	if err != nil {
		e.logger.Warn("signal routing failed", zap.String("signal", string(sig.Type)), zap.Error(err))
		return
	}
	e.repo.SaveOrder(placed)
}

// handleOpportunity executes a detected arbitrage opportunity unless the
// kill switch is latched, recording the result against health tracking
// either way.
func (e *Engine) handleOpportunity(ctx context.Context, opp types.ArbitrageOpportunity) {
	e.repo.SaveOpportunity(opp)
	if e.health.IsTripped() {
		return
	}
	result := e.arbExecutor.Execute(ctx, opp)
	e.health.RecordInternalError(result.Error != nil)
	for _, o := range result.Orders {
		e.repo.SaveOrder(o)
	}
	if result.Error != nil {
		e.logger.Warn("arbitrage execution failed", zap.String("opportunity", opp.ID), zap.Error(result.Error))
	}
}

// scanLoop periodically rebuilds cross-venue market pairs and re-checks
// every pair for cross-venue arbitrage, independent of the per-book
// event-driven checks.
func (e *Engine) scanLoop(ctx context.Context) {
	defer e.wg.Done()

	interval := e.cfg.ScanInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.scanOnce(ctx)
		}
	}
}

// ScanOnce runs a single market-matching and cross-venue arbitrage pass
// immediately, independent of the periodic scanLoop. Exposed for the
// admin API's manual-scan endpoint.
func (e *Engine) ScanOnce(ctx context.Context) {
	e.scanOnce(ctx)
}

func (e *Engine) scanOnce(ctx context.Context) {
	marketsA := e.repo.ListMarkets(types.PlatformVenueA)
	marketsB := e.repo.ListMarkets(types.PlatformVenueB)
	if len(marketsA) == 0 || len(marketsB) == 0 {
		return
	}

	pairs := e.matcher.Match(marketsA, marketsB)
	for _, pair := range pairs {
		e.repo.SaveMarketPair(pair)

		marketA, okA := e.repo.GetMarket(pair.MarketAID)
		marketB, okB := e.repo.GetMarket(pair.MarketBID)
		if !okA || !okB {
			continue
		}
		outcomesA := outcomesByID(marketA)
		outcomesB := outcomesByID(marketB)

		if opp, found := e.arbDetector.DetectCrossVenue(pair, marketA, marketB, outcomesA, outcomesB); found {
			e.handleOpportunity(ctx, opp)
		}
	}
}

func outcomesByID(m types.NormalizedMarket) map[string]types.Outcome {
	out := make(map[string]types.Outcome, len(m.Outcomes))
	for _, o := range m.Outcomes {
		out[o.ID] = o
	}
	return out
}

// heartbeatLoop periodically asks the health monitor to evaluate
// component heartbeat staleness, refreshes the risk manager's unrealized
// P&L, and clears its daily P&L on the first tick of each new UTC day.
func (e *Engine) heartbeatLoop(ctx context.Context) {
	defer e.wg.Done()

	interval := e.cfg.KillSwitch.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()
	lastDay := e.clock.Now().UTC().Truncate(24 * time.Hour)

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.health.CheckHeartbeats()
			if today := e.clock.Now().UTC().Truncate(24 * time.Hour); today.After(lastDay) {
				e.risk.ResetDaily()
				lastDay = today
			}
			e.risk.UpdateUnrealizedPnL(e.markToMarketPnL())
		}
	}
}

// markToMarketPnL sums unrealized P&L across every tracked position,
// marking each to its market's current mid price. A position in a market
// the repository no longer has (e.g. closed) contributes zero.
func (e *Engine) markToMarketPnL() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range e.orders.AllPositions() {
		market, ok := e.repo.GetMarket(pos.MarketID)
		if !ok {
			continue
		}
		for _, o := range market.Outcomes {
			if o.ID != pos.OutcomeID {
				continue
			}
			mark := o.BestBid.Add(o.BestAsk).Div(decimal.NewFromInt(2))
			if mark.IsZero() {
				mark = o.LastPrice
			}
			if !mark.IsZero() {
				total = total.Add(pos.UnrealizedPnL(mark))
			}
		}
	}
	return total
}

// handleAggregatedTrade is the copy-trading poller's flush callback: it
// sizes and opens a copy position mirroring an aggregated leader trade.
func (e *Engine) handleAggregatedTrade(t types.AggregatedTrade) {
	if e.health.IsTripped() {
		return
	}

	trader, ok := e.copyCache.Get(t.Trader)
	if !ok || trader.Score.LessThan(e.cfg.CopyTrading.MinTraderScore) {
		return
	}

	balanceUSD, err := e.firstAvailableBalance()
	if err != nil {
		e.logger.Warn("copy trade skipped, no balance available", zap.Error(err))
		return
	}

	size := e.copySizer.Size(t, trader, balanceUSD)
	if !size.IsPositive() {
		return
	}

	pos := e.copySim.Open(t.Trader, trader.Platform, t.MarketID, t.OutcomeID, t.Side, size, t.VWAPPrice)
	e.logger.Info("opened copy position", zap.String("trader", t.Trader), zap.String("position", pos.ID))

	order := types.Order{
		Platform: trader.Platform, MarketID: t.MarketID, OutcomeID: t.OutcomeID,
		Side: t.Side, Type: types.OrderTypeLimit, Price: t.VWAPPrice, Size: size,
		Tag: "copy:" + pos.ID,
	}
	placed, err := e.executor.Route(context.Background(), order, decimal.Zero)
	if err != nil {
		e.logger.Warn("copy order routing failed", zap.String("trader", t.Trader), zap.Error(err))
		return
	}
	e.repo.SaveOrder(placed)
	e.repo.SaveCopyPosition(pos)
}

func (e *Engine) firstAvailableBalance() (decimal.Decimal, error) {
	for _, client := range e.clients {
		if bal, _, err := client.GetBalance(context.Background()); err == nil {
			return bal, nil
		}
	}
	return decimal.Zero, fmt.Errorf("no venue reported a balance")
}
