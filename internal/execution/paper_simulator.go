package execution

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// PaperSimulatorConfig tunes the simulated fill model, grounded on the
// probabilistic latency/fill/slippage model the engine specifies: fills
// are not instant or certain, and slippage scales with size and
// volatility rather than being a flat constant.
type PaperSimulatorConfig struct {
	InitialBalanceUSD      decimal.Decimal
	FillProbability        decimal.Decimal // e.g. 0.95
	PartialFillProbability decimal.Decimal // e.g. 0.10, conditional on a fill happening
	MinLatency             time.Duration
	MaxLatency             time.Duration
	BaseSlippageBps        decimal.Decimal // e.g. 5
	SizeImpactFactor       decimal.Decimal // bps per unit notional
	VolatilityMultiplier   decimal.Decimal // bps per unit of sigma
	FeeBps                 decimal.Decimal
}

// DefaultPaperSimulatorConfig returns the engine's documented defaults.
func DefaultPaperSimulatorConfig() PaperSimulatorConfig {
	return PaperSimulatorConfig{
		InitialBalanceUSD:      decimal.NewFromInt(1000),
		FillProbability:        decimal.NewFromFloat(0.95),
		PartialFillProbability: decimal.NewFromFloat(0.10),
		MinLatency:             50 * time.Millisecond,
		MaxLatency:             500 * time.Millisecond,
		BaseSlippageBps:        decimal.NewFromInt(5),
		SizeImpactFactor:       decimal.NewFromFloat(0.5),
		VolatilityMultiplier:   decimal.NewFromFloat(10),
		FeeBps:                 decimal.NewFromInt(200), // 2%, typical CLOB taker fee on a $1-bounded market
	}
}

// PaperFill is the outcome of a simulated order placement.
type PaperFill struct {
	OrderID    string
	FilledSize decimal.Decimal
	FillPrice  decimal.Decimal
	Fee        decimal.Decimal
	Latency    time.Duration
	Filled     bool
}

// PaperSnapshot is a point-in-time read of the simulator's ledger.
type PaperSnapshot struct {
	BalanceUSD   decimal.Decimal
	FeesPaidUSD  decimal.Decimal
	TotalVolume  decimal.Decimal
	TotalTrades  int
	Inventory    map[string]decimal.Decimal // keyed by marketId:outcomeId, signed
}

// PaperSimulator is a mutex-protected paper-trading ledger: balance,
// inventory, fees and volume bookkeeping, with probabilistic fills and
// signed slippage applied the way the engine's paper mode specifies.
type PaperSimulator struct {
	logger *zap.Logger
	clock  clock.Clock
	cfg    PaperSimulatorConfig
	rng    *rand.Rand

	mu          sync.Mutex
	sequence    int64
	balanceUSD  decimal.Decimal
	feesPaidUSD decimal.Decimal
	totalVolume decimal.Decimal
	totalTrades int
	inventory   map[string]decimal.Decimal
}

// NewPaperSimulator constructs a PaperSimulator seeded from the given
// clock's current time for its pseudo-random fill model.
func NewPaperSimulator(logger *zap.Logger, clk clock.Clock, cfg PaperSimulatorConfig) *PaperSimulator {
	if cfg.InitialBalanceUSD.IsZero() {
		cfg = DefaultPaperSimulatorConfig()
	}
	return &PaperSimulator{
		logger:     logger.Named("paper-simulator"),
		clock:      clk,
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(clk.Now().UnixNano())),
		balanceUSD: cfg.InitialBalanceUSD,
		inventory:  make(map[string]decimal.Decimal),
	}
}

func (p *PaperSimulator) invKey(marketID, outcomeID string) string { return marketID + ":" + outcomeID }

// latency draws a uniform latency in [MinLatency, MaxLatency).
func (p *PaperSimulator) latency() time.Duration {
	lo, hi := p.cfg.MinLatency, p.cfg.MaxLatency
	if hi <= lo {
		return lo
	}
	span := hi - lo
	return lo + time.Duration(p.rng.Int63n(int64(span)))
}

// slippageBps computes signed slippage in basis points: a base constant
// plus a size-impact term plus a volatility term. It does not clamp;
// Execute clamps the resulting fill price to [0.01, 0.99].
func (p *PaperSimulator) slippageBps(notional, volatility decimal.Decimal, side types.OrderSide) decimal.Decimal {
	magnitude := p.cfg.BaseSlippageBps.
		Add(p.cfg.SizeImpactFactor.Mul(notional)).
		Add(p.cfg.VolatilityMultiplier.Mul(volatility))
	if side == types.OrderSideSell {
		return magnitude.Neg()
	}
	return magnitude
}

// Execute simulates placing size at price for the given order; it
// determines whether the order fills at all, whether the fill is
// partial, applies slippage, and updates the ledger for any filled
// portion.
func (p *PaperSimulator) Execute(order types.Order, volatility decimal.Decimal) (PaperFill, error) {
	lat := p.latency()

	if !p.rollProbability(p.cfg.FillProbability) {
		return PaperFill{OrderID: order.ID, Latency: lat, Filled: false}, nil
	}

	fillSize := order.Size
	if p.rollProbability(p.cfg.PartialFillProbability) {
		frac := decimal.NewFromFloat(0.1 + p.rng.Float64()*0.8) // uniform fraction in [0.1, 0.9)
		fillSize = order.Size.Mul(frac)
	}

	slip := p.slippageBps(order.Price.Mul(order.Size), volatility, order.Side)
	fillPrice := order.Price.Mul(decimal.NewFromInt(1).Add(slip.Div(decimal.NewFromInt(10000))))
	fillPrice = decimal.Max(decimal.NewFromFloat(0.01), decimal.Min(decimal.NewFromFloat(0.99), fillPrice))

	notional := fillPrice.Mul(fillSize)
	fee := notional.Mul(p.cfg.FeeBps).Div(decimal.NewFromInt(10000))

	p.mu.Lock()
	defer p.mu.Unlock()

	cost := notional
	if order.Side == types.OrderSideSell {
		cost = notional.Neg()
	}
	if order.Side == types.OrderSideBuy && p.balanceUSD.LessThan(cost.Add(fee)) {
		return PaperFill{}, fmt.Errorf("insufficient paper balance: have %s need %s", p.balanceUSD, cost.Add(fee))
	}

	p.sequence++
	p.balanceUSD = p.balanceUSD.Sub(cost).Sub(fee)
	p.feesPaidUSD = p.feesPaidUSD.Add(fee)
	p.totalVolume = p.totalVolume.Add(notional)
	p.totalTrades++

	key := p.invKey(order.MarketID, order.OutcomeID)
	signed := fillSize
	if order.Side == types.OrderSideSell {
		signed = fillSize.Neg()
	}
	p.inventory[key] = p.inventory[key].Add(signed)

	return PaperFill{
		OrderID:    order.ID,
		FilledSize: fillSize,
		FillPrice:  fillPrice,
		Fee:        fee,
		Latency:    lat,
		Filled:     true,
	}, nil
}

func (p *PaperSimulator) rollProbability(prob decimal.Decimal) bool {
	return decimal.NewFromFloat(p.rng.Float64()).LessThan(prob)
}

// Snapshot returns a locked copy of the simulator's ledger.
func (p *PaperSimulator) Snapshot() PaperSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	inv := make(map[string]decimal.Decimal, len(p.inventory))
	for k, v := range p.inventory {
		inv[k] = v
	}
	return PaperSnapshot{
		BalanceUSD:  p.balanceUSD,
		FeesPaidUSD: p.feesPaidUSD,
		TotalVolume: p.totalVolume,
		TotalTrades: p.totalTrades,
		Inventory:   inv,
	}
}
