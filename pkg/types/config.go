// Package types also carries the engine's configuration shapes, loaded
// by viper in cmd/server and passed down by explicit constructor
// injection to every component.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// VenueConfig configures one venue client.
type VenueConfig struct {
	Platform    Platform      `mapstructure:"platform"`
	BaseURL     string        `mapstructure:"baseUrl"`
	WSURL       string        `mapstructure:"wsUrl"`
	APIKey      string        `mapstructure:"apiKey"`
	APISecret   string        `mapstructure:"apiSecret"`
	FeeBps      decimal.Decimal `mapstructure:"feeBps"`
	RateLimitRPS int          `mapstructure:"rateLimitRps"`
}

// RiskLimits bounds exposure and position sizing across the engine.
type RiskLimits struct {
	MaxPositionUSD       decimal.Decimal `mapstructure:"maxPositionUsd"`
	MaxOpenPositions     int             `mapstructure:"maxOpenPositions"`
	MaxDailyLossUSD      decimal.Decimal `mapstructure:"maxDailyLossUsd"`
	MaxExposurePerMarket decimal.Decimal `mapstructure:"maxExposurePerMarket"`
	MinOrderSizeUSD      decimal.Decimal `mapstructure:"minOrderSizeUsd"`
	MaxTotalExposureUSD  decimal.Decimal `mapstructure:"maxTotalExposureUsd"`
	MaxDrawdownPercent   decimal.Decimal `mapstructure:"maxDrawdownPercent"`
}

// KillSwitchConfig configures the health/kill-switch subsystem. Once
// tripped, the switch stays latched until an operator explicitly
// re-arms it: there is no automatic cooldown re-enable.
type KillSwitchConfig struct {
	MaxDailyLossUSD       decimal.Decimal `mapstructure:"maxDailyLossUsd"`
	MaxDrawdownPct        decimal.Decimal `mapstructure:"maxDrawdownPct"`
	MaxConsecutiveLosses  int             `mapstructure:"maxConsecutiveLosses"`
	MaxVenueErrorRate     decimal.Decimal `mapstructure:"maxVenueErrorRate"` // errors / requests over window
	MaxInternalErrorRate  decimal.Decimal `mapstructure:"maxInternalErrorRate"`
	ErrorRateWindow       time.Duration   `mapstructure:"errorRateWindow"`
	HeartbeatInterval     time.Duration   `mapstructure:"heartbeatInterval"`
	HeartbeatTimeout      time.Duration   `mapstructure:"heartbeatTimeout"`
}

// ArbitrageConfig tunes the detector/executor pair.
type ArbitrageConfig struct {
	MinNetMarginBps      decimal.Decimal `mapstructure:"minNetMarginBps"`
	MaxOpportunityAgeMs  int             `mapstructure:"maxOpportunityAgeMs"`
	ExecutionTimeoutMs   int             `mapstructure:"executionTimeoutMs"`
	MinTitleSimilarity   decimal.Decimal `mapstructure:"minTitleSimilarity"`
	EndDateWindow        time.Duration   `mapstructure:"endDateWindow"`
}

// StrategySetConfig enables/disables and parameterizes the seven
// built-in strategies.
type StrategySetConfig struct {
	Enabled              []SignalType    `mapstructure:"enabled"`
	MomentumLookback     int             `mapstructure:"momentumLookback"`
	MomentumThreshold    decimal.Decimal `mapstructure:"momentumThreshold"`
	MeanReversionZ       decimal.Decimal `mapstructure:"meanReversionZ"`
	ImbalanceRatio       decimal.Decimal `mapstructure:"imbalanceRatio"`
	SpreadHunterMinBps   decimal.Decimal `mapstructure:"spreadHunterMinBps"`
	VolatilityMinSigma   decimal.Decimal `mapstructure:"volatilityMinSigma"`
	ProbabilitySumMinBps decimal.Decimal `mapstructure:"probabilitySumMinBps"`
	EndgameWindow        time.Duration   `mapstructure:"endgameWindow"`
	EndgameMinConfidence decimal.Decimal `mapstructure:"endgameMinConfidence"`
	SignalCooldown       time.Duration   `mapstructure:"signalCooldown"`
	MaxConcurrentSignals int             `mapstructure:"maxConcurrentSignals"`
}

// CopyTradingConfig tunes the copy-trading subsystem.
type CopyTradingConfig struct {
	Enabled           bool              `mapstructure:"enabled"`
	PollInterval      time.Duration     `mapstructure:"pollInterval"`
	AggregationWindow time.Duration     `mapstructure:"aggregationWindow"`
	SizingMode        CopySizingMode    `mapstructure:"sizingMode"`
	SizingPercent     decimal.Decimal   `mapstructure:"sizingPercent"`
	FixedSizeUSD      decimal.Decimal   `mapstructure:"fixedSizeUsd"`
	MaxTrackedTraders int               `mapstructure:"maxTrackedTraders"`
	TraderCacheTTL    time.Duration     `mapstructure:"traderCacheTtl"`
	MinTraderScore    decimal.Decimal   `mapstructure:"minTraderScore"`
	WorkerPoolSize    int               `mapstructure:"workerPoolSize"`
	MaxPositionSizeUSD decimal.Decimal  `mapstructure:"maxPositionSizeUsd"`
	MinTradeSizeUSD   decimal.Decimal   `mapstructure:"minTradeSizeUsd"`
	AdaptiveMinPercent decimal.Decimal  `mapstructure:"adaptiveMinPercent"`
	AdaptiveMaxPercent decimal.Decimal  `mapstructure:"adaptiveMaxPercent"`
	AdaptiveK         decimal.Decimal   `mapstructure:"adaptiveK"`
}

// PaperTradingConfig holds the paper-trading settings. engine.New reads
// only InitialBalanceUSD from it; the fill-model fields are not applied,
// and the simulator takes them from execution.DefaultPaperSimulatorConfig.
type PaperTradingConfig struct {
	Enabled                bool            `mapstructure:"enabled"`
	InitialBalanceUSD      decimal.Decimal `mapstructure:"initialBalanceUsd"`
	FillProbability        decimal.Decimal `mapstructure:"fillProbability"`
	PartialFillProbability decimal.Decimal `mapstructure:"partialFillProbability"`
	MinLatencyMs           int             `mapstructure:"minLatencyMs"`
	MaxLatencyMs           int             `mapstructure:"maxLatencyMs"`
	BaseSlippageBps        decimal.Decimal `mapstructure:"baseSlippageBps"`
	SizeImpactFactor       decimal.Decimal `mapstructure:"sizeImpactFactor"`
	VolatilityMultiplier   decimal.Decimal `mapstructure:"volatilityMultiplier"`
}

// ServerConfig configures the admin HTTP/WebSocket surface.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	WebSocketPath  string        `mapstructure:"websocketPath"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	MaxConnections int           `mapstructure:"maxConnections"`
	EnableMetrics  bool          `mapstructure:"enableMetrics"`
	MetricsPort    int           `mapstructure:"metricsPort"`
}

// EngineConfig is the top-level configuration tree loaded by viper.
type EngineConfig struct {
	LogLevel     string              `mapstructure:"logLevel"`
	Paper        bool                `mapstructure:"paper"`
	VenueA       VenueConfig         `mapstructure:"venueA"`
	VenueB       VenueConfig         `mapstructure:"venueB"`
	Risk         RiskLimits          `mapstructure:"risk"`
	KillSwitch   KillSwitchConfig    `mapstructure:"killSwitch"`
	Arbitrage    ArbitrageConfig     `mapstructure:"arbitrage"`
	Strategies   StrategySetConfig   `mapstructure:"strategies"`
	CopyTrading  CopyTradingConfig   `mapstructure:"copyTrading"`
	PaperTrading PaperTradingConfig  `mapstructure:"paperTrading"`
	Server       ServerConfig        `mapstructure:"server"`
	ScanInterval time.Duration       `mapstructure:"scanInterval"`
}
