// Package config loads the engine's configuration from a YAML file with
// environment-variable overrides, mirroring the ATLAS_* env convention
// used elsewhere in this module's dependency stack.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

// Load reads an EngineConfig from path (YAML), applying ATLAS_*
// environment overrides for secrets and falling back to Defaults() for
// any field the file omits.
func Load(path string) (*types.EngineConfig, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("ATLAS_VENUE_A_API_KEY"); key != "" {
		cfg.VenueA.APIKey = key
	}
	if secret := os.Getenv("ATLAS_VENUE_A_API_SECRET"); secret != "" {
		cfg.VenueA.APISecret = secret
	}
	if key := os.Getenv("ATLAS_VENUE_B_API_KEY"); key != "" {
		cfg.VenueB.APIKey = key
	}
	if secret := os.Getenv("ATLAS_VENUE_B_API_SECRET"); secret != "" {
		cfg.VenueB.APISecret = secret
	}
	if os.Getenv("ATLAS_PAPER") == "false" || os.Getenv("ATLAS_PAPER") == "0" {
		cfg.Paper = false
	}

	return cfg, nil
}

// Defaults returns a conservative, paper-trading-enabled configuration
// usable without a config file.
func Defaults() *types.EngineConfig {
	return &types.EngineConfig{
		LogLevel: "info",
		Paper:    true,
		VenueA: types.VenueConfig{
			Platform: types.PlatformVenueA, FeeBps: decimal.NewFromInt(200), RateLimitRPS: 10,
		},
		VenueB: types.VenueConfig{
			Platform: types.PlatformVenueB, FeeBps: decimal.NewFromInt(100), RateLimitRPS: 10,
		},
		Risk: types.RiskLimits{
			MaxPositionUSD: decimal.NewFromInt(1000), MaxOpenPositions: 10,
			MaxDailyLossUSD: decimal.NewFromInt(500), MaxExposurePerMarket: decimal.NewFromInt(2000),
			MinOrderSizeUSD: decimal.NewFromInt(10),
			MaxTotalExposureUSD: decimal.NewFromInt(10000), MaxDrawdownPercent: decimal.NewFromInt(20),
		},
		KillSwitch: types.KillSwitchConfig{
			MaxDailyLossUSD: decimal.NewFromInt(500), MaxDrawdownPct: decimal.NewFromInt(20),
			MaxConsecutiveLosses: 8, MaxVenueErrorRate: decimal.NewFromFloat(0.3),
			MaxInternalErrorRate: decimal.NewFromFloat(0.2), ErrorRateWindow: 5 * time.Minute,
			HeartbeatInterval: 10 * time.Second, HeartbeatTimeout: 60 * time.Second,
		},
		Arbitrage: types.ArbitrageConfig{
			MinNetMarginBps: decimal.NewFromInt(50), MaxOpportunityAgeMs: 5000,
			ExecutionTimeoutMs: 5000, MinTitleSimilarity: decimal.NewFromFloat(0.6),
			EndDateWindow: 24 * time.Hour,
		},
		Strategies: types.StrategySetConfig{
			MomentumLookback: 20, MomentumThreshold: decimal.NewFromFloat(0.03),
			MeanReversionZ: decimal.NewFromFloat(2), ImbalanceRatio: decimal.NewFromFloat(1.5),
			SpreadHunterMinBps: decimal.NewFromInt(100), VolatilityMinSigma: decimal.NewFromFloat(2),
			ProbabilitySumMinBps: decimal.NewFromInt(50), EndgameWindow: 2 * time.Hour,
			EndgameMinConfidence: decimal.NewFromFloat(0.7), SignalCooldown: time.Minute,
			MaxConcurrentSignals: 5,
		},
		CopyTrading: types.CopyTradingConfig{
			Enabled: false, PollInterval: 5 * time.Second, AggregationWindow: 10 * time.Second,
			SizingMode: types.CopySizingPercentage, SizingPercent: decimal.NewFromFloat(0.1),
			FixedSizeUSD: decimal.NewFromInt(50), MaxTrackedTraders: 500,
			TraderCacheTTL: 24 * time.Hour, MinTraderScore: decimal.NewFromFloat(0.4),
			WorkerPoolSize: 4,
			MaxPositionSizeUSD: decimal.NewFromInt(500), MinTradeSizeUSD: decimal.NewFromInt(5),
			AdaptiveMinPercent: decimal.NewFromFloat(0.02), AdaptiveMaxPercent: decimal.NewFromFloat(0.15),
			AdaptiveK: decimal.NewFromFloat(0.00002),
		},
		PaperTrading: types.PaperTradingConfig{
			Enabled: true, InitialBalanceUSD: decimal.NewFromInt(10000),
			FillProbability: decimal.NewFromFloat(0.9), PartialFillProbability: decimal.NewFromFloat(0.2),
			MinLatencyMs: 50, MaxLatencyMs: 400, BaseSlippageBps: decimal.NewFromInt(10),
			SizeImpactFactor: decimal.NewFromFloat(0.5), VolatilityMultiplier: decimal.NewFromFloat(1.5),
		},
		Server: types.ServerConfig{
			Host: "0.0.0.0", Port: 8080, WebSocketPath: "/ws",
			ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second,
			MaxConnections: 200, EnableMetrics: true, MetricsPort: 9090,
		},
		ScanInterval: 30 * time.Second,
	}
}
