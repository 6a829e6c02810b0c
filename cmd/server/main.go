// Package main provides the entry point for the prediction-market
// trading engine: price tracking, signal strategies, arbitrage
// detection/execution, order management, paper trading, copy trading
// and kill-switch health monitoring, all driven off the venue.Client
// contract.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-desktop/prediction-engine/internal/api"
	"github.com/atlas-desktop/prediction-engine/internal/clock"
	"github.com/atlas-desktop/prediction-engine/internal/config"
	"github.com/atlas-desktop/prediction-engine/internal/engine"
	"github.com/atlas-desktop/prediction-engine/internal/venue"
	"github.com/atlas-desktop/prediction-engine/pkg/types"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "Path to YAML config file")
	logLevel := flag.String("log-level", "", "Override configured log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting prediction engine",
		zap.Bool("paper", cfg.Paper),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := venue.NewInMemoryRepository()
	eng := engine.New(logger, clock.New(), *cfg, repo)

	for _, client := range buildVenueClients(logger, *cfg) {
		eng.AddClient(client)
	}

	server := api.NewServer(logger, cfg.Server, eng, repo)

	if err := eng.Start(ctx); err != nil {
		logger.Fatal("failed to start engine", zap.Error(err))
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("admin API server stopped with error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping engine")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	eng.Stop(shutdownCtx)
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during admin API shutdown", zap.Error(err))
	}

	logger.Info("prediction engine stopped")
}

// buildVenueClients returns the venue clients to register with the
// engine. Concrete venue clients (the CLOB and regulated-API wire
// protocols) are an integration concern outside this module's boundary,
// so none ship here: it logs a warning and returns nil. An operator's own
// venue.Client implementation is built here and wrapped with
// venue.NewBreakerClient before being returned.
func buildVenueClients(logger *zap.Logger, cfg types.EngineConfig) []venue.Client {
	_ = cfg
	logger.Warn("no venue clients wired; engine will run with no live book/order flow")
	return nil
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
