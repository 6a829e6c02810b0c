package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Defaults()
	if cfg.LogLevel != want.LogLevel {
		t.Errorf("expected default log level %q, got %q", want.LogLevel, cfg.LogLevel)
	}
	if cfg.Paper != want.Paper {
		t.Errorf("expected default paper %v, got %v", want.Paper, cfg.Paper)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoadOverridesNamedFieldsAndKeepsDefaultsForTheRest(t *testing.T) {
	path := writeConfig(t, "logLevel: debug\npaper: false\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected logLevel overridden to debug, got %q", cfg.LogLevel)
	}
	if cfg.Paper {
		t.Error("expected paper overridden to false")
	}

	defaults := Defaults()
	if !cfg.Risk.MaxPositionUSD.Equal(defaults.Risk.MaxPositionUSD) {
		t.Errorf("expected risk limits to retain their default when omitted from the file, got %s", cfg.Risk.MaxPositionUSD)
	}
}

func TestLoadAppliesAPICredentialEnvOverrides(t *testing.T) {
	path := writeConfig(t, "logLevel: info\n")

	t.Setenv("ATLAS_VENUE_A_API_KEY", "key-a")
	t.Setenv("ATLAS_VENUE_A_API_SECRET", "secret-a")
	t.Setenv("ATLAS_VENUE_B_API_KEY", "key-b")
	t.Setenv("ATLAS_VENUE_B_API_SECRET", "secret-b")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.VenueA.APIKey != "key-a" || cfg.VenueA.APISecret != "secret-a" {
		t.Errorf("expected venue A credentials overridden from env, got %+v", cfg.VenueA)
	}
	if cfg.VenueB.APIKey != "key-b" || cfg.VenueB.APISecret != "secret-b" {
		t.Errorf("expected venue B credentials overridden from env, got %+v", cfg.VenueB)
	}
}

func TestLoadAppliesPaperEnvOverride(t *testing.T) {
	path := writeConfig(t, "paper: true\n")
	t.Setenv("ATLAS_PAPER", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Paper {
		t.Error("expected ATLAS_PAPER=false to override paper to false even though the file set it true")
	}
}

func TestDefaultsAreInternallyConsistent(t *testing.T) {
	cfg := Defaults()
	if cfg.Risk.MinOrderSizeUSD.GreaterThan(cfg.Risk.MaxPositionUSD) {
		t.Error("expected the minimum order size to be below the max position size")
	}
	if !cfg.Arbitrage.MinNetMarginBps.IsPositive() {
		t.Error("expected a positive minimum net margin threshold")
	}
	if cfg.PaperTrading.FillProbability.GreaterThan(decimal.NewFromInt(1)) {
		t.Error("expected fill probability to be a fraction no greater than 1")
	}
}
