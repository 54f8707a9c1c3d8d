package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"forex-trading-bot/internal/strategy"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Strategy.Kind != strategy.KindProgressiveLockIn {
		t.Errorf("default strategy = %q", cfg.Strategy.Kind)
	}
	if len(cfg.Symbols) != 1 || cfg.Symbols[0] != "EURUSD" {
		t.Errorf("default symbols = %v", cfg.Symbols)
	}
	if cfg.LoopInterval() != 5*time.Second {
		t.Errorf("default loop interval = %v", cfg.LoopInterval())
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `{
		"symbols": ["EURUSD", "USDJPY"],
		"loop_interval_ms": 1000,
		"strategy": {
			"kind": "trailing_stop",
			"leg_volume": 0.1,
			"trailing": {"breakeven_trigger_pips": 25, "lock_trigger_pips": 50, "lock_amount_pips": 30}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Symbols) != 2 {
		t.Errorf("symbols = %v", cfg.Symbols)
	}
	if cfg.Strategy.Kind != strategy.KindTrailingStop {
		t.Errorf("strategy = %q", cfg.Strategy.Kind)
	}
	if cfg.LoopInterval() != time.Second {
		t.Errorf("loop interval = %v", cfg.LoopInterval())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOT_SYMBOLS", "GBPUSD, XAUUSD")
	t.Setenv("BOT_STRATEGY", string(strategy.KindDrawdownLayering))

	path := writeConfig(t, `{
		"symbols": ["EURUSD"],
		"strategy": {
			"kind": "trailing_stop",
			"leg_volume": 0.1,
			"drawdown": {"layer_trigger_pips": 20, "max_layers": 3, "legs_per_layer": 1, "min_total_profit_pips": 10}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "GBPUSD" || cfg.Symbols[1] != "XAUUSD" {
		t.Errorf("symbols = %v", cfg.Symbols)
	}
	if cfg.Strategy.Kind != strategy.KindDrawdownLayering {
		t.Errorf("strategy = %q", cfg.Strategy.Kind)
	}
}

func TestLoadRejectsConflicts(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"trailing with multiple legs",
			`{"strategy": {"kind": "trailing_stop", "legs": 3, "leg_volume": 0.1}}`,
		},
		{
			"unknown kind",
			`{"strategy": {"kind": "martingale", "leg_volume": 0.1}}`,
		},
		{
			"drawdown without layer params",
			`{"strategy": {"kind": "drawdown_layering", "leg_volume": 0.1}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if !errors.Is(err, strategy.ErrConfigurationConflict) {
				t.Errorf("Load() error = %v, want ErrConfigurationConflict", err)
			}
		})
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed config")
	}
}
