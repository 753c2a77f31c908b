package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, 0.10, cfg.Risk.MaxDrawdownFraction)
	assert.Equal(t, 150.0, cfg.Risk.CriticalMarginLevel)
	assert.Equal(t, 200.0, cfg.Risk.WarnMarginLevel)
	assert.Equal(t, 100.0, cfg.Risk.MinFreeMargin)
	assert.Equal(t, 6, cfg.Risk.CooldownCycles)
	assert.Equal(t, 3, cfg.Risk.MaxOpenPositions)
	assert.Equal(t, 5*time.Second, cfg.Loop.PollInterval)
	assert.False(t, cfg.Loop.SkipUnchangedSnapshots)
	assert.NoError(t, cfg.Validate())
}

func TestPolicyAndEngine(t *testing.T) {
	cfg := Default()
	cfg.Risk.MinFreeMargin = 250
	cfg.Strategy.Volume = 0.05

	p := cfg.Policy()
	assert.Equal(t, 250.0, p.MinFreeMargin)
	assert.True(t, p.ExtendCooldownOnBreach)

	e := cfg.Engine()
	assert.Equal(t, "0.05", e.Volume.String())
	assert.Equal(t, 3, e.MaxOpenPositions)
	assert.Equal(t, "sma-cross", e.Name)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing snapshot path", func(c *Config) { c.Files.Snapshot = "" }, "files.snapshot is required"},
		{"missing commands path", func(c *Config) { c.Files.Commands = "" }, "files.commands is required"},
		{"zero poll interval", func(c *Config) { c.Loop.PollInterval = 0 }, "loop.poll_interval must be positive"},
		{"fraction too large", func(c *Config) { c.Risk.MaxDrawdownFraction = 1.5 }, "risk.max_drawdown_fraction"},
		{"warn below critical", func(c *Config) { c.Risk.WarnMarginLevel = 100 }, "risk.warn_margin_level"},
		{"negative free margin", func(c *Config) { c.Risk.MinFreeMargin = -1 }, "risk.min_free_margin"},
		{"no cooldown", func(c *Config) { c.Risk.CooldownCycles = 0 }, "risk.cooldown_cycles"},
		{"no positions", func(c *Config) { c.Risk.MaxOpenPositions = 0 }, "risk.max_open_positions"},
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "martingale" }, "unknown strategy"},
		{"zero volume", func(c *Config) { c.Strategy.Volume = 0 }, "strategy.volume must be positive"},
		{"short not below long", func(c *Config) { c.Strategy.ShortPeriod = 10 }, "strategy.short_period"},
		{"history too small", func(c *Config) { c.Strategy.HistorySize = 10 }, "strategy.history_size"},
		{"symbol with space", func(c *Config) { c.Strategy.Symbol = "EUR USD" }, "strategy.symbol"},
		{"llm without model", func(c *Config) { c.Strategy.Name = "llm" }, "llm.model is required"},
		{"llm with model", func(c *Config) { c.Strategy.Name = "llm"; c.LLM.Model = "gpt-4o-mini" }, ""},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Strategy.Symbol = "XAUUSD"
			cfg.Loop.PollInterval = 2 * time.Second
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)

			// the viper path reads the same file
			viaViper, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, viaViper)
		})
	}
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	_, err = Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
files:
  snapshot: /mt5/Common/Files/AI_snapshot.json
loop:
  poll_interval: 750ms
  skip_unchanged_snapshots: true
risk:
  extend_cooldown_on_breach: false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/mt5/Common/Files/AI_snapshot.json", cfg.Files.Snapshot)
	assert.Equal(t, "AI_commands.txt", cfg.Files.Commands)
	assert.Equal(t, 750*time.Millisecond, cfg.Loop.PollInterval)
	assert.True(t, cfg.Loop.SkipUnchangedSnapshots)
	assert.False(t, cfg.Risk.ExtendCooldownOnBreach)
	assert.Equal(t, 6, cfg.Risk.CooldownCycles)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BRIDGE_RISK_MIN_FREE_MARGIN", "500")
	t.Setenv("BRIDGE_LOOP_POLL_INTERVAL", "1s")
	t.Setenv("BRIDGE_STRATEGY_NAME", "noop")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 500.0, cfg.Risk.MinFreeMargin)
	assert.Equal(t, time.Second, cfg.Loop.PollInterval)
	assert.Equal(t, "noop", cfg.Strategy.Name)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"risk": {"cooldown_cycles": 0}}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk.cooldown_cycles")
}
