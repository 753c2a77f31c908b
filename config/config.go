package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/bridge/risk"
	"github.com/rustyeddy/bridge/strategies"
)

// Config is read once at startup and handed to each component by value.
type Config struct {
	Files    FilesConfig    `json:"files" yaml:"files"`
	Loop     LoopConfig     `json:"loop" yaml:"loop"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	LLM      LLMConfig      `json:"llm" yaml:"llm"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// FilesConfig names the two files shared with the host.
type FilesConfig struct {
	Snapshot string `json:"snapshot" yaml:"snapshot"`
	Commands string `json:"commands" yaml:"commands"`
}

type LoopConfig struct {
	PollInterval     time.Duration `json:"poll_interval" yaml:"poll_interval"`
	CooldownInterval time.Duration `json:"cooldown_interval" yaml:"cooldown_interval"` // sleep while the breaker is cooling down

	// Skip Observe/Decide when the snapshot timestamp has not moved.
	SkipUnchangedSnapshots bool `json:"skip_unchanged_snapshots" yaml:"skip_unchanged_snapshots"`
}

type RiskConfig struct {
	MaxDrawdownFraction    float64 `json:"max_drawdown_fraction" yaml:"max_drawdown_fraction"`
	CriticalMarginLevel    float64 `json:"critical_margin_level" yaml:"critical_margin_level"`
	WarnMarginLevel        float64 `json:"warn_margin_level" yaml:"warn_margin_level"`
	MinFreeMargin          float64 `json:"min_free_margin" yaml:"min_free_margin"`
	CooldownCycles         int     `json:"cooldown_cycles" yaml:"cooldown_cycles"`
	ExtendCooldownOnBreach bool    `json:"extend_cooldown_on_breach" yaml:"extend_cooldown_on_breach"`
	MaxOpenPositions       int     `json:"max_open_positions" yaml:"max_open_positions"`
}

type StrategyConfig struct {
	Name   string  `json:"name" yaml:"name"`
	Symbol string  `json:"symbol" yaml:"symbol"` // sent once as SET_SYMBOL; empty keeps the host's choice
	Volume float64 `json:"volume" yaml:"volume"`

	ShortPeriod int `json:"short_period" yaml:"short_period"`
	LongPeriod  int `json:"long_period" yaml:"long_period"`
	HistorySize int `json:"history_size" yaml:"history_size"`

	StopDistance   float64 `json:"stop_distance" yaml:"stop_distance"`
	TargetDistance float64 `json:"target_distance" yaml:"target_distance"`
	PriceDigits    int32   `json:"price_digits" yaml:"price_digits"`
}

type LLMConfig struct {
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	APIKey      string        `json:"api_key" yaml:"api_key"`
	Model       string        `json:"model" yaml:"model"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries  int           `json:"max_retries" yaml:"max_retries"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
}

// MetricsConfig: an empty Addr disables the HTTP server.
type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
	Path   string `json:"path" yaml:"path"`     // optional file, in addition to stdout
}

// Default returns a configuration with the standard limits.
func Default() *Config {
	p := risk.DefaultPolicy()
	return &Config{
		Files: FilesConfig{
			Snapshot: "AI_snapshot.json",
			Commands: "AI_commands.txt",
		},
		Loop: LoopConfig{
			PollInterval:     5 * time.Second,
			CooldownInterval: 10 * time.Second,
		},
		Risk: RiskConfig{
			MaxDrawdownFraction:    p.MaxDrawdownFraction,
			CriticalMarginLevel:    p.CriticalMarginLevel,
			WarnMarginLevel:        p.WarnMarginLevel,
			MinFreeMargin:          p.MinFreeMargin,
			CooldownCycles:         p.CooldownCycles,
			ExtendCooldownOnBreach: p.ExtendCooldownOnBreach,
			MaxOpenPositions:       3,
		},
		Strategy: StrategyConfig{
			Name:        "sma-cross",
			Volume:      0.01,
			ShortPeriod: 5,
			LongPeriod:  10,
			HistorySize: 20,
			PriceDigits: 5,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     60 * time.Second,
			MaxRetries:  2,
			Temperature: 0.5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Policy returns the risk limits.
func (c *Config) Policy() risk.Policy {
	return risk.Policy{
		MaxDrawdownFraction:    c.Risk.MaxDrawdownFraction,
		CriticalMarginLevel:    c.Risk.CriticalMarginLevel,
		CooldownCycles:         c.Risk.CooldownCycles,
		ExtendCooldownOnBreach: c.Risk.ExtendCooldownOnBreach,
		WarnMarginLevel:        c.Risk.WarnMarginLevel,
		MinFreeMargin:          c.Risk.MinFreeMargin,
	}
}

// Engine returns the decision engine settings.
func (c *Config) Engine() strategies.Config {
	return strategies.Config{
		Name:             c.Strategy.Name,
		Volume:           decimal.NewFromFloat(c.Strategy.Volume),
		ShortPeriod:      c.Strategy.ShortPeriod,
		LongPeriod:       c.Strategy.LongPeriod,
		HistorySize:      c.Strategy.HistorySize,
		MaxOpenPositions: c.Risk.MaxOpenPositions,
		StopDistance:     c.Strategy.StopDistance,
		TargetDistance:   c.Strategy.TargetDistance,
		PriceDigits:      c.Strategy.PriceDigits,
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML) on top of
// the defaults, without environment overrides.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Files.Snapshot == "" {
		return fmt.Errorf("files.snapshot is required")
	}
	if c.Files.Commands == "" {
		return fmt.Errorf("files.commands is required")
	}
	if c.Loop.PollInterval <= 0 {
		return fmt.Errorf("loop.poll_interval must be positive")
	}
	if c.Loop.CooldownInterval <= 0 {
		return fmt.Errorf("loop.cooldown_interval must be positive")
	}

	r := c.Risk
	if r.MaxDrawdownFraction <= 0 || r.MaxDrawdownFraction >= 1 {
		return fmt.Errorf("risk.max_drawdown_fraction must be between 0 and 1")
	}
	if r.CriticalMarginLevel < 0 {
		return fmt.Errorf("risk.critical_margin_level must not be negative")
	}
	if r.WarnMarginLevel < r.CriticalMarginLevel {
		return fmt.Errorf("risk.warn_margin_level must be at least risk.critical_margin_level")
	}
	if r.MinFreeMargin < 0 {
		return fmt.Errorf("risk.min_free_margin must not be negative")
	}
	if r.CooldownCycles < 1 {
		return fmt.Errorf("risk.cooldown_cycles must be at least 1")
	}
	if r.MaxOpenPositions < 1 {
		return fmt.Errorf("risk.max_open_positions must be at least 1")
	}

	s := c.Strategy
	if !known(s.Name) {
		return fmt.Errorf("unknown strategy %q (supported: %s)", s.Name, strings.Join(strategies.Names(), ", "))
	}
	if s.Volume <= 0 {
		return fmt.Errorf("strategy.volume must be positive")
	}
	if s.ShortPeriod < 1 || s.ShortPeriod >= s.LongPeriod {
		return fmt.Errorf("strategy.short_period must be at least 1 and below strategy.long_period")
	}
	if s.HistorySize < s.LongPeriod+1 {
		return fmt.Errorf("strategy.history_size must exceed strategy.long_period")
	}
	if s.StopDistance < 0 || s.TargetDistance < 0 {
		return fmt.Errorf("strategy stop/target distances must not be negative")
	}
	if s.PriceDigits < 0 || s.PriceDigits > 10 {
		return fmt.Errorf("strategy.price_digits must be between 0 and 10")
	}
	if strings.ContainsAny(s.Symbol, " \t") {
		return fmt.Errorf("strategy.symbol must be a single token")
	}

	if strings.EqualFold(strings.TrimSpace(s.Name), "llm") && c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required for the llm strategy")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

func known(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, n := range strategies.Names() {
		if n == name {
			return true
		}
	}
	return false
}
