// Package strategies holds the decision engines the poll loop consults.
package strategies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/bridge/command"
	"github.com/rustyeddy/bridge/snapshot"
)

// ErrEngine wraps recoverable engine failures. The loop treats them as
// NO_ACTION for the cycle.
var ErrEngine = errors.New("decision engine failed")

// Engine decides at most one command per cycle.
//
// Observe is called once per fresh snapshot to update internal history.
// Decide must be pure with respect to the snapshot and that history:
// calling it twice without an Observe in between returns the same result.
type Engine interface {
	Name() string
	Observe(snap snapshot.Snapshot)
	Decide(ctx context.Context, snap snapshot.Snapshot) (command.Command, error)
}

// Acknowledger is implemented by engines that track what was delivered.
// Delivered is called after a command is appended to the log.
type Acknowledger interface {
	Delivered(cmd command.Command)
}

// Completer is the chat transport the llm engine talks to.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Config struct {
	Name             string
	Volume           decimal.Decimal
	ShortPeriod      int
	LongPeriod       int
	HistorySize      int
	MaxOpenPositions int

	// Protective stops, in price units. Zero disables the wrapper.
	StopDistance   float64
	TargetDistance float64
	PriceDigits    int32
}

func DefaultConfig() Config {
	return Config{
		Name:             "sma-cross",
		Volume:           decimal.RequireFromString("0.01"),
		ShortPeriod:      5,
		LongPeriod:       10,
		HistorySize:      20,
		MaxOpenPositions: 3,
		PriceDigits:      5,
	}
}

// Deps are optional collaborators some engines need.
type Deps struct {
	Client Completer
	Logger *slog.Logger
}

type Factory func(cfg Config, deps Deps) (Engine, error)

var registry = map[string]Factory{
	"noop": func(Config, Deps) (Engine, error) { return Noop{}, nil },
	"sma-cross": func(cfg Config, _ Deps) (Engine, error) {
		return NewSMACross(cfg), nil
	},
	"ema-cross": func(cfg Config, _ Deps) (Engine, error) {
		return NewEMACross(cfg), nil
	},
	"llm": func(cfg Config, deps Deps) (Engine, error) {
		if deps.Client == nil {
			return nil, fmt.Errorf("llm engine needs a client")
		}
		return NewLLM(cfg, deps.Client, deps.Logger), nil
	},
}

// Register adds or replaces an engine factory.
func Register(name string, f Factory) {
	registry[name] = f
}

// Names lists registered engines in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ByName builds the named engine and wraps it with Protective when stop or
// target distances are configured.
func ByName(cfg Config, deps Deps) (Engine, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", cfg.Name, strings.Join(Names(), ", "))
	}
	e, err := f(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if cfg.StopDistance > 0 || cfg.TargetDistance > 0 {
		e = NewProtective(e, cfg.StopDistance, cfg.TargetDistance, cfg.PriceDigits)
	}
	return e, nil
}

// atCap reports whether the position cap blocks any decision.
func atCap(cfg Config, snap snapshot.Snapshot) bool {
	return cfg.MaxOpenPositions > 0 && snap.OpenPositions() >= cfg.MaxOpenPositions
}

// crossSignal turns a fast/slow pair and its previous values into a
// command. Both signals are edge triggered: they fire only on the cycle
// where the relation flips.
func crossSignal(cfg Config, snap snapshot.Snapshot, prevFast, prevSlow, fast, slow float64) command.Command {
	open := snap.OpenPositions()
	switch {
	case prevFast <= prevSlow && fast > slow:
		if open == 0 {
			return command.Market(command.Buy, cfg.Volume)
		}
	case prevFast >= prevSlow && fast < slow:
		if open > 0 {
			return command.CloseAllPositions()
		}
	}
	return command.None()
}
