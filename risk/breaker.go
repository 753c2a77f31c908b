package risk

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/rustyeddy/bridge/snapshot"
)

type Verdict int

const (
	Pass Verdict = iota
	// Trip means the caller must force a CLOSE_ALL this cycle.
	Trip
	// Cooldown means the decision engine must be skipped this cycle.
	Cooldown
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Trip:
		return "trip"
	case Cooldown:
		return "cooldown"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// State is a point-in-time copy of the breaker for status reporting.
type State struct {
	Tripped           bool   `json:"tripped"`
	CooldownRemaining int    `json:"cooldown_remaining"`
	Trips             int    `json:"trips"`
	LastReason        string `json:"last_reason,omitempty"`
}

// Breached reports whether acct crosses either trip threshold. A zero
// margin level means no exposure and never trips.
func (p Policy) Breached(acct snapshot.Account) (reason string, ok bool) {
	if floor := acct.Balance * (1 - p.MaxDrawdownFraction); acct.Equity < floor {
		return fmt.Sprintf("equity %.2f below %.2f (drawdown %.1f%%)",
			acct.Equity, floor, 100*acct.Drawdown()), true
	}
	if acct.Exposed() && acct.MarginLevel < p.CriticalMarginLevel {
		return fmt.Sprintf("margin level %.2f%% below critical %.2f%%",
			acct.MarginLevel, p.CriticalMarginLevel), true
	}
	return "", false
}

// Breaker is the per-cycle risk gate. It moves Normal -> Tripped ->
// Cooldown -> Normal and is not persisted across restarts. Not safe for
// concurrent use.
type Breaker struct {
	policy    Policy
	tripped   bool
	remaining int
	trips     int
	reason    string
	log       *slog.Logger
}

func NewBreaker(p Policy, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Breaker{policy: p, log: logger}
}

// Evaluate advances the state machine by one cycle.
//
// A trip returns Trip once and arms cooldown_cycles Cooldown verdicts. The
// cycle after the window re-checks the account: clear resets to Pass; a
// persisting breach either re-arms the window (ExtendCooldownOnBreach) or
// trips again.
func (b *Breaker) Evaluate(snap snapshot.Snapshot) Verdict {
	if b.tripped && b.remaining > 0 {
		b.remaining--
		return Cooldown
	}

	reason, breached := b.policy.Breached(snap.Account)
	switch {
	case !breached && b.tripped:
		b.log.Warn("breaker reset", "trips", b.trips)
		b.tripped = false
		b.reason = ""
		return Pass
	case !breached:
		return Pass
	case b.tripped && b.policy.ExtendCooldownOnBreach:
		b.remaining = b.policy.CooldownCycles
		b.reason = reason
		b.log.Warn("cooldown extended", "reason", reason, "cycles", b.remaining)
		return Cooldown
	}

	b.tripped = true
	b.remaining = b.policy.CooldownCycles
	b.trips++
	b.reason = reason
	b.log.Warn("breaker tripped", "reason", reason, "cooldown_cycles", b.remaining)
	return Trip
}

func (b *Breaker) State() State {
	return State{
		Tripped:           b.tripped,
		CooldownRemaining: b.remaining,
		Trips:             b.trips,
		LastReason:        b.reason,
	}
}
