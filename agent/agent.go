// Package agent runs the poll loop that ties the snapshot reader, circuit
// breaker, decision engine, validator and command log together.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/bridge/command"
	"github.com/rustyeddy/bridge/metrics"
	"github.com/rustyeddy/bridge/pkg/id"
	"github.com/rustyeddy/bridge/risk"
	"github.com/rustyeddy/bridge/snapshot"
	"github.com/rustyeddy/bridge/strategies"
)

// Snapshots is satisfied by *snapshot.Reader.
type Snapshots interface {
	Read(ctx context.Context) (snapshot.Snapshot, error)
}

// CommandLog is satisfied by *journal.Log.
type CommandLog interface {
	NextID() int64
	Append(cmd command.Command) (command.Command, error)
}

type Options struct {
	Policy           risk.Policy
	PollInterval     time.Duration
	CooldownInterval time.Duration
	SkipUnchanged    bool
	Symbol           string // sent once as SET_SYMBOL when the host shows another
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

// Agent owns one poll loop. Step and Run must be called from a single
// goroutine; Status may be called from any.
type Agent struct {
	snaps   Snapshots
	log     CommandLog
	engine  strategies.Engine
	breaker *risk.Breaker
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics

	lastTS     string
	haveTS     bool
	symbolDone bool

	mu     sync.Mutex
	status Status
}

func New(snaps Snapshots, log CommandLog, engine strategies.Engine, opts Options) *Agent {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.CooldownInterval <= 0 {
		opts.CooldownInterval = opts.PollInterval
	}
	if engine == nil {
		engine = strategies.Noop{}
	}

	run := id.New()
	logger := opts.Logger.With("run", run)
	a := &Agent{
		snaps:      snaps,
		log:        log,
		engine:     engine,
		breaker:    risk.NewBreaker(opts.Policy, logger),
		opts:       opts,
		logger:     logger,
		metrics:    opts.Metrics,
		symbolDone: opts.Symbol == "",
	}
	a.status = Status{Run: run, Engine: engine.Name(), NextID: log.NextID()}
	a.metrics.NextID(log.NextID())
	a.metrics.Tripped(false)
	return a
}

// Run steps until ctx is canceled, sleeping PollInterval between cycles
// and CooldownInterval while the breaker holds. Cancellation interrupts
// the sleep only; a cycle in progress finishes its write first.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent started",
		"engine", a.engine.Name(),
		"poll_interval", a.opts.PollInterval,
		"next_id", a.log.NextID())

	for {
		res := a.Step(ctx)
		if res.Outcome == Canceled {
			break
		}
		wait := a.opts.PollInterval
		if res.Outcome == Tripped || res.Outcome == Cooldown {
			wait = a.opts.CooldownInterval
		}
		if !sleep(ctx, wait) {
			break
		}
	}

	a.logger.Info("agent stopped", "cycles", a.Status().Cycles, "next_id", a.log.NextID())
	return nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Step runs exactly one cycle: read, breaker, decide, validate, append.
func (a *Agent) Step(ctx context.Context) Result {
	res := a.step(ctx)
	a.record(res)
	return res
}

func (a *Agent) step(ctx context.Context) Result {
	if ctx.Err() != nil {
		return Result{Outcome: Canceled, Err: ctx.Err()}
	}

	snap, err := a.snaps.Read(ctx)
	switch {
	case err == nil:
	case errors.Is(err, snapshot.ErrUnavailable):
		a.logger.Debug("snapshot unavailable", "err", err)
		a.metrics.SnapshotError("unavailable")
		return Result{Outcome: NoSnapshot, Err: err}
	case errors.Is(err, snapshot.ErrMalformed):
		a.logger.Warn("snapshot malformed", "err", err)
		a.metrics.SnapshotError("malformed")
		return Result{Outcome: Malformed, Err: err}
	default:
		return Result{Outcome: Canceled, Err: err}
	}

	stale := a.opts.SkipUnchanged && a.haveTS && snap.Timestamp == a.lastTS
	a.lastTS, a.haveTS = snap.Timestamp, true
	a.setSnapshot(snap)

	switch a.breaker.Evaluate(snap) {
	case risk.Trip:
		a.metrics.Trip()
		if !stale {
			a.engine.Observe(snap)
		}
		res := a.submit(command.CloseAllPositions(), snap, false)
		if res.Outcome != Appended {
			a.logger.Error("forced CLOSE_ALL not delivered", "outcome", res.Outcome.String(), "err", res.Err)
		}
		res.Outcome = Tripped
		return res
	case risk.Cooldown:
		if !stale {
			a.engine.Observe(snap)
		}
		return Result{Outcome: Cooldown}
	}

	if stale {
		a.logger.Debug("snapshot unchanged", "timestamp", snap.Timestamp)
		return Result{Outcome: Stale}
	}

	// The switch cycle's quote belongs to the old symbol, so it is not
	// observed.
	if !a.symbolDone {
		a.symbolDone = true
		if !strings.EqualFold(snap.Symbol.Name, a.opts.Symbol) {
			return a.submit(command.Switch(a.opts.Symbol), snap, false)
		}
	}

	a.engine.Observe(snap)
	cmd, err := a.engine.Decide(ctx, snap)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Outcome: Canceled, Err: ctx.Err()}
		}
		if errors.Is(err, strategies.ErrEngine) {
			a.logger.Warn("engine failed, no action this cycle", "engine", a.engine.Name(), "err", err)
		} else {
			a.logger.Error("engine error, no action this cycle", "engine", a.engine.Name(), "err", err)
		}
		return Result{Outcome: EngineError, Err: err}
	}
	if cmd.IsNoAction() {
		return Result{Outcome: NoAction}
	}
	return a.submit(cmd, snap, false)
}

// Submit sends one command outside the decision cycle, as the CLI does.
// It reads a fresh snapshot for validation; with force, an unavailable
// snapshot falls back to the syntax checks alone.
func (a *Agent) Submit(ctx context.Context, cmd command.Command, force bool) Result {
	snap, err := a.snaps.Read(ctx)
	if err != nil {
		if !force {
			return Result{Outcome: NoSnapshot, Command: cmd, Err: fmt.Errorf("cannot validate without a snapshot: %w", err)}
		}
		a.logger.Warn("no snapshot, margin checks skipped", "command", cmd.Text(), "err", err)
		return a.submit(cmd, snapshot.Snapshot{}, true)
	}
	return a.submit(cmd, snap, false)
}

func (a *Agent) submit(cmd command.Command, snap snapshot.Snapshot, syntaxOnly bool) Result {
	var d risk.Decision
	if syntaxOnly {
		d = risk.ValidateSyntax(cmd)
	} else {
		d = risk.Validate(a.opts.Policy, cmd, snap)
	}
	if !d.Allowed {
		a.logger.Info("command rejected", "command", cmd.Text(), "code", d.Code(), "reason", d.Reason())
		a.metrics.Rejection(d.Code())
		return Result{Outcome: Rejected, Command: cmd, Reason: d.Reason()}
	}

	appended, err := a.log.Append(cmd)
	if err != nil {
		a.logger.Error("command not delivered", "command", cmd.Text(), "err", err)
		return Result{Outcome: WriteFailed, Command: cmd, Err: err}
	}

	a.logger.Info("command appended", "id", appended.ID, "command", appended.Text())
	a.metrics.Command(string(appended.Verb))
	a.metrics.NextID(a.log.NextID())
	if ack, ok := a.engine.(strategies.Acknowledger); ok {
		ack.Delivered(appended)
	}
	return Result{Outcome: Appended, Command: appended}
}
