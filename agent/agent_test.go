package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/bridge/command"
	"github.com/rustyeddy/bridge/journal"
	"github.com/rustyeddy/bridge/metrics"
	"github.com/rustyeddy/bridge/risk"
	"github.com/rustyeddy/bridge/snapshot"
	"github.com/rustyeddy/bridge/strategies"
)

// fakeSnaps returns whatever the test last set.
type fakeSnaps struct {
	snap snapshot.Snapshot
	err  error
}

func (f *fakeSnaps) Read(ctx context.Context) (snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return snapshot.Snapshot{}, err
	}
	return f.snap, f.err
}

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Name() string { return "mock" }

func (m *mockEngine) Observe(snap snapshot.Snapshot) { m.Called(snap) }

func (m *mockEngine) Decide(ctx context.Context, snap snapshot.Snapshot) (command.Command, error) {
	args := m.Called(ctx, snap)
	return args.Get(0).(command.Command), args.Error(1)
}

type ackEngine struct {
	mockEngine
}

func (a *ackEngine) Delivered(cmd command.Command) { a.Called(cmd) }

func healthy(ts string) snapshot.Snapshot {
	return snapshot.Snapshot{
		Timestamp: ts,
		Account:   snapshot.Account{Balance: 1000, Equity: 1000, FreeMargin: 1000},
		Symbol:    snapshot.Symbol{Name: "EURUSD", Bid: 1.085, Ask: 1.0852},
		Positions: []snapshot.Position{},
	}
}

func buy() command.Command {
	return command.Market(command.Buy, decimal.RequireFromString("0.01"))
}

func openLog(t *testing.T) (*journal.Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "AI_commands.txt")
	l, err := journal.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, path
}

func logLines(t *testing.T, path string) []string {
	t.Helper()
	entries, err := journal.ReadAll(path)
	require.NoError(t, err)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Line
	}
	return out
}

func newAgent(snaps Snapshots, log CommandLog, e strategies.Engine, mutate func(*Options)) *Agent {
	opts := Options{
		Policy:           risk.DefaultPolicy(),
		PollInterval:     time.Millisecond,
		CooldownInterval: time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(snaps, log, e, opts)
}

func TestDrawdownTripEndToEnd(t *testing.T) {
	log, path := openLog(t)
	eng := &mockEngine{}
	eng.On("Observe", mock.Anything).Return()
	eng.On("Decide", mock.Anything, mock.Anything).Return(buy(), nil)

	snaps := &fakeSnaps{snap: healthy("t0")}
	snaps.snap.Account.Equity = 880
	a := newAgent(snaps, log, eng, nil)

	res := a.Step(context.Background())
	require.Equal(t, Tripped, res.Outcome)
	assert.Equal(t, int64(1), res.Command.ID)
	assert.Equal(t, command.CloseAll, res.Command.Verb)
	assert.Equal(t, []string{"1 CLOSE_ALL"}, logLines(t, path))
	eng.AssertNumberOfCalls(t, "Observe", 1)

	for i := 0; i < 6; i++ {
		snaps.snap.Timestamp = fmt.Sprintf("t%d", i+1)
		assert.Equal(t, Cooldown, a.Step(context.Background()).Outcome, "cooldown cycle %d", i+1)
	}
	assert.Equal(t, []string{"1 CLOSE_ALL"}, logLines(t, path))
	eng.AssertNotCalled(t, "Decide", mock.Anything, mock.Anything)
	eng.AssertNumberOfCalls(t, "Observe", 7)

	// the seventh cycle after the trip re-evaluates: still breached, so the
	// window is extended without another CLOSE_ALL
	snaps.snap.Timestamp = "t7"
	assert.Equal(t, Cooldown, a.Step(context.Background()).Outcome)
	st := a.Status()
	assert.Equal(t, 6, st.Breaker.CooldownRemaining)
	assert.Equal(t, 1, st.Breaker.Trips)
	assert.Equal(t, []string{"1 CLOSE_ALL"}, logLines(t, path))
}

func TestRecoveryAfterCooldown(t *testing.T) {
	log, path := openLog(t)
	eng := &mockEngine{}
	eng.On("Observe", mock.Anything).Return()
	eng.On("Decide", mock.Anything, mock.Anything).Return(buy(), nil)

	snaps := &fakeSnaps{snap: healthy("t0")}
	snaps.snap.Account.Equity = 880
	a := newAgent(snaps, log, eng, nil)

	require.Equal(t, Tripped, a.Step(context.Background()).Outcome)
	snaps.snap = healthy("t1")
	for i := 0; i < 6; i++ {
		require.Equal(t, Cooldown, a.Step(context.Background()).Outcome)
	}

	res := a.Step(context.Background())
	require.Equal(t, Appended, res.Outcome)
	assert.Equal(t, int64(2), res.Command.ID)
	assert.Equal(t, []string{"1 CLOSE_ALL", "2 BUY 0.01"}, logLines(t, path))
	assert.False(t, a.Status().Breaker.Tripped)
}

func TestRetripWhenNotExtending(t *testing.T) {
	log, path := openLog(t)
	snaps := &fakeSnaps{snap: healthy("t0")}
	snaps.snap.Account.Equity = 880
	a := newAgent(snaps, log, strategies.Noop{}, func(o *Options) {
		o.Policy.ExtendCooldownOnBreach = false
	})

	var outcomes []Outcome
	for i := 0; i < 8; i++ {
		outcomes = append(outcomes, a.Step(context.Background()).Outcome)
	}
	assert.Equal(t, Tripped, outcomes[0])
	assert.Equal(t, Tripped, outcomes[7])
	assert.Equal(t, []string{"1 CLOSE_ALL", "2 CLOSE_ALL"}, logLines(t, path))
}

func TestSkipUnchangedSnapshots(t *testing.T) {
	tests := []struct {
		name      string
		skip      bool
		second    Outcome
		decisions int
	}{
		{"skip on", true, Stale, 1},
		{"skip off", false, NoAction, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, _ := openLog(t)
			eng := &mockEngine{}
			eng.On("Observe", mock.Anything).Return()
			eng.On("Decide", mock.Anything, mock.Anything).Return(command.None(), nil)

			snaps := &fakeSnaps{snap: healthy("2026.01.05 10:15:00")}
			a := newAgent(snaps, log, eng, func(o *Options) { o.SkipUnchanged = tt.skip })

			assert.Equal(t, NoAction, a.Step(context.Background()).Outcome)
			assert.Equal(t, tt.second, a.Step(context.Background()).Outcome)
			eng.AssertNumberOfCalls(t, "Decide", tt.decisions)
			eng.AssertNumberOfCalls(t, "Observe", tt.decisions)

			snaps.snap.Timestamp = "2026.01.05 10:15:05"
			assert.Equal(t, NoAction, a.Step(context.Background()).Outcome)
			eng.AssertNumberOfCalls(t, "Decide", tt.decisions+1)
		})
	}
}

func TestStaleSnapshotStillTrips(t *testing.T) {
	log, _ := openLog(t)
	snaps := &fakeSnaps{snap: healthy("same")}
	a := newAgent(snaps, log, strategies.Noop{}, func(o *Options) { o.SkipUnchanged = true })

	require.Equal(t, NoAction, a.Step(context.Background()).Outcome)
	snaps.snap.Account.Equity = 800
	assert.Equal(t, Tripped, a.Step(context.Background()).Outcome)
}

func TestRejectionConsumesNoID(t *testing.T) {
	log, path := openLog(t)
	eng := &mockEngine{}
	eng.On("Observe", mock.Anything).Return()
	eng.On("Decide", mock.Anything, mock.Anything).Return(buy(), nil).Once()
	eng.On("Decide", mock.Anything, mock.Anything).Return(command.CloseAllPositions(), nil).Once()

	m := metrics.New()
	snaps := &fakeSnaps{snap: healthy("t0")}
	snaps.snap.Account.FreeMargin = 50
	a := newAgent(snaps, log, eng, func(o *Options) { o.Metrics = m })

	res := a.Step(context.Background())
	assert.Equal(t, Rejected, res.Outcome)
	assert.Contains(t, res.Reason, risk.CodeLowFreeMargin)
	assert.Equal(t, int64(1), log.NextID())

	snaps.snap.Timestamp = "t1"
	res = a.Step(context.Background())
	assert.Equal(t, Appended, res.Outcome)
	assert.Equal(t, int64(1), res.Command.ID)
	assert.Equal(t, []string{"1 CLOSE_ALL"}, logLines(t, path))
}

func TestEngineErrorIsNoAction(t *testing.T) {
	log, _ := openLog(t)
	eng := &mockEngine{}
	eng.On("Observe", mock.Anything).Return()
	eng.On("Decide", mock.Anything, mock.Anything).
		Return(command.None(), fmt.Errorf("%w: upstream timeout", strategies.ErrEngine))

	a := newAgent(&fakeSnaps{snap: healthy("t0")}, log, eng, nil)
	res := a.Step(context.Background())
	assert.Equal(t, EngineError, res.Outcome)
	assert.ErrorIs(t, res.Err, strategies.ErrEngine)
	assert.Equal(t, int64(1), log.NextID())
	assert.Contains(t, a.Status().LastError, "upstream timeout")
}

func TestSnapshotFailures(t *testing.T) {
	tests := []struct {
		err  error
		want Outcome
	}{
		{fmt.Errorf("%w: no such file", snapshot.ErrUnavailable), NoSnapshot},
		{fmt.Errorf("%w: unexpected end of input", snapshot.ErrMalformed), Malformed},
	}
	for _, tt := range tests {
		log, _ := openLog(t)
		eng := &mockEngine{}
		a := newAgent(&fakeSnaps{err: tt.err}, log, eng, nil)
		assert.Equal(t, tt.want, a.Step(context.Background()).Outcome)
		eng.AssertNotCalled(t, "Observe", mock.Anything)
	}
}

func TestSetSymbolOnce(t *testing.T) {
	log, path := openLog(t)
	eng := &mockEngine{}
	eng.On("Observe", mock.Anything).Return()
	eng.On("Decide", mock.Anything, mock.Anything).Return(command.None(), nil)

	snaps := &fakeSnaps{snap: healthy("t0")}
	a := newAgent(snaps, log, eng, func(o *Options) { o.Symbol = "XAUUSD" })

	res := a.Step(context.Background())
	require.Equal(t, Appended, res.Outcome)
	assert.Equal(t, "SET_SYMBOL XAUUSD", res.Command.Text())
	eng.AssertNotCalled(t, "Decide", mock.Anything, mock.Anything)
	eng.AssertNotCalled(t, "Observe", mock.Anything)

	snaps.snap.Timestamp = "t1"
	assert.Equal(t, NoAction, a.Step(context.Background()).Outcome)
	assert.Equal(t, []string{"1 SET_SYMBOL XAUUSD"}, logLines(t, path))
}

func TestSetSymbolSkippedWhenAlreadyActive(t *testing.T) {
	log, path := openLog(t)
	a := newAgent(&fakeSnaps{snap: healthy("t0")}, log, strategies.Noop{}, func(o *Options) { o.Symbol = "eurusd" })
	assert.Equal(t, NoAction, a.Step(context.Background()).Outcome)
	assert.Empty(t, logLines(t, path))
}

func TestDeliveredCalledWithID(t *testing.T) {
	log, _ := openLog(t)
	eng := &ackEngine{}
	eng.On("Observe", mock.Anything).Return()
	eng.On("Decide", mock.Anything, mock.Anything).Return(buy(), nil)
	eng.On("Delivered", mock.MatchedBy(func(c command.Command) bool {
		return c.ID == 1 && c.Verb == command.Buy
	})).Return().Once()

	a := newAgent(&fakeSnaps{snap: healthy("t0")}, log, eng, nil)
	assert.Equal(t, Appended, a.Step(context.Background()).Outcome)
	eng.AssertExpectations(t)
}

// brokenLog fails every append.
type brokenLog struct{ next int64 }

func (b *brokenLog) NextID() int64 { return b.next }

func (b *brokenLog) Append(cmd command.Command) (command.Command, error) {
	return cmd, fmt.Errorf("%w: disk full", journal.ErrWrite)
}

func TestWriteFailure(t *testing.T) {
	eng := &ackEngine{}
	eng.On("Observe", mock.Anything).Return()
	eng.On("Decide", mock.Anything, mock.Anything).Return(buy(), nil)

	a := newAgent(&fakeSnaps{snap: healthy("t0")}, &brokenLog{next: 4}, eng, nil)
	res := a.Step(context.Background())
	assert.Equal(t, WriteFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, journal.ErrWrite)
	eng.AssertNotCalled(t, "Delivered", mock.Anything)
	assert.Equal(t, int64(4), a.Status().NextID)
}

func TestTripEntersCooldownEvenIfWriteFails(t *testing.T) {
	snaps := &fakeSnaps{snap: healthy("t0")}
	snaps.snap.Account.Equity = 500
	a := newAgent(snaps, &brokenLog{next: 1}, strategies.Noop{}, nil)

	res := a.Step(context.Background())
	assert.Equal(t, Tripped, res.Outcome)
	assert.ErrorIs(t, res.Err, journal.ErrWrite)
	assert.Equal(t, Cooldown, a.Step(context.Background()).Outcome)
}

func TestSubmit(t *testing.T) {
	log, path := openLog(t)
	snaps := &fakeSnaps{err: snapshot.ErrUnavailable}
	a := newAgent(snaps, log, nil, nil)

	res := a.Submit(context.Background(), buy(), false)
	assert.Equal(t, NoSnapshot, res.Outcome)
	assert.Error(t, res.Err)

	res = a.Submit(context.Background(), buy(), true)
	assert.Equal(t, Appended, res.Outcome)

	res = a.Submit(context.Background(), command.New("HEDGE"), true)
	assert.Equal(t, Rejected, res.Outcome)

	snaps.err = nil
	snaps.snap = healthy("t0")
	snaps.snap.Account.FreeMargin = 10
	res = a.Submit(context.Background(), buy(), true)
	assert.Equal(t, Rejected, res.Outcome, "force does not bypass margin checks when a snapshot exists")

	res = a.Submit(context.Background(), command.CloseAllPositions(), false)
	assert.Equal(t, Appended, res.Outcome)
	assert.Equal(t, []string{"1 BUY 0.01", "2 CLOSE_ALL"}, logLines(t, path))
}

func TestRunStopsOnCancel(t *testing.T) {
	log, _ := openLog(t)
	a := newAgent(&fakeSnaps{snap: healthy("t0")}, log, strategies.Noop{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	assert.Eventually(t, func() bool { return a.Status().Cycles >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStepCanceled(t *testing.T) {
	log, _ := openLog(t)
	a := newAgent(&fakeSnaps{snap: healthy("t0")}, log, strategies.Noop{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := a.Step(ctx)
	assert.Equal(t, Canceled, res.Outcome)
	assert.True(t, errors.Is(res.Err, context.Canceled))
}

func TestReferenceEngineThroughLoop(t *testing.T) {
	log, path := openLog(t)
	snaps := &fakeSnaps{}
	a := newAgent(snaps, log, strategies.NewSMACross(strategies.DefaultConfig()), nil)

	mids := []float64{1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.1, 1.3, 1.5}
	for i, m := range mids {
		snaps.snap = healthy(fmt.Sprintf("t%d", i))
		snaps.snap.Symbol.Bid, snaps.snap.Symbol.Ask = m, m
		a.Step(context.Background())
	}
	assert.Equal(t, []string{"1 BUY 0.01"}, logLines(t, path))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "no_snapshot", NoSnapshot.String())
	assert.Equal(t, "write_failed", WriteFailed.String())
	assert.Equal(t, "outcome(99)", Outcome(99).String())
}

func TestStatusAfterAppend(t *testing.T) {
	log, _ := openLog(t)
	eng := &mockEngine{}
	eng.On("Observe", mock.Anything).Return()
	eng.On("Decide", mock.Anything, mock.Anything).Return(buy(), nil)

	a := newAgent(&fakeSnaps{snap: healthy("t0")}, log, eng, nil)
	a.Step(context.Background())

	st := a.Status()
	assert.Equal(t, "mock", st.Engine)
	assert.Equal(t, int64(1), st.Cycles)
	assert.Equal(t, "appended", st.LastOutcome)
	assert.Equal(t, "1 BUY 0.01", st.LastCommand)
	assert.Equal(t, int64(2), st.NextID)
	assert.Equal(t, "EURUSD", st.Symbol)
	assert.NotEmpty(t, st.Run)
}
