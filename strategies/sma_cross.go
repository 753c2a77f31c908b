package strategies

import (
	"context"

	"github.com/rustyeddy/bridge/command"
	"github.com/rustyeddy/bridge/snapshot"
)

// SMACross is the reference engine: a simple moving average crossover on
// the mid price.
//
// It needs LongPeriod samples before it acts. The previous short and long
// means are taken over the history as it stood one sample earlier, so at
// exactly LongPeriod samples the previous long mean spans one sample less.
type SMACross struct {
	cfg  Config
	hist *History
}

func NewSMACross(cfg Config) *SMACross {
	return &SMACross{cfg: cfg, hist: NewHistory(cfg.HistorySize)}
}

func (s *SMACross) Name() string { return "sma-cross" }

func (s *SMACross) Observe(snap snapshot.Snapshot) {
	if mid, ok := snap.Mid(); ok {
		s.hist.Push(mid)
	}
}

func (s *SMACross) Decide(_ context.Context, snap snapshot.Snapshot) (command.Command, error) {
	if s.hist.Len() < s.cfg.LongPeriod || atCap(s.cfg, snap) {
		return command.None(), nil
	}

	short, _ := s.hist.Mean(s.cfg.ShortPeriod, 0)
	long, _ := s.hist.Mean(s.cfg.LongPeriod, 0)
	prevShort, _ := s.hist.Mean(s.cfg.ShortPeriod, 1)
	prevLong, _ := s.hist.Mean(s.cfg.LongPeriod, 1)

	return crossSignal(s.cfg, snap, prevShort, prevLong, short, long), nil
}

// History exposes the engine's samples for status reporting.
func (s *SMACross) History() []float64 { return s.hist.Values() }
