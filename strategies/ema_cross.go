package strategies

import (
	"context"

	"github.com/markcheno/go-talib"

	"github.com/rustyeddy/bridge/command"
	"github.com/rustyeddy/bridge/snapshot"
)

// EMACross trades the crossover of a fast and slow exponential moving
// average over the same mid price history as SMACross.
type EMACross struct {
	cfg  Config
	hist *History
}

func NewEMACross(cfg Config) *EMACross {
	size := cfg.HistorySize
	if size < cfg.LongPeriod+1 {
		size = cfg.LongPeriod + 1
	}
	return &EMACross{cfg: cfg, hist: NewHistory(size)}
}

func (e *EMACross) Name() string { return "ema-cross" }

func (e *EMACross) Observe(snap snapshot.Snapshot) {
	if mid, ok := snap.Mid(); ok {
		e.hist.Push(mid)
	}
}

func (e *EMACross) Decide(_ context.Context, snap snapshot.Snapshot) (command.Command, error) {
	// the slow EMA needs one settled value before the current one
	if e.hist.Len() < e.cfg.LongPeriod+1 || atCap(e.cfg, snap) {
		return command.None(), nil
	}

	closes := e.hist.Values()
	fast := talib.Ema(closes, e.cfg.ShortPeriod)
	slow := talib.Ema(closes, e.cfg.LongPeriod)
	n := len(closes) - 1

	return crossSignal(e.cfg, snap, fast[n-1], slow[n-1], fast[n], slow[n]), nil
}

func (e *EMACross) History() []float64 { return e.hist.Values() }
