package agent

import (
	"time"

	"github.com/rustyeddy/bridge/risk"
	"github.com/rustyeddy/bridge/snapshot"
)

// Status is a copy of the loop's observable state, served on /status.
type Status struct {
	Run         string     `json:"run"`
	Engine      string     `json:"engine"`
	Cycles      int64      `json:"cycles"`
	LastOutcome string     `json:"last_outcome,omitempty"`
	LastCycle   time.Time  `json:"last_cycle"`
	LastCommand string     `json:"last_command,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	NextID      int64      `json:"next_id"`
	Breaker     risk.State `json:"breaker"`

	SnapshotTime string  `json:"snapshot_time,omitempty"`
	Symbol       string  `json:"symbol,omitempty"`
	Balance      float64 `json:"balance"`
	Equity       float64 `json:"equity"`
	Positions    int     `json:"positions"`
}

func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Agent) setSnapshot(snap snapshot.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.SnapshotTime = snap.Timestamp
	a.status.Symbol = snap.Symbol.Name
	a.status.Balance = snap.Account.Balance
	a.status.Equity = snap.Account.Equity
	a.status.Positions = snap.OpenPositions()
}

func (a *Agent) record(res Result) {
	a.metrics.Cycle(res.Outcome.String())
	bs := a.breaker.State()
	a.metrics.Tripped(bs.Tripped)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Cycles++
	a.status.LastOutcome = res.Outcome.String()
	a.status.LastCycle = time.Now()
	a.status.NextID = a.log.NextID()
	a.status.Breaker = bs
	if res.Outcome == Appended {
		a.status.LastCommand = res.Command.String()
	}
	a.status.LastError = ""
	if res.Err != nil {
		a.status.LastError = res.Err.Error()
	}
}
