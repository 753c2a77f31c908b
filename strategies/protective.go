package strategies

import (
	"context"

	"github.com/rustyeddy/bridge/command"
	"github.com/rustyeddy/bridge/risk"
	"github.com/rustyeddy/bridge/snapshot"
)

// Protective puts stops and targets on positions that lack them before
// handing the cycle to the wrapped engine. Each ticket is requested once;
// the request is forgotten when the position disappears. Positions whose
// levels would come out negative are left to the wrapped engine.
type Protective struct {
	Engine

	stop, target float64
	digits       int32
	requested    map[int64]bool
}

func NewProtective(inner Engine, stop, target float64, digits int32) *Protective {
	return &Protective{
		Engine:    inner,
		stop:      stop,
		target:    target,
		digits:    digits,
		requested: make(map[int64]bool),
	}
}

func (p *Protective) Name() string { return p.Engine.Name() + "+protective" }

func (p *Protective) Observe(snap snapshot.Snapshot) {
	open := make(map[int64]bool, len(snap.Positions))
	for _, pos := range snap.Positions {
		open[pos.Ticket] = true
	}
	for ticket := range p.requested {
		if !open[ticket] {
			delete(p.requested, ticket)
		}
	}
	p.Engine.Observe(snap)
}

func (p *Protective) Decide(ctx context.Context, snap snapshot.Snapshot) (command.Command, error) {
	for _, pos := range snap.Positions {
		if pos.Ticket <= 0 || pos.Protected() || p.requested[pos.Ticket] {
			continue
		}
		lv := risk.ProtectiveLevels(pos, p.stop, p.target, p.digits)
		cmd := command.Modify(pos.Ticket, lv.SL, lv.TP)
		// a distance wider than the price gives a negative level the
		// validator would refuse on every cycle
		if command.CheckArgs(cmd) != nil {
			continue
		}
		return cmd, nil
	}
	return p.Engine.Decide(ctx, snap)
}

func (p *Protective) Delivered(cmd command.Command) {
	if cmd.Verb == command.ModifySLTP && len(cmd.Args) > 0 {
		if ticket, ok := cmd.Args[0].(int64); ok {
			p.requested[ticket] = true
		}
	}
	if a, ok := p.Engine.(Acknowledger); ok {
		a.Delivered(cmd)
	}
}
