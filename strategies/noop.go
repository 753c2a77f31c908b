package strategies

import (
	"context"

	"github.com/rustyeddy/bridge/command"
	"github.com/rustyeddy/bridge/snapshot"
)

// Noop never acts. Useful for running the breaker on its own.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Observe(snapshot.Snapshot) {}

func (Noop) Decide(context.Context, snapshot.Snapshot) (command.Command, error) {
	return command.None(), nil
}
