package agent

import (
	"fmt"

	"github.com/rustyeddy/bridge/command"
)

// Outcome classifies one cycle.
type Outcome int

const (
	NoSnapshot  Outcome = iota // snapshot file absent or unreadable
	Malformed                  // snapshot did not parse
	Tripped                    // breaker tripped; CLOSE_ALL forced
	Cooldown                   // breaker cooling down; engine skipped
	Stale                      // timestamp unchanged and skipping is on
	NoAction                   // engine chose not to act
	EngineError                // engine failed; treated as NoAction
	Rejected                   // validator refused the command
	Appended                   // command written to the log
	WriteFailed                // command not delivered
	Canceled                   // context done
)

var outcomeNames = [...]string{
	NoSnapshot:  "no_snapshot",
	Malformed:   "malformed",
	Tripped:     "tripped",
	Cooldown:    "cooldown",
	Stale:       "stale",
	NoAction:    "no_action",
	EngineError: "engine_error",
	Rejected:    "rejected",
	Appended:    "appended",
	WriteFailed: "write_failed",
	Canceled:    "canceled",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result reports what a cycle did. Command is set when one was proposed,
// and carries its id when Outcome is Appended.
type Result struct {
	Outcome Outcome
	Command command.Command
	Reason  string
	Err     error
}
