package risk

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/bridge/command"
	"github.com/rustyeddy/bridge/snapshot"
)

const (
	CodeNoAction       = "NO_ACTION"
	CodeUnknownVerb    = "UNKNOWN_VERB"
	CodeBadArgs        = "BAD_ARGS"
	CodeLowFreeMargin  = "LOW_FREE_MARGIN"
	CodeLowMarginLevel = "LOW_MARGIN_LEVEL"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Code returns the first violation code, or "" when allowed.
func (d Decision) Code() string {
	if len(d.Violations) == 0 {
		return ""
	}
	return d.Violations[0].Code
}

// Reason joins the violation messages for logging.
func (d Decision) Reason() string {
	msgs := make([]string, len(d.Violations))
	for i, v := range d.Violations {
		msgs[i] = v.Code + ": " + v.Msg
	}
	return strings.Join(msgs, "; ")
}

// Validate checks cmd against the closed grammar and, for verbs that add
// exposure, against the account's margin state. Closing and modifying
// verbs only need to be well formed.
func Validate(p Policy, cmd command.Command, snap snapshot.Snapshot) Decision {
	d := ValidateSyntax(cmd)
	if !d.Allowed || !cmd.Verb.Exposure() {
		return d
	}

	acct := snap.Account
	if acct.FreeMargin < p.MinFreeMargin {
		d.add(CodeLowFreeMargin,
			fmt.Sprintf("free margin %.2f below minimum %.2f", acct.FreeMargin, p.MinFreeMargin))
	}
	if acct.Exposed() && acct.MarginLevel < p.WarnMarginLevel {
		d.add(CodeLowMarginLevel,
			fmt.Sprintf("margin level %.2f%% below %.2f%%", acct.MarginLevel, p.WarnMarginLevel))
	}
	return d
}

// ValidateSyntax is Validate without the margin checks. The CLI uses it
// for manual commands sent while no snapshot is available.
func ValidateSyntax(cmd command.Command) Decision {
	d := Decision{Allowed: true}
	switch {
	case cmd.IsNoAction():
		d.add(CodeNoAction, "NO_ACTION is not a command")
	case !cmd.Verb.Known():
		d.add(CodeUnknownVerb, fmt.Sprintf("unknown verb %q", cmd.Verb))
	default:
		if err := command.CheckArgs(cmd); err != nil {
			d.add(CodeBadArgs, strings.TrimPrefix(err.Error(), command.ErrSyntax.Error()+": "))
		}
	}
	return d
}
