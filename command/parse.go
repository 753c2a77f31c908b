package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrSyntax = errors.New("command: syntax error")

// legacy spellings accepted from free-form text
var aliases = map[string]Verb{
	"MODIFY": ModifySLTP,
}

// Parse reads one command log line: "<id> <VERB> [args...]".
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Command{}, fmt.Errorf("%w: %q: need id and verb", ErrSyntax, line)
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return Command{}, fmt.Errorf("%w: %q: bad id %q", ErrSyntax, line, fields[0])
	}
	cmd, err := parseFields(fields[1:])
	if err != nil {
		return Command{}, err
	}
	cmd.ID = id
	return cmd, nil
}

// ParseText reads an id-less command such as "BUY 0.10" or "NO_ACTION".
// Unknown verbs are returned as-is with their raw arguments so that the
// validator can reject them with a reason.
func ParseText(s string) (Command, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", ErrSyntax)
	}
	return parseFields(fields)
}

// LeadingID returns the integer that starts a log line.
func LeadingID(line string) (int64, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty line", ErrSyntax)
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", ErrSyntax, fields[0])
	}
	return id, nil
}

func parseFields(fields []string) (Command, error) {
	name := strings.ToUpper(fields[0])
	verb := Verb(name)
	if alias, ok := aliases[name]; ok {
		verb = alias
	}
	raw := fields[1:]

	if verb == NoAction {
		return None(), nil
	}

	kinds, ok := grammar[verb]
	if !ok {
		args := make([]any, len(raw))
		for i, r := range raw {
			args[i] = r
		}
		return Command{Verb: verb, Args: args}, nil
	}

	args := make([]any, 0, len(raw))
	for i, r := range raw {
		if i >= len(kinds) {
			// surplus arguments are kept so the arity check can see them
			args = append(args, r)
			continue
		}
		v, err := parseArg(kinds[i], r)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %s arg %d: %v", ErrSyntax, verb, i+1, err)
		}
		args = append(args, v)
	}
	return Command{Verb: verb, Args: args}, nil
}

func parseArg(kind ArgKind, s string) (any, error) {
	switch kind {
	case Volume, Price, Level:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("%s %q is not a number", kind, s)
		}
		return d, nil
	case Ticket:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ticket %q is not an integer", s)
		}
		return n, nil
	default:
		return s, nil
	}
}

// CheckArgs verifies arity and argument types against the verb's grammar.
func CheckArgs(c Command) error {
	kinds, ok := grammar[c.Verb]
	if !ok {
		return fmt.Errorf("%w: unknown verb %q", ErrSyntax, c.Verb)
	}
	if len(c.Args) != len(kinds) {
		return fmt.Errorf("%w: %s takes %d args, got %d", ErrSyntax, c.Verb, len(kinds), len(c.Args))
	}
	for i, kind := range kinds {
		if err := checkArg(kind, c.Args[i]); err != nil {
			return fmt.Errorf("%w: %s arg %d: %v", ErrSyntax, c.Verb, i+1, err)
		}
	}
	return nil
}

func checkArg(kind ArgKind, a any) error {
	switch kind {
	case Volume, Price:
		d, ok := a.(decimal.Decimal)
		if !ok {
			return fmt.Errorf("%s must be a decimal, got %T", kind, a)
		}
		if !d.IsPositive() {
			return fmt.Errorf("%s must be positive, got %s", kind, d)
		}
	case Level:
		d, ok := a.(decimal.Decimal)
		if !ok {
			return fmt.Errorf("level must be a decimal, got %T", a)
		}
		if d.IsNegative() {
			return fmt.Errorf("level must not be negative, got %s", d)
		}
	case Ticket:
		n, ok := a.(int64)
		if !ok {
			return fmt.Errorf("ticket must be an integer, got %T", a)
		}
		if n <= 0 {
			return fmt.Errorf("ticket must be positive, got %d", n)
		}
	case Symbol:
		s, ok := a.(string)
		if !ok {
			return fmt.Errorf("symbol must be a string, got %T", a)
		}
		if s == "" || strings.ContainsAny(s, " \t\r\n") {
			return fmt.Errorf("symbol %q must be a single non-empty token", s)
		}
	}
	return nil
}
