// Package command defines the closed command grammar understood by the
// execution host and the line format of the command log.
package command

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Verb string

const (
	Buy         Verb = "BUY"
	Sell        Verb = "SELL"
	BuyLimit    Verb = "BUY_LIMIT"
	SellLimit   Verb = "SELL_LIMIT"
	BuyStop     Verb = "BUY_STOP"
	SellStop    Verb = "SELL_STOP"
	ModifySLTP  Verb = "MODIFY_SLTP"
	CloseTicket Verb = "CLOSE_TICKET"
	CloseSymbol Verb = "CLOSE_SYMBOL"
	CloseAll    Verb = "CLOSE_ALL"
	SetSymbol   Verb = "SET_SYMBOL"

	// NoAction is internal only. It is never validated or written to the log.
	NoAction Verb = "NO_ACTION"
)

// ArgKind is the type of a single positional argument.
type ArgKind int

const (
	Volume ArgKind = iota // decimal, > 0
	Price                 // decimal, > 0
	Level                 // decimal, >= 0 (0 clears a stop/target)
	Ticket                // int64, > 0
	Symbol                // non-empty, no whitespace
)

func (k ArgKind) String() string {
	switch k {
	case Volume:
		return "volume"
	case Price:
		return "price"
	case Level:
		return "level"
	case Ticket:
		return "ticket"
	case Symbol:
		return "symbol"
	default:
		return "unknown"
	}
}

var grammar = map[Verb][]ArgKind{
	Buy:         {Volume},
	Sell:        {Volume},
	BuyLimit:    {Volume, Price},
	SellLimit:   {Volume, Price},
	BuyStop:     {Volume, Price},
	SellStop:    {Volume, Price},
	ModifySLTP:  {Ticket, Level, Level},
	CloseTicket: {Ticket},
	CloseSymbol: {Symbol},
	CloseAll:    {},
	SetSymbol:   {Symbol},
}

// Verbs returns the closed verb set in table order.
func Verbs() []Verb {
	return []Verb{
		Buy, Sell, BuyLimit, SellLimit, BuyStop, SellStop,
		ModifySLTP, CloseTicket, CloseSymbol, CloseAll, SetSymbol,
	}
}

// Known reports whether v belongs to the closed verb set. NoAction is not
// part of the set.
func (v Verb) Known() bool {
	_, ok := grammar[v]
	return ok
}

// Exposure reports whether v can increase market exposure.
func (v Verb) Exposure() bool {
	switch v {
	case Buy, Sell, BuyLimit, SellLimit, BuyStop, SellStop:
		return true
	}
	return false
}

// Args returns the fixed argument kinds for v.
func (v Verb) Args() ([]ArgKind, bool) {
	kinds, ok := grammar[v]
	if !ok {
		return nil, false
	}
	out := make([]ArgKind, len(kinds))
	copy(out, kinds)
	return out, true
}

// Command is a single instruction for the host. Args hold decimal.Decimal
// (volume, price, level), int64 (ticket) or string (symbol) values in the
// order given by the verb's grammar.
type Command struct {
	ID   int64
	Verb Verb
	Args []any
}

func New(verb Verb, args ...any) Command {
	return Command{Verb: verb, Args: args}
}

func None() Command { return Command{Verb: NoAction} }

func Market(verb Verb, volume decimal.Decimal) Command { return New(verb, volume) }

func Pending(verb Verb, volume, price decimal.Decimal) Command {
	return New(verb, volume, price)
}

func Modify(ticket int64, sl, tp decimal.Decimal) Command {
	return New(ModifySLTP, ticket, sl, tp)
}

func Close(ticket int64) Command { return New(CloseTicket, ticket) }

func CloseAllPositions() Command { return New(CloseAll) }

func Switch(symbol string) Command { return New(SetSymbol, symbol) }

// IsNoAction reports whether c carries no instruction. The zero Command is
// treated as NoAction.
func (c Command) IsNoAction() bool {
	return c.Verb == NoAction || c.Verb == ""
}

// Text renders the command without its id: "VERB arg1 arg2".
func (c Command) Text() string {
	var b strings.Builder
	b.WriteString(string(c.Verb))
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(formatArg(a))
	}
	return b.String()
}

// String renders the log form without the trailing newline.
func (c Command) String() string {
	return strconv.FormatInt(c.ID, 10) + " " + c.Text()
}

// Line renders the exact bytes appended to the command log.
func (c Command) Line() string {
	return c.String() + "\n"
}

func formatArg(a any) string {
	switch v := a.(type) {
	case decimal.Decimal:
		return v.String()
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	case float64:
		return decimal.NewFromFloat(v).String()
	default:
		return "?"
	}
}
