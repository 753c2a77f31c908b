// Package snapshot reads the point-in-time account and market state that the
// execution host publishes to its shared snapshot file.
package snapshot

// Account mirrors the host's account block. MarginLevel is a percentage;
// 0 means no open exposure, not a literal zero level.
type Account struct {
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Margin      float64 `json:"margin"`
	FreeMargin  float64 `json:"free_margin"`
	MarginLevel float64 `json:"margin_level"`
	Profit      float64 `json:"profit"`
}

// Drawdown returns the fractional loss of equity relative to balance.
func (a Account) Drawdown() float64 {
	if a.Balance <= 0 {
		return 0
	}
	return (a.Balance - a.Equity) / a.Balance
}

// Exposed reports whether the host reports any margin in use.
func (a Account) Exposed() bool {
	return a.MarginLevel > 0
}

type Symbol struct {
	Name   string  `json:"name"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Spread float64 `json:"spread"`
}

// Mid returns (bid+ask)/2. ok is false unless both sides are quoted.
func (s Symbol) Mid() (mid float64, ok bool) {
	if s.Bid <= 0 || s.Ask <= 0 {
		return 0, false
	}
	return (s.Bid + s.Ask) / 2, true
}

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Position is an open position. Ticket is assigned by the host.
type Position struct {
	Ticket    int64   `json:"ticket"`
	Type      string  `json:"type"`
	Volume    float64 `json:"volume"`
	Symbol    string  `json:"symbol"`
	OpenPrice float64 `json:"open_price"`
	SL        float64 `json:"sl"`
	TP        float64 `json:"tp"`
	Profit    float64 `json:"profit"`
}

// Protected reports whether both a stop loss and a take profit are set.
func (p Position) Protected() bool {
	return p.SL != 0 && p.TP != 0
}

type Order struct {
	Ticket int64   `json:"ticket"`
	Type   string  `json:"type"`
	Volume float64 `json:"volume"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	SL     float64 `json:"sl"`
	TP     float64 `json:"tp"`
}

// Snapshot is a fully populated, read-only view of host state. Every read
// produces a new value; callers must not mutate the slices.
type Snapshot struct {
	Timestamp     string     `json:"timestamp"`
	Account       Account    `json:"account"`
	Symbol        Symbol     `json:"current_symbol"`
	Positions     []Position `json:"positions"`
	PendingOrders []Order    `json:"pending_orders"`
}

func (s Snapshot) Mid() (float64, bool) {
	return s.Symbol.Mid()
}

// OpenPositions counts positions on every symbol.
func (s Snapshot) OpenPositions() int {
	return len(s.Positions)
}
