package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrUnavailable means the file is absent or cannot be read. The host
	// may simply not have started yet.
	ErrUnavailable = errors.New("snapshot unavailable")

	// ErrMalformed means the file exists but does not parse. A read racing
	// the host's write lands here too.
	ErrMalformed = errors.New("snapshot malformed")
)

// Reader loads snapshots from a fixed path. It holds no state between reads.
type Reader struct {
	path string
}

func NewReader(path string) *Reader {
	return &Reader{path: path}
}

func (r *Reader) Path() string { return r.path }

// Read returns a fresh snapshot, or an error wrapping ErrUnavailable or
// ErrMalformed.
func (r *Reader) Read(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Parse(data)
}

// Parse decodes host JSON into a Snapshot. Unknown fields are ignored and
// missing fields default to zero values or empty slices.
func Parse(data []byte) (Snapshot, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Snapshot{}, fmt.Errorf("%w: empty file", ErrMalformed)
	}
	if !gjson.ValidBytes(data) {
		return Snapshot{}, fmt.Errorf("%w: invalid json", ErrMalformed)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := schema.Validate(doc); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	root := gjson.ParseBytes(data)
	snap := Snapshot{
		Timestamp:     first(root, "timestamp", "server_time").String(),
		Account:       account(root.Get("account")),
		Symbol:        symbol(root),
		Positions:     positions(root.Get("positions")),
		PendingOrders: orders(root.Get("pending_orders")),
	}
	return snap, nil
}

func first(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func account(r gjson.Result) Account {
	return Account{
		Balance:     r.Get("balance").Float(),
		Equity:      r.Get("equity").Float(),
		Margin:      r.Get("margin").Float(),
		FreeMargin:  r.Get("free_margin").Float(),
		MarginLevel: r.Get("margin_level").Float(),
		Profit:      r.Get("profit").Float(),
	}
}

func symbol(root gjson.Result) Symbol {
	r := first(root, "current_symbol", "symbol_info")
	name := r.Get("name").String()
	if name == "" {
		name = root.Get("active_symbol").String()
	}
	return Symbol{
		Name:   name,
		Bid:    r.Get("bid").Float(),
		Ask:    r.Get("ask").Float(),
		Spread: first(r, "spread", "spread_points").Float(),
	}
}

func positions(r gjson.Result) []Position {
	out := make([]Position, 0)
	r.ForEach(func(_, p gjson.Result) bool {
		out = append(out, Position{
			Ticket:    p.Get("ticket").Int(),
			Type:      strings.ToUpper(strings.TrimSpace(p.Get("type").String())),
			Volume:    p.Get("volume").Float(),
			Symbol:    p.Get("symbol").String(),
			OpenPrice: first(p, "open_price", "price_open").Float(),
			SL:        p.Get("sl").Float(),
			TP:        p.Get("tp").Float(),
			Profit:    p.Get("profit").Float(),
		})
		return true
	})
	return out
}

func orders(r gjson.Result) []Order {
	out := make([]Order, 0)
	r.ForEach(func(_, o gjson.Result) bool {
		out = append(out, Order{
			Ticket: o.Get("ticket").Int(),
			Type:   strings.ToUpper(strings.TrimSpace(o.Get("type").String())),
			Volume: o.Get("volume").Float(),
			Symbol: o.Get("symbol").String(),
			Price:  o.Get("price").Float(),
			SL:     o.Get("sl").Float(),
			TP:     o.Get("tp").Float(),
		})
		return true
	})
	return out
}
