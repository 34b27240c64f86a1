// Package collection reads and writes puzzle collection documents: JSONC
// files holding an author block and one or more puzzle entries whose
// transactions key carries the persisted event history.
package collection

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/mwehr/fundtrace/internal/events"
)

// Document is a loaded collection file. The underlying JSON tree is kept
// generic so fields this tool does not own (keys, pubkeys, prizes) survive a
// round trip untouched.
type Document struct {
	path string
	root map[string]any
}

// Load parses a collection document, stripping JSONC comments first.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
	}

	var root map[string]any
	if err := json.Unmarshal([]byte(StripJSONC(string(raw))), &root); err != nil {
		return nil, fmt.Errorf("parse collection %s: %w", path, err)
	}
	return &Document{path: path, root: root}, nil
}

// Save writes the document back, pretty-printed. Comments stripped at load
// time are not restored.
func (d *Document) Save() error {
	content, err := json.MarshalIndent(d.root, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}
	if err := os.WriteFile(d.path, append(content, '\n'), 0o644); err != nil {
		return fmt.Errorf("write collection: %w", err)
	}
	return nil
}

// AuthorAddresses returns the collection-level author address set.
func (d *Document) AuthorAddresses() map[string]bool {
	out := map[string]bool{}
	author, _ := d.root["author"].(map[string]any)
	addrs, _ := author["addresses"].([]any)
	for _, a := range addrs {
		if s, ok := a.(string); ok && s != "" {
			out[s] = true
		}
	}
	return out
}

// Puzzles returns every puzzle entry: the elements of a "puzzles" array, or
// the single "puzzle" object for one-entry collections.
func (d *Document) Puzzles() []*Puzzle {
	var out []*Puzzle
	if arr, ok := d.root["puzzles"].([]any); ok {
		for _, item := range arr {
			if m, ok := item.(map[string]any); ok {
				out = append(out, &Puzzle{node: m})
			}
		}
		return out
	}
	if m, ok := d.root["puzzle"].(map[string]any); ok {
		out = append(out, &Puzzle{node: m})
	}
	return out
}

// Puzzle wraps one puzzle entry of a collection document.
type Puzzle struct {
	node map[string]any
}

// Address returns the puzzle's on-chain address.
func (p *Puzzle) Address() string {
	addr, _ := p.node["address"].(map[string]any)
	v, _ := addr["value"].(string)
	return v
}

// Chain returns the puzzle's chain id, defaulting to bitcoin.
func (p *Puzzle) Chain() string {
	if c, ok := p.node["chain"].(string); ok && c != "" {
		return c
	}
	return "bitcoin"
}

// Name returns a display name: the name field, the key size for numbered
// collections, or "unknown".
func (p *Puzzle) Name() string {
	if n, ok := p.node["name"].(string); ok && n != "" {
		return n
	}
	if bits := p.KeyBits(); bits > 0 {
		return strconv.FormatInt(bits, 10)
	}
	return "unknown"
}

// KeyBits returns key.bits for numbered collections, 0 when absent.
func (p *Puzzle) KeyBits() int64 {
	key, _ := p.node["key"].(map[string]any)
	if bits, ok := key["bits"].(float64); ok {
		return int64(bits)
	}
	return 0
}

// Status returns the puzzle's known terminal status.
func (p *Puzzle) Status() events.Status {
	s, _ := p.node["status"].(string)
	return events.Status(s)
}

// Events returns the persisted event history under the transactions key.
// Entries without a txid are dropped.
func (p *Puzzle) Events() []events.Event {
	var out []events.Event
	arr, _ := p.node["transactions"].([]any)
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		txid, _ := m["txid"].(string)
		if txid == "" {
			continue
		}
		typ, _ := m["type"].(string)
		ev := events.Event{Type: events.Type(typ), TxID: txid}
		if date, ok := m["date"].(string); ok {
			ev.Date = date
		}
		if amount, ok := m["amount"].(float64); ok {
			ev.Amount = &amount
		}
		out = append(out, ev)
	}
	return out
}

// SetEvents replaces the puzzle's transactions key with the given sequence.
func (p *Puzzle) SetEvents(evs []events.Event) {
	arr := make([]any, 0, len(evs))
	for _, ev := range evs {
		m := map[string]any{
			"type": string(ev.Type),
			"txid": ev.TxID,
		}
		if ev.Date != "" {
			m["date"] = ev.Date
		}
		if ev.Amount != nil {
			m["amount"] = *ev.Amount
		}
		arr = append(arr, m)
	}
	p.node["transactions"] = arr
}
