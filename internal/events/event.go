// Package events holds the canonical fund-flow event model: classification
// of raw transaction histories and merging of event sequences.
package events

import "strings"

// Type enumerates the canonical fund-flow events of a puzzle address.
type Type string

const (
	TypeFunding      Type = "funding"
	TypeIncrease     Type = "increase"
	TypeDecrease     Type = "decrease"
	TypePubkeyReveal Type = "pubkey_reveal"
	TypeClaim        Type = "claim"
	TypeSweep        Type = "sweep"
)

// Status is the externally known terminal state of a puzzle, used to decide
// between claim and sweep for the final outflow.
type Status string

const (
	StatusUnsolved Status = "unsolved"
	StatusSolved   Status = "solved"
	StatusClaimed  Status = "claimed"
	StatusSwept    Status = "swept"
)

// Event is one classified fund-flow event. Amount is in display units
// (coins, not satoshis); Date is the chain-local formatted timestamp.
type Event struct {
	Type   Type     `json:"type"`
	TxID   string   `json:"txid"`
	Date   string   `json:"date,omitempty"`
	Amount *float64 `json:"amount,omitempty"`
}

// Priority orders event types within a shared date: funding-like events sort
// before terminal ones even when clock skew makes dates equal.
func (t Type) Priority() int {
	switch t {
	case TypeFunding:
		return 0
	case TypeIncrease:
		return 1
	case TypeDecrease:
		return 2
	case TypePubkeyReveal:
		return 3
	case TypeClaim, TypeSweep:
		return 4
	default:
		return 5
	}
}

// Terminal reports whether the type ends an address's story.
func (t Type) Terminal() bool {
	return t == TypeClaim || t == TypeSweep
}

// NormalizeTxID lowercases a transaction id and strips a 0x prefix so UTXO
// and account ids deduplicate consistently.
func NormalizeTxID(txid string) string {
	return strings.TrimPrefix(strings.ToLower(txid), "0x")
}
