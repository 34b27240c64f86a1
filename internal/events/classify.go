package events

import (
	"math/big"
	"strings"
	"time"

	"github.com/mwehr/fundtrace/internal/explorer"
)

// DateFormat is the chain-local timestamp layout persisted on events.
const DateFormat = "2006-01-02 15:04:05"

// Params configures one classification pass for a single puzzle address.
type Params struct {
	// Address is the puzzle address whose story is being reconstructed.
	Address string
	// Authors is the set of addresses known to belong to the puzzle author.
	Authors map[string]bool
	// Status decides claim vs sweep for the terminal outflow.
	Status Status
	// DustThreshold (smallest units) marks spends at or below it as pubkey
	// reveals instead of claims. Zero disables the heuristic.
	//
	// This is an approximation, not a protocol guarantee: a genuine
	// low-value partial claim below the threshold would be labeled a reveal.
	DustThreshold int64
	// UnitDivisor converts smallest units to display units (1e8, 1e18).
	UnitDivisor float64
	// FoldCase lowercases addresses before comparison. Account chains have
	// no canonical case on the wire; UTXO addresses are case-sensitive.
	FoldCase bool
}

// Classify reduces a time-ordered transaction history to the canonical event
// sequence in a single forward pass.
//
// Per transaction, the rules fire in fixed order:
//  1. author-sent inflow -> funding (first) or increase (later)
//  2. outflow with author outputs -> decrease (refunds are never claims)
//  3. outflow at or below the dust threshold -> pubkey_reveal
//  4. any other outflow -> claim (or sweep when status is swept), after
//     which scanning stops: nothing can change the outcome of a spent
//     address.
//
// Rule 1 is independent of rules 2-4, which are mutually exclusive per
// transaction. Inputs and outputs without a resolvable address contribute
// zero to every aggregate.
func Classify(p Params, txs []explorer.RawTransaction) []Event {
	address := p.fold(p.Address)
	authors := make(map[string]bool, len(p.Authors))
	for a := range p.Authors {
		authors[p.fold(a)] = true
	}

	var out []Event
	hasFunding := false

	for i := range txs {
		tx := &txs[i]

		amountIn := new(big.Int)
		amountOut := new(big.Int)
		amountToAuthor := new(big.Int)
		authorSender := false
		puzzleSender := false

		for _, in := range tx.Inputs {
			if in.Address == "" || in.Value == nil {
				continue
			}
			addr := p.fold(in.Address)
			if addr == address {
				puzzleSender = true
				amountOut.Add(amountOut, in.Value)
			}
			if authors[addr] {
				authorSender = true
			}
		}
		for _, o := range tx.Outputs {
			if o.Address == "" || o.Value == nil {
				continue
			}
			addr := p.fold(o.Address)
			if addr == address {
				amountIn.Add(amountIn, o.Value)
			}
			if authors[addr] {
				amountToAuthor.Add(amountToAuthor, o.Value)
			}
		}

		date := formatTimestamp(tx.Timestamp)

		if authorSender && amountIn.Sign() > 0 {
			typ := TypeIncrease
			if !hasFunding {
				typ = TypeFunding
			}
			out = append(out, Event{Type: typ, TxID: tx.ID, Date: date, Amount: p.display(amountIn)})
			hasFunding = true
		}

		switch {
		case puzzleSender && amountToAuthor.Sign() > 0:
			out = append(out, Event{Type: TypeDecrease, TxID: tx.ID, Date: date, Amount: p.display(amountToAuthor)})
		case puzzleSender && amountOut.Sign() > 0 && p.isDust(amountOut):
			out = append(out, Event{Type: TypePubkeyReveal, TxID: tx.ID, Date: date, Amount: p.display(amountOut)})
		case puzzleSender && amountOut.Sign() > 0:
			typ := TypeClaim
			if p.Status == StatusSwept {
				typ = TypeSweep
			}
			out = append(out, Event{Type: typ, TxID: tx.ID, Date: date, Amount: p.display(amountOut)})
			return out
		}
	}

	return out
}

func (p Params) fold(addr string) string {
	if p.FoldCase {
		return strings.ToLower(addr)
	}
	return addr
}

func (p Params) isDust(amount *big.Int) bool {
	return p.DustThreshold > 0 && amount.Cmp(big.NewInt(p.DustThreshold)) <= 0
}

func (p Params) display(amount *big.Int) *float64 {
	div := p.UnitDivisor
	if div <= 0 {
		div = 1
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), big.NewFloat(div)).Float64()
	return &f
}

func formatTimestamp(ts *int64) string {
	var v int64
	if ts != nil {
		v = *ts
	}
	return time.Unix(v, 0).UTC().Format(DateFormat)
}
