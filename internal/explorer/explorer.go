package explorer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
)

// ErrRateLimited signals that the retry budget was exhausted on 429s or
// transport failures; the caller should skip the address this run.
var ErrRateLimited = errors.New("rate limited after retries")

// APIError is a non-retryable HTTP failure: a bad address, a deprecated
// endpoint, or another client-side problem the server told us about.
type APIError struct {
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("explorer api status %d", e.Status)
}

// TxInput is a spend attributed to an address. An empty Address means the
// input could not be attributed and must contribute nothing to
// classification.
type TxInput struct {
	Address string   `json:"address,omitempty"`
	Value   *big.Int `json:"value"`
}

// TxOutput is a payment to an address.
type TxOutput struct {
	Address string   `json:"address,omitempty"`
	Value   *big.Int `json:"value"`
}

// RawTransaction is the chain-agnostic view of one transaction touching the
// queried address. Values are in the chain's smallest unit (satoshi, atom,
// wei); a nil Timestamp means the transaction is unconfirmed.
type RawTransaction struct {
	ID        string     `json:"id"`
	Timestamp *int64     `json:"timestamp,omitempty"`
	Inputs    []TxInput  `json:"inputs"`
	Outputs   []TxOutput `json:"outputs"`
}

// Client fetches the full normalized transaction history of one address.
type Client interface {
	FetchTransactions(ctx context.Context, address string) ([]RawTransaction, error)
}

// Pinger is implemented by adapters that can cheaply probe their explorer.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SortByTime orders transactions ascending by timestamp; unconfirmed
// transactions sort last.
func SortByTime(txs []RawTransaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		ti, tj := txs[i].Timestamp, txs[j].Timestamp
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return *ti < *tj
		}
	})
}
