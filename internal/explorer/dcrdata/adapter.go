// Package dcrdata fetches Decred address histories from a dcrdata instance.
package dcrdata

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/mwehr/fundtrace/internal/explorer"
)

const pageSize = 50

// atomsPerCoin converts the DCR floats dcrdata returns into atoms.
const atomsPerCoin = 1e8

type apiTx struct {
	Txid string    `json:"txid"`
	Time *int64    `json:"time"`
	Vin  []apiVin  `json:"vin"`
	Vout []apiVout `json:"vout"`
}

type apiVin struct {
	Txid     string  `json:"txid"`
	Vout     uint32  `json:"vout"`
	AmountIn float64 `json:"amountin"`
}

type apiVout struct {
	Value        float64      `json:"value"`
	N            uint32       `json:"n"`
	ScriptPubKey scriptPubKey `json:"scriptPubKey"`
}

type scriptPubKey struct {
	Addresses []string `json:"addresses"`
}

// Client pages through the dcrdata raw-transactions endpoint.
type Client struct {
	baseURL string
	fetcher *explorer.Fetcher
}

// New builds a dcrdata client for a base URL like https://dcrdata.decred.org/api.
func New(baseURL string, fetcher *explorer.Fetcher) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}
}

// FetchTransactions pages with count/skip until a short page, resolves input
// attribution against the fetched window, and returns the time-sorted result.
//
// dcrdata's raw view does not carry prevout addresses, so an input is
// attributed by looking up its (txid, vout) among the other transactions of
// the same address history. Inputs funded outside that window stay
// unattributable.
func (c *Client) FetchTransactions(ctx context.Context, address string) ([]explorer.RawTransaction, error) {
	var raw []apiTx
	skip := 0

	for {
		url := fmt.Sprintf("%s/address/%s/count/%d/skip/%d/raw", c.baseURL, address, pageSize, skip)

		var page []apiTx
		if err := c.fetcher.GetJSON(ctx, url, &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		raw = append(raw, page...)
		if len(page) < pageSize {
			break
		}
		skip += len(page)
	}

	byTxid := make(map[string]apiTx, len(raw))
	for _, tx := range raw {
		byTxid[tx.Txid] = tx
	}

	all := make([]explorer.RawTransaction, 0, len(raw))
	for _, tx := range raw {
		all = append(all, normalize(tx, byTxid))
	}

	explorer.SortByTime(all)
	return all, nil
}

// Ping checks explorer reachability via the best-block endpoint.
func (c *Client) Ping(ctx context.Context) error {
	var best struct {
		Height int64 `json:"height"`
	}
	return c.fetcher.GetJSON(ctx, c.baseURL+"/block/best?txtotals=false", &best)
}

func normalize(tx apiTx, byTxid map[string]apiTx) explorer.RawTransaction {
	out := explorer.RawTransaction{
		ID:        tx.Txid,
		Timestamp: tx.Time,
	}
	for _, in := range tx.Vin {
		input := explorer.TxInput{Value: toAtoms(in.AmountIn)}
		if prev, ok := byTxid[in.Txid]; ok && int(in.Vout) < len(prev.Vout) {
			if addrs := prev.Vout[in.Vout].ScriptPubKey.Addresses; len(addrs) > 0 {
				input.Address = addrs[0]
			}
		}
		out.Inputs = append(out.Inputs, input)
	}
	for _, o := range tx.Vout {
		output := explorer.TxOutput{Value: toAtoms(o.Value)}
		if len(o.ScriptPubKey.Addresses) > 0 {
			output.Address = o.ScriptPubKey.Addresses[0]
		}
		out.Outputs = append(out.Outputs, output)
	}
	return out
}

func toAtoms(coins float64) *big.Int {
	return big.NewInt(int64(math.Round(coins * atomsPerCoin)))
}
