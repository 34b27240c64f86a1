// Package esplora fetches address histories from mempool.space-compatible
// explorer APIs (Bitcoin, Litecoin).
package esplora

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/mwehr/fundtrace/internal/explorer"
)

type apiTx struct {
	Txid   string    `json:"txid"`
	Status apiStatus `json:"status"`
	Vin    []apiVin  `json:"vin"`
	Vout   []apiVout `json:"vout"`
}

type apiStatus struct {
	BlockTime *int64 `json:"block_time"`
}

type apiVin struct {
	Prevout *apiVout `json:"prevout"`
}

type apiVout struct {
	ScriptpubkeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

// Client pages through an esplora address endpoint.
type Client struct {
	baseURL string
	fetcher *explorer.Fetcher
}

// New builds an esplora client for a base URL like https://mempool.space/api.
func New(baseURL string, fetcher *explorer.Fetcher) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}
}

// FetchTransactions walks the confirmed-chain pages (cursor = last seen txid)
// until the API returns an empty page, then normalizes and time-sorts.
func (c *Client) FetchTransactions(ctx context.Context, address string) ([]explorer.RawTransaction, error) {
	var all []explorer.RawTransaction
	lastTxid := ""

	for {
		url := fmt.Sprintf("%s/address/%s/txs", c.baseURL, address)
		if lastTxid != "" {
			url = fmt.Sprintf("%s/address/%s/txs/chain/%s", c.baseURL, address, lastTxid)
		}

		var page []apiTx
		if err := c.fetcher.GetJSON(ctx, url, &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		lastTxid = page[len(page)-1].Txid
		for _, tx := range page {
			all = append(all, normalize(tx))
		}
	}

	explorer.SortByTime(all)
	return all, nil
}

// Ping checks explorer reachability via the tip-height endpoint.
func (c *Client) Ping(ctx context.Context) error {
	var height int64
	return c.fetcher.GetJSON(ctx, c.baseURL+"/blocks/tip/height", &height)
}

func normalize(tx apiTx) explorer.RawTransaction {
	out := explorer.RawTransaction{
		ID:        tx.Txid,
		Timestamp: tx.Status.BlockTime,
	}
	for _, in := range tx.Vin {
		if in.Prevout == nil {
			// Coinbase inputs carry no prevout; keep them unattributable.
			out.Inputs = append(out.Inputs, explorer.TxInput{Value: big.NewInt(0)})
			continue
		}
		out.Inputs = append(out.Inputs, explorer.TxInput{
			Address: in.Prevout.ScriptpubkeyAddress,
			Value:   big.NewInt(in.Prevout.Value),
		})
	}
	for _, o := range tx.Vout {
		out.Outputs = append(out.Outputs, explorer.TxOutput{
			Address: o.ScriptpubkeyAddress,
			Value:   big.NewInt(o.Value),
		})
	}
	return out
}
