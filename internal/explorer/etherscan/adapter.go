// Package etherscan fetches account histories from the Etherscan v2 API.
package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mwehr/fundtrace/internal/explorer"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type apiTx struct {
	Hash      string `json:"hash"`
	TimeStamp string `json:"timeStamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	IsError   string `json:"isError"`
}

// Client performs the single bulk txlist call for an account address.
type Client struct {
	baseURL string
	apiKey  string
	chainID uint64
	fetcher *explorer.Fetcher
}

// New builds an etherscan client. chainID selects the network on the v2
// multichain endpoint (1 = mainnet).
func New(baseURL, apiKey string, chainID uint64, fetcher *explorer.Fetcher) *Client {
	if chainID == 0 {
		chainID = 1
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		chainID: chainID,
		fetcher: fetcher,
	}
}

// FetchTransactions pulls the full txlist in one call (startblock=0) and
// normalizes each row into a single-input single-output transaction relative
// to the queried address. Failed transactions and zero-value transfers are
// dropped; addresses are lowercased at this boundary so classification can
// compare them directly.
func (c *Client) FetchTransactions(ctx context.Context, address string) ([]explorer.RawTransaction, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid account address %q", address)
	}

	env, err := c.call(ctx, map[string]string{
		"module":     "account",
		"action":     "txlist",
		"address":    address,
		"startblock": "0",
		"endblock":   "99999999",
		"sort":       "asc",
	})
	if err != nil {
		return nil, err
	}

	if env.Status != "1" {
		// "No transactions found" comes back as status 0 with an empty array.
		var empty []apiTx
		if json.Unmarshal(env.Result, &empty) == nil && len(empty) == 0 {
			return nil, nil
		}
		var msg string
		if json.Unmarshal(env.Result, &msg) == nil && msg != "" {
			return nil, fmt.Errorf("etherscan: %s", msg)
		}
		return nil, fmt.Errorf("etherscan: %s", env.Message)
	}

	var rows []apiTx
	if err := json.Unmarshal(env.Result, &rows); err != nil {
		return nil, fmt.Errorf("decode txlist: %w", err)
	}

	var all []explorer.RawTransaction
	for _, row := range rows {
		tx, ok := normalize(row)
		if !ok {
			continue
		}
		all = append(all, tx)
	}

	explorer.SortByTime(all)
	return all, nil
}

// Ping checks API reachability (and key validity) via the proxy block number.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, map[string]string{
		"module": "proxy",
		"action": "eth_blockNumber",
	})
	return err
}

func (c *Client) call(ctx context.Context, params map[string]string) (*envelope, error) {
	q := url.Values{}
	q.Set("chainid", strconv.FormatUint(c.chainID, 10))
	q.Set("apikey", c.apiKey)
	for k, v := range params {
		q.Set(k, v)
	}

	var env envelope
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"?"+q.Encode(), &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func normalize(row apiTx) (explorer.RawTransaction, bool) {
	if row.IsError == "1" {
		return explorer.RawTransaction{}, false
	}

	value, ok := new(big.Int).SetString(row.Value, 10)
	if !ok || value.Sign() == 0 {
		return explorer.RawTransaction{}, false
	}

	tx := explorer.RawTransaction{
		ID: row.Hash,
		Inputs: []explorer.TxInput{
			{Address: strings.ToLower(row.From), Value: value},
		},
		Outputs: []explorer.TxOutput{
			{Address: strings.ToLower(row.To), Value: value},
		},
	}
	if ts, err := strconv.ParseInt(row.TimeStamp, 10, 64); err == nil {
		tx.Timestamp = &ts
	}
	return tx, true
}
