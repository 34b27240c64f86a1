package esplora

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mwehr/fundtrace/internal/explorer"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	fetcher := explorer.NewFetcher(srv.Client(), explorer.NewLimiter(0), 0, nil)
	return New(srv.URL, fetcher)
}

func page(txs ...map[string]any) string {
	b, _ := json.Marshal(txs)
	return string(b)
}

func tx(txid string, blockTime int64, prevAddr string, prevValue int64, outAddr string, outValue int64) map[string]any {
	return map[string]any{
		"txid":   txid,
		"status": map[string]any{"block_time": blockTime},
		"vin": []map[string]any{
			{"prevout": map[string]any{"scriptpubkey_address": prevAddr, "value": prevValue}},
		},
		"vout": []map[string]any{
			{"scriptpubkey_address": outAddr, "value": outValue},
		},
	}
}

func TestFetchTransactionsPaginatesByLastTxid(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/address/addr1/txs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page(
			tx("tx_b", 200, "someone", 10, "addr1", 10),
			tx("tx_a", 100, "funder", 20, "addr1", 20),
		))
	})
	mux.HandleFunc("/address/addr1/txs/chain/tx_a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page(tx("tx_c", 300, "addr1", 5, "other", 5)))
	})
	mux.HandleFunc("/address/addr1/txs/chain/tx_c", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	})

	c := newTestClient(t, mux)
	got, err := c.FetchTransactions(context.Background(), "addr1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 transactions across pages, got %d", len(got))
	}
	// Sorted ascending by block time regardless of page order.
	if got[0].ID != "tx_a" || got[1].ID != "tx_b" || got[2].ID != "tx_c" {
		t.Fatalf("unexpected order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestFetchTransactionsNormalizes(t *testing.T) {
	mux := http.NewServeMux()
	calls := 0
	mux.HandleFunc("/address/addr1/txs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page(tx("tx_a", 100, "funder", 1500, "addr1", 1400)))
	})
	mux.HandleFunc("/address/addr1/txs/chain/tx_a", func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, "[]")
	})

	c := newTestClient(t, mux)
	got, err := c.FetchTransactions(context.Background(), "addr1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(got))
	}

	raw := got[0]
	if raw.Timestamp == nil || *raw.Timestamp != 100 {
		t.Fatalf("timestamp not normalized: %+v", raw)
	}
	if len(raw.Inputs) != 1 || raw.Inputs[0].Address != "funder" || raw.Inputs[0].Value.Int64() != 1500 {
		t.Fatalf("input not normalized: %+v", raw.Inputs)
	}
	if len(raw.Outputs) != 1 || raw.Outputs[0].Address != "addr1" || raw.Outputs[0].Value.Int64() != 1400 {
		t.Fatalf("output not normalized: %+v", raw.Outputs)
	}
	if calls != 1 {
		t.Fatalf("pagination should stop on the empty page, chained calls=%d", calls)
	}
}

func TestFetchTransactionsCoinbaseInputUnattributed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/address/addr1/txs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"txid":"cb","status":{"block_time":50},"vin":[{"prevout":null}],"vout":[{"scriptpubkey_address":"addr1","value":5000}]}]`)
	})
	mux.HandleFunc("/address/addr1/txs/chain/cb", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	})

	c := newTestClient(t, mux)
	got, err := c.FetchTransactions(context.Background(), "addr1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got[0].Inputs[0].Address != "" {
		t.Fatalf("coinbase input should stay unattributable, got %q", got[0].Inputs[0].Address)
	}
}

func TestFetchTransactionsSurfacesAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad address", http.StatusBadRequest)
	}))

	_, err := c.FetchTransactions(context.Background(), "nonsense")
	var apiErr *explorer.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected *APIError 400, got %v", err)
	}
}
