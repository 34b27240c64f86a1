package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mwehr/fundtrace/internal/cache"
	"github.com/mwehr/fundtrace/internal/collection"
	"github.com/mwehr/fundtrace/internal/config"
	"github.com/mwehr/fundtrace/internal/events"
	"github.com/mwehr/fundtrace/internal/explorer"
	"github.com/mwehr/fundtrace/internal/sink"
)

type fakeClient struct {
	mu    sync.Mutex
	calls []string
	txs   map[string][]explorer.RawTransaction
	errs  map[string]error
}

func (f *fakeClient) FetchTransactions(_ context.Context, address string) ([]explorer.RawTransaction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, address)
	f.mu.Unlock()
	if err := f.errs[address]; err != nil {
		return nil, err
	}
	return f.txs[address], nil
}

type fakeSink struct {
	mu       sync.Mutex
	payloads []sink.EventPayload
}

func (f *fakeSink) Send(_ context.Context, p sink.EventPayload) error {
	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	f.mu.Unlock()
	return nil
}

func ts(v int64) *int64 { return &v }

// puzzleHistory is a funded-then-claimed UTXO sequence for "1Puzzle".
func puzzleHistory() []explorer.RawTransaction {
	return []explorer.RawTransaction{
		{
			ID:        "fund",
			Timestamp: ts(1_600_000_000),
			Inputs:    []explorer.TxInput{{Address: "1Author", Value: big.NewInt(110_000)}},
			Outputs:   []explorer.TxOutput{{Address: "1Puzzle", Value: big.NewInt(100_000)}},
		},
		{
			ID:        "claim",
			Timestamp: ts(1_600_100_000),
			Inputs:    []explorer.TxInput{{Address: "1Puzzle", Value: big.NewInt(100_000)}},
			Outputs:   []explorer.TxOutput{{Address: "1Solver", Value: big.NewInt(99_000)}},
		},
	}
}

func writeCollection(t *testing.T, dir string, puzzles string) string {
	t.Helper()
	path := filepath.Join(dir, "puzzles.jsonc")
	doc := fmt.Sprintf(`{
	"author": {"addresses": ["1Author"]},
	"puzzles": [%s]
}`, puzzles)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const puzzleOne = `{"name": "p1", "chain": "bitcoin", "status": "unsolved",
	"address": {"value": "1Puzzle"}, "transactions": []}`

func newTestRunner(t *testing.T, client explorer.Client, notifier sink.Sender) (*Runner, *cache.Store, string) {
	t.Helper()
	dir := t.TempDir()
	cacheStore := cache.New(filepath.Join(dir, "cache"))
	cfg := &config.Config{Global: config.GlobalConfig{DataDir: dir, Workers: 2}}
	clients := map[string]explorer.Client{"bitcoin": client}
	r := New(cfg, clients, cacheStore, nil, notifier, nil, nil)
	return r, cacheStore, dir
}

func TestSyncCollectionFetchesClassifiesAndSaves(t *testing.T) {
	client := &fakeClient{txs: map[string][]explorer.RawTransaction{"1Puzzle": puzzleHistory()}}
	notifier := &fakeSink{}
	r, cacheStore, dir := newTestRunner(t, client, notifier)
	path := writeCollection(t, dir, puzzleOne)
	col := config.Collection{ID: "test", File: path}

	report, err := r.SyncCollection(context.Background(), col, Options{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Fetched != 1 || report.Updated != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !cacheStore.Exists("test", "1Puzzle") {
		t.Fatal("fetch result not cached")
	}

	doc, err := collection.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	evs := doc.Puzzles()[0].Events()
	if len(evs) != 2 || evs[0].Type != events.TypeFunding || evs[1].Type != events.TypeClaim {
		t.Fatalf("unexpected events: %+v", evs)
	}

	if len(notifier.payloads) != 1 || notifier.payloads[0].Type != "claim" {
		t.Fatalf("terminal notification not sent once: %+v", notifier.payloads)
	}

	// A second pass over the same cache must be a no-op.
	report, err = r.SyncCollection(context.Background(), col, Options{})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if report.Fetched != 0 || report.Updated != 0 {
		t.Fatalf("second pass should change nothing: %+v", report)
	}
	if len(client.calls) != 1 {
		t.Fatalf("cached address refetched: %v", client.calls)
	}
	if len(notifier.payloads) != 1 {
		t.Fatalf("terminal notification repeated: %d", len(notifier.payloads))
	}
}

func TestSyncCollectionFetchFailureDoesNotAbort(t *testing.T) {
	client := &fakeClient{
		txs:  map[string][]explorer.RawTransaction{"1Puzzle": puzzleHistory()},
		errs: map[string]error{"1Broken": errors.New("boom")},
	}
	r, _, dir := newTestRunner(t, client, nil)
	path := writeCollection(t, dir, puzzleOne+`,
	{"name": "p2", "chain": "bitcoin", "status": "unsolved",
	 "address": {"value": "1Broken"}, "transactions": []}`)

	report, err := r.SyncCollection(context.Background(), config.Collection{ID: "test", File: path}, Options{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Fetched != 1 || report.Failed != 1 {
		t.Fatalf("failure should be counted, not fatal: %+v", report)
	}
	if report.Updated != 1 {
		t.Fatalf("healthy puzzle should still be processed: %+v", report)
	}
}

func TestSyncCollectionForceRefetches(t *testing.T) {
	client := &fakeClient{txs: map[string][]explorer.RawTransaction{"1Puzzle": puzzleHistory()}}
	r, cacheStore, dir := newTestRunner(t, client, nil)
	path := writeCollection(t, dir, puzzleOne)
	col := config.Collection{ID: "test", File: path}

	if err := cacheStore.Save("test", "1Puzzle", nil); err != nil {
		t.Fatal(err)
	}

	if _, err := r.SyncCollection(context.Background(), col, Options{}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(client.calls) != 0 {
		t.Fatalf("cached address should not be fetched: %v", client.calls)
	}

	if _, err := r.SyncCollection(context.Background(), col, Options{Force: true}); err != nil {
		t.Fatalf("forced sync: %v", err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("force should refetch: %v", client.calls)
	}
}

func TestSyncCollectionDryRunWritesNothing(t *testing.T) {
	client := &fakeClient{}
	notifier := &fakeSink{}
	r, cacheStore, dir := newTestRunner(t, client, notifier)
	path := writeCollection(t, dir, puzzleOne)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := cacheStore.Save("test", "1Puzzle", puzzleHistory()); err != nil {
		t.Fatal(err)
	}

	report, err := r.SyncCollection(context.Background(), config.Collection{ID: "test", File: path}, Options{DryRun: true, Force: true})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Fetched != 0 {
		t.Fatalf("dry run must not fetch: %+v", report)
	}
	if report.Updated != 1 {
		t.Fatalf("dry run should still report pending updates: %+v", report)
	}
	if len(client.calls) != 0 {
		t.Fatalf("dry run hit the explorer: %v", client.calls)
	}
	if len(notifier.payloads) != 0 {
		t.Fatalf("dry run sent notifications: %+v", notifier.payloads)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("dry run modified the collection document")
	}
}

func TestSyncCollectionFiltersByKeyBits(t *testing.T) {
	client := &fakeClient{txs: map[string][]explorer.RawTransaction{"1Puzzle": puzzleHistory()}}
	r, _, dir := newTestRunner(t, client, nil)
	path := writeCollection(t, dir, `{"chain": "bitcoin", "status": "unsolved",
	"address": {"value": "1Puzzle"}, "key": {"bits": 66}, "transactions": []}`)
	col := config.Collection{ID: "test", File: path}

	report, err := r.SyncCollection(context.Background(), col, Options{PuzzleBits: 70})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Fetched != 0 || len(client.calls) != 0 {
		t.Fatalf("non-matching key size should be skipped: %+v %v", report, client.calls)
	}

	report, err = r.SyncCollection(context.Background(), col, Options{PuzzleBits: 66})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Fetched != 1 {
		t.Fatalf("matching key size should be fetched: %+v", report)
	}
}

func TestSyncCollectionSkipsUnknownChains(t *testing.T) {
	client := &fakeClient{}
	r, _, dir := newTestRunner(t, client, nil)
	path := writeCollection(t, dir, `{"name": "alien", "chain": "dogecoin",
	"status": "unsolved", "address": {"value": "DAddr"}, "transactions": []}`)

	report, err := r.SyncCollection(context.Background(), config.Collection{ID: "test", File: path}, Options{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Fetched != 0 || report.Failed != 0 || len(client.calls) != 0 {
		t.Fatalf("unsupported chain should be skipped quietly: %+v %v", report, client.calls)
	}
}
