// Package engine drives the per-collection pipeline: fetch into cache,
// classify cached histories, merge into the collection document.
package engine

import (
	"context"
	"log/slog"
	"sync"

	ethparams "github.com/ethereum/go-ethereum/params"

	"github.com/mwehr/fundtrace/internal/cache"
	"github.com/mwehr/fundtrace/internal/collection"
	"github.com/mwehr/fundtrace/internal/config"
	"github.com/mwehr/fundtrace/internal/events"
	"github.com/mwehr/fundtrace/internal/explorer"
	"github.com/mwehr/fundtrace/internal/metrics"
	"github.com/mwehr/fundtrace/internal/sink"
	"github.com/mwehr/fundtrace/internal/storage"
)

// btcDustThreshold is the satoshi cutoff under which a spend is treated as a
// pubkey reveal rather than a claim.
const btcDustThreshold = 10_000

// Runner owns no domain logic itself: it wires adapters, cache, classifier,
// and merge per puzzle address and keeps score.
type Runner struct {
	cfg      *config.Config
	clients  map[string]explorer.Client
	cache    *cache.Store
	ledger   *storage.Store
	notifier sink.Sender
	mtr      *metrics.Metrics
	log      *slog.Logger
}

// Options select what one sync pass does.
type Options struct {
	Force       bool  // refetch addresses that are already cached
	FetchOnly   bool  // skip the classify/merge phase
	ProcessOnly bool  // skip the fetch phase
	DryRun      bool  // compute everything, write nothing
	PuzzleBits  int64 // filter numbered collections by key size, 0 = all
	Workers     int   // fetch concurrency, min 1
}

// Report aggregates one collection pass.
type Report struct {
	Collection string
	Fetched    int
	Updated    int
	Failed     int
}

// New builds a runner. ledger, notifier, and mtr may be nil.
func New(cfg *config.Config, clients map[string]explorer.Client, cacheStore *cache.Store, ledger *storage.Store, notifier sink.Sender, mtr *metrics.Metrics, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		cfg:      cfg,
		clients:  clients,
		cache:    cacheStore,
		ledger:   ledger,
		notifier: notifier,
		mtr:      mtr,
		log:      log,
	}
}

// SyncCollection runs the fetch and process phases for one collection
// document. Per-address failures are logged and counted, never fatal; the
// returned error covers only the document itself.
func (r *Runner) SyncCollection(ctx context.Context, col config.Collection, opts Options) (Report, error) {
	report := Report{Collection: col.ID}

	doc, err := collection.Load(r.cfg.CollectionPath(col))
	if err != nil {
		return report, err
	}

	authors := doc.AuthorAddresses()
	if len(authors) == 0 {
		r.log.Warn("no author addresses in collection, skipping", "collection", col.ID)
		return report, nil
	}

	puzzles := r.eligible(doc, opts)

	if !opts.ProcessOnly {
		fetched, failed := r.fetchPhase(ctx, col.ID, puzzles, opts)
		report.Fetched = fetched
		report.Failed = failed
	}

	if !opts.FetchOnly {
		updated := r.processPhase(ctx, col.ID, puzzles, authors, opts)
		report.Updated = updated
		if updated > 0 && !opts.DryRun {
			if err := doc.Save(); err != nil {
				return report, err
			}
		}
	}

	return report, nil
}

func (r *Runner) eligible(doc *collection.Document, opts Options) []*collection.Puzzle {
	var out []*collection.Puzzle
	for _, p := range doc.Puzzles() {
		if opts.PuzzleBits > 0 && p.KeyBits() != opts.PuzzleBits {
			continue
		}
		if p.Address() == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// fetchPhase pulls uncached (or forced) addresses through a bounded worker
// pool. Each worker still serializes its requests through the adapters'
// shared rate limiter.
func (r *Runner) fetchPhase(ctx context.Context, collectionID string, puzzles []*collection.Puzzle, opts Options) (fetched, failed int) {
	type target struct {
		name    string
		chain   string
		address string
	}

	var targets []target
	for _, p := range puzzles {
		addr := p.Address()
		if r.cache.Exists(collectionID, addr) && !opts.Force {
			r.log.Debug("cached, skipping", "collection", collectionID, "puzzle", p.Name(), "address", addr)
			continue
		}
		chain := p.Chain()
		if _, ok := r.clients[chain]; !ok {
			r.log.Warn("unsupported chain, skipping", "collection", collectionID, "puzzle", p.Name(), "chain", chain)
			continue
		}
		targets = append(targets, target{name: p.Name(), chain: chain, address: addr})
	}

	if opts.DryRun {
		r.log.Info("dry run: skipping fetch", "collection", collectionID, "pending", len(targets))
		return 0, 0
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = r.cfg.Global.Workers
	}
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan target)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				r.log.Info("fetching", "collection", collectionID, "puzzle", t.name, "address", t.address)
				txs, err := r.clients[t.chain].FetchTransactions(ctx, t.address)
				if err != nil {
					r.log.Warn("fetch failed", "collection", collectionID, "puzzle", t.name, "error", err)
					r.mtr.FetchError()
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				if err := r.cache.Save(collectionID, t.address, txs); err != nil {
					r.log.Warn("cache write failed", "collection", collectionID, "puzzle", t.name, "error", err)
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				if r.ledger != nil {
					if err := r.ledger.RecordFetch(ctx, collectionID, t.address, len(txs)); err != nil {
						r.log.Warn("ledger write failed", "collection", collectionID, "puzzle", t.name, "error", err)
					}
				}
				r.mtr.AddressFetched()
				mu.Lock()
				fetched++
				mu.Unlock()
			}
		}()
	}

	for _, t := range targets {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return fetched, failed
		case jobs <- t:
		}
	}
	close(jobs)
	wg.Wait()
	return fetched, failed
}

// processPhase classifies each cached history and merges it into the
// puzzle's persisted sequence, touching the document only on change.
func (r *Runner) processPhase(ctx context.Context, collectionID string, puzzles []*collection.Puzzle, authors map[string]bool, opts Options) (updated int) {
	for _, p := range puzzles {
		addr := p.Address()
		txs := r.cache.Load(collectionID, addr)
		if txs == nil {
			continue
		}

		params, ok := classifyParams(p.Chain(), addr, authors, p.Status())
		if !ok {
			continue
		}

		existing := p.Events()
		fresh := events.Classify(params, txs)
		merged := events.Merge(existing, fresh)

		if len(merged) == 0 || events.Equal(existing, merged) {
			continue
		}

		p.SetEvents(merged)
		updated++
		r.mtr.PuzzleUpdated()
		r.log.Info("history updated", "collection", collectionID, "puzzle", p.Name(), "events", len(merged))

		if !opts.DryRun {
			r.notifyTerminal(ctx, collectionID, p, existing, merged)
		}
	}
	return updated
}

// notifyTerminal fires the sink once when a merge introduces a terminal
// event the persisted history did not have.
func (r *Runner) notifyTerminal(ctx context.Context, collectionID string, p *collection.Puzzle, existing, merged []events.Event) {
	if r.notifier == nil {
		return
	}
	last := merged[len(merged)-1]
	if !last.Type.Terminal() {
		return
	}
	for _, ev := range existing {
		if ev.Type.Terminal() {
			return
		}
	}

	payload := sink.EventPayload{
		Collection: collectionID,
		Puzzle:     p.Name(),
		Chain:      p.Chain(),
		Address:    p.Address(),
		Type:       string(last.Type),
		TxID:       last.TxID,
		Date:       last.Date,
	}
	if last.Amount != nil {
		payload.Amount = *last.Amount
	}
	if err := r.notifier.Send(ctx, payload); err != nil {
		r.log.Warn("notification failed", "collection", collectionID, "puzzle", p.Name(), "error", err)
		return
	}
	r.mtr.NotificationSent()
}

// classifyParams maps a chain id onto the classifier's per-family knobs.
func classifyParams(chain, address string, authors map[string]bool, status events.Status) (events.Params, bool) {
	p := events.Params{
		Address: address,
		Authors: authors,
		Status:  status,
	}
	switch chain {
	case "bitcoin", "litecoin":
		p.UnitDivisor = 1e8
		p.DustThreshold = btcDustThreshold
	case "decred":
		p.UnitDivisor = 1e8
	case "ethereum":
		p.UnitDivisor = float64(ethparams.Ether)
		p.FoldCase = true
	default:
		return events.Params{}, false
	}
	return p, true
}
