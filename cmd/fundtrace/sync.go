package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwehr/fundtrace/internal/cache"
	"github.com/mwehr/fundtrace/internal/config"
	"github.com/mwehr/fundtrace/internal/engine"
	"github.com/mwehr/fundtrace/internal/health"
	"github.com/mwehr/fundtrace/internal/logging"
	"github.com/mwehr/fundtrace/internal/metrics"
	"github.com/mwehr/fundtrace/internal/sink"
	"github.com/mwehr/fundtrace/internal/storage"
)

var (
	flagFetchOnly   bool
	flagProcessOnly bool
	flagForce       bool
	flagDryRun      bool
	flagPuzzle      int64
	flagWorkers     int
	flagWatch       time.Duration
	flagHealth      string
	flagMetricsAddr string
)

func init() {
	syncCmd.Flags().BoolVar(&flagFetchOnly, "fetch-only", false, "Fetch into cache, skip classification")
	syncCmd.Flags().BoolVar(&flagProcessOnly, "process-only", false, "Classify cached data, skip fetching")
	syncCmd.Flags().BoolVar(&flagForce, "force", false, "Refetch addresses that are already cached")
	syncCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Compute everything, write nothing")
	syncCmd.Flags().Int64Var(&flagPuzzle, "puzzle", 0, "Only the puzzle with this key size (numbered collections)")
	syncCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Fetch concurrency override")
	syncCmd.Flags().DurationVar(&flagWatch, "watch", 0, "Repeat the batch at this interval")
	syncCmd.Flags().StringVar(&flagHealth, "health", "", "Health check HTTP address (watch mode, e.g. :8080)")
	syncCmd.Flags().StringVar(&flagMetricsAddr, "metrics", "", "Metrics HTTP address (e.g. :9090)")
}

var syncCmd = &cobra.Command{
	Use:   "sync [collection...]",
	Short: "Fetch transaction histories and update collection documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		logLevel := os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			logLevel = "info"
		}
		log := logging.NewWithLevel(logLevel)
		ctx := cmd.Context()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		collections, err := selectCollections(cfg, args)
		if err != nil {
			return err
		}

		clients, pingers, err := buildClients(cfg, log)
		if err != nil {
			return err
		}

		ledger, err := storage.Open(cfg.Global.DBPath)
		if err != nil {
			return fmt.Errorf("open fetch ledger: %w", err)
		}
		defer ledger.Close()

		var notifier sink.Sender
		if n := cfg.Notify; n != nil {
			switch n.Type {
			case "slack":
				notifier, err = sink.NewSlackSender(n.WebhookURL, n.Template)
			case "webhook":
				notifier, err = sink.NewWebhookSender(n.WebhookURL, n.Method, n.Template, nil)
			}
			if err != nil {
				return fmt.Errorf("build notifier: %w", err)
			}
		}

		var mtr *metrics.Metrics
		if flagMetricsAddr != "" {
			mtr = metrics.Init()
			log.Info("metrics enabled", "addr", flagMetricsAddr)
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				srv := &http.Server{Addr: flagMetricsAddr, Handler: mux}
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", "error", err)
				}
			}()
		}

		if flagHealth != "" && flagWatch > 0 {
			checker := health.NewExplorerChecker(pingers)
			healthSrv := health.Serve(flagHealth, health.Checker{
				DBPing:       ledger.Ping,
				ExplorerPing: checker.Ping,
			})
			log.Info("health check enabled", "addr", flagHealth)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = health.Shutdown(shutdownCtx, healthSrv)
			}()
		}

		runner := engine.New(cfg, clients, cache.New(cfg.Global.CacheDir), ledger, notifier, mtr, log)
		opts := engine.Options{
			Force:       flagForce,
			FetchOnly:   flagFetchOnly,
			ProcessOnly: flagProcessOnly,
			DryRun:      flagDryRun,
			PuzzleBits:  flagPuzzle,
			Workers:     flagWorkers,
		}

		for {
			for _, col := range collections {
				report, err := runner.SyncCollection(ctx, col, opts)
				if err != nil {
					// Only an unreadable or unwritable document is fatal.
					return fmt.Errorf("collection %s: %w", col.ID, err)
				}
				log.Info("collection synced",
					"collection", report.Collection,
					"fetched", report.Fetched,
					"updated", report.Updated,
					"failed", report.Failed,
				)
			}
			if flagWatch <= 0 {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(flagWatch):
			}
		}
		return nil
	},
}

func selectCollections(cfg *config.Config, ids []string) ([]config.Collection, error) {
	if len(ids) == 0 {
		return cfg.Collections, nil
	}
	byID := map[string]config.Collection{}
	for _, col := range cfg.Collections {
		byID[col.ID] = col
	}
	var out []config.Collection
	for _, id := range ids {
		col, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown collection: %s", id)
		}
		out = append(out, col)
	}
	return out, nil
}
