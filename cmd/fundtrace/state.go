package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwehr/fundtrace/internal/config"
	"github.com/mwehr/fundtrace/internal/storage"
)

var stateCmd = &cobra.Command{
	Use:   "state [collection...]",
	Short: "Show fetch ledger: last fetch time per address",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		collections, err := selectCollections(cfg, args)
		if err != nil {
			return err
		}

		ledger, err := storage.Open(cfg.Global.DBPath)
		if err != nil {
			return fmt.Errorf("open fetch ledger: %w", err)
		}
		defer ledger.Close()

		for _, col := range collections {
			fetches, err := ledger.ListFetches(cmd.Context(), col.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d fetched address(es)\n", col.ID, len(fetches))
			for _, f := range fetches {
				fmt.Fprintf(out, "  %s  txs=%d  fetched=%s (%s ago)\n",
					f.Address, f.TxCount,
					f.FetchedAt.UTC().Format(time.RFC3339),
					time.Since(f.FetchedAt).Round(time.Second),
				)
			}
		}
		return nil
	},
}
