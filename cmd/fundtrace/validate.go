package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwehr/fundtrace/internal/config"
	"github.com/mwehr/fundtrace/internal/logging"
)

const pingTimeout = 15 * time.Second

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config and ping explorer endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Fprintf(out, "config OK (version %d, %d collections)\n", cfg.Version, len(cfg.Collections))

		_, pingers, err := buildClients(cfg, logging.NewWithLevel("error"))
		if err != nil {
			return err
		}

		chains := make([]string, 0, len(pingers))
		for chain := range pingers {
			chains = append(chains, chain)
		}
		sort.Strings(chains)

		failures := 0
		for _, chain := range chains {
			ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
			err := pingers[chain].Ping(ctx)
			cancel()
			if err != nil {
				failures++
				fmt.Fprintf(out, "- explorer %s: ERROR %v\n", chain, err)
				continue
			}
			fmt.Fprintf(out, "- explorer %s: OK\n", chain)
		}

		if failures > 0 {
			return fmt.Errorf("validate: %d explorer(s) failed connectivity", failures)
		}

		fmt.Fprintln(out, "validate: success")
		return nil
	},
}
