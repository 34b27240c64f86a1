package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwehr/fundtrace/internal/collection"
	"github.com/mwehr/fundtrace/internal/config"
)

var flagExportFormat string

func init() {
	exportCmd.Flags().StringVar(&flagExportFormat, "format", "json", "Output format: json or csv")
}

var exportCmd = &cobra.Command{
	Use:   "export <collection> [address]",
	Short: "Dump persisted event histories as json or csv",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		collections, err := selectCollections(cfg, args[:1])
		if err != nil {
			return err
		}

		doc, err := collection.Load(cfg.CollectionPath(collections[0]))
		if err != nil {
			return err
		}

		type entry struct {
			Puzzle  string `json:"puzzle"`
			Address string `json:"address"`
			Type    string `json:"type"`
			TxID    string `json:"txid"`
			Date    string `json:"date,omitempty"`
			Amount  string `json:"amount,omitempty"`
		}

		var rows []entry
		for _, p := range doc.Puzzles() {
			if len(args) > 1 && p.Address() != args[1] {
				continue
			}
			for _, ev := range p.Events() {
				row := entry{
					Puzzle:  p.Name(),
					Address: p.Address(),
					Type:    string(ev.Type),
					TxID:    ev.TxID,
					Date:    ev.Date,
				}
				if ev.Amount != nil {
					row.Amount = strconv.FormatFloat(*ev.Amount, 'f', -1, 64)
				}
				rows = append(rows, row)
			}
		}

		switch flagExportFormat {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		case "csv":
			w := csv.NewWriter(out)
			if err := w.Write([]string{"puzzle", "address", "type", "txid", "date", "amount"}); err != nil {
				return err
			}
			for _, r := range rows {
				if err := w.Write([]string{r.Puzzle, r.Address, r.Type, r.TxID, r.Date, r.Amount}); err != nil {
					return err
				}
			}
			w.Flush()
			return w.Error()
		default:
			return fmt.Errorf("unsupported format: %s", flagExportFormat)
		}
	},
}
