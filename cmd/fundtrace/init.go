package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const sampleConfig = `version: 1

global:
  data_dir: ./data
  cache_dir: ./data/cache
  db_path: ./fundtrace.db
  workers: 2
  request_interval: 3s
  retry_delay: 60s

explorers:
  bitcoin:
    type: esplora
    base_url: https://mempool.space/api
  litecoin:
    type: esplora
    base_url: https://litecoinspace.org/api
  decred:
    type: dcrdata
    base_url: https://dcrdata.decred.org/api
  ethereum:
    type: etherscan
    base_url: https://api.etherscan.io/v2/api
    chain_id: 1
    api_key: ${ETHERSCAN_API_KEY}

collections:
  - id: example
    file: example.jsonc

# notify:
#   type: slack
#   webhook_url: ${SLACK_WEBHOOK}
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a starter config and data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if _, err := os.Stat(cfgPath); err == nil {
			return fmt.Errorf("refusing to overwrite existing %s", cfgPath)
		}
		if err := os.WriteFile(cfgPath, []byte(sampleConfig), 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		if err := os.MkdirAll(filepath.Join("data", "cache"), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		fmt.Fprintf(out, "wrote %s and created data/cache\n", cfgPath)
		fmt.Fprintln(out, "set ETHERSCAN_API_KEY in the environment or a sibling .env file")
		return nil
	},
}
