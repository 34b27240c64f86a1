package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mwehr/fundtrace/internal/config"
	"github.com/mwehr/fundtrace/internal/explorer"
	"github.com/mwehr/fundtrace/internal/explorer/dcrdata"
	"github.com/mwehr/fundtrace/internal/explorer/esplora"
	"github.com/mwehr/fundtrace/internal/explorer/etherscan"
)

// buildClients constructs one adapter per configured chain. All adapters
// share a single process-wide rate limiter so concurrent workers still keep
// the minimum inter-request interval.
func buildClients(cfg *config.Config, log *slog.Logger) (map[string]explorer.Client, map[string]explorer.Pinger, error) {
	limiter := explorer.NewLimiter(cfg.Global.RequestIntervalDuration())
	httpClient := &http.Client{Timeout: 30 * time.Second}
	fetcher := explorer.NewFetcher(httpClient, limiter, cfg.Global.RetryDelayDuration(), log)

	clients := map[string]explorer.Client{}
	pingers := map[string]explorer.Pinger{}

	for chain, e := range cfg.Explorers {
		switch strings.ToLower(e.Type) {
		case "esplora":
			c := esplora.New(e.BaseURL, fetcher)
			clients[chain] = c
			pingers[chain] = c
		case "dcrdata":
			c := dcrdata.New(e.BaseURL, fetcher)
			clients[chain] = c
			pingers[chain] = c
		case "etherscan":
			c := etherscan.New(e.BaseURL, e.APIKey, e.ChainID, fetcher)
			clients[chain] = c
			pingers[chain] = c
		default:
			return nil, nil, fmt.Errorf("explorer %s: unsupported type %s", chain, e.Type)
		}
	}

	return clients, pingers, nil
}
