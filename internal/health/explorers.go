package health

import (
	"context"
	"fmt"

	"github.com/mwehr/fundtrace/internal/explorer"
)

// ExplorerChecker pings every configured explorer adapter.
type ExplorerChecker struct {
	pingers map[string]explorer.Pinger
}

// NewExplorerChecker builds a checker over chain-keyed adapters.
func NewExplorerChecker(pingers map[string]explorer.Pinger) *ExplorerChecker {
	return &ExplorerChecker{pingers: pingers}
}

// Ping probes each explorer and fails on the first unreachable one.
func (c *ExplorerChecker) Ping(ctx context.Context) error {
	for chain, p := range c.pingers {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("explorer %s: %w", chain, err)
		}
	}
	return nil
}
