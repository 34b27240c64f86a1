// Package cache persists raw normalized transaction snapshots so repeated
// runs avoid redundant explorer calls.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mwehr/fundtrace/internal/explorer"
)

// Store keeps one pretty-printed JSON file per (collection, address) under a
// root directory. Entries are point-in-time snapshots: written whole on a
// fetch, never partially updated.
type Store struct {
	dir string
}

// New builds a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the cache file location for a (collection, address) pair.
func (s *Store) Path(collection, address string) string {
	return filepath.Join(s.dir, collection, address+".json")
}

// Exists reports whether a snapshot is already cached.
func (s *Store) Exists(collection, address string) bool {
	_, err := os.Stat(s.Path(collection, address))
	return err == nil
}

// Load reads a snapshot. A missing or unparsable entry yields nil, never an
// error: callers treat both as "no cache".
func (s *Store) Load(collection, address string) []explorer.RawTransaction {
	raw, err := os.ReadFile(s.Path(collection, address))
	if err != nil {
		return nil
	}
	var txs []explorer.RawTransaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		return nil
	}
	return txs
}

// Save writes a snapshot, creating parent directories as needed. The content
// lands in a temp file first and is renamed into place, so a failed write
// never leaves a partial entry behind.
func (s *Store) Save(collection, address string, txs []explorer.RawTransaction) error {
	path := s.Path(collection, address)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	content, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace cache entry: %w", err)
	}
	return nil
}
