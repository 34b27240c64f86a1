// Package storage keeps the fetch ledger: when each (collection, address)
// pair was last pulled from its explorer and how many transactions came back.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite-backed persistence for the fetch ledger.
type Store struct {
	db *sql.DB
}

// Open initializes a SQLite database and runs minimal schema setup.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.PingContext(ctx)
}

func configure(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS fetches (
  collection  TEXT NOT NULL,
  address     TEXT NOT NULL,
  tx_count    INTEGER NOT NULL,
  fetched_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(collection, address)
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Fetch is one ledger row.
type Fetch struct {
	Collection string
	Address    string
	TxCount    int
	FetchedAt  time.Time
}

// RecordFetch upserts the ledger row for a (collection, address) pair.
func (s *Store) RecordFetch(ctx context.Context, collection, address string, txCount int) error {
	if collection == "" || address == "" {
		return errors.New("collection and address required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO fetches (collection, address, tx_count, fetched_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(collection, address) DO UPDATE SET
  tx_count=excluded.tx_count,
  fetched_at=CURRENT_TIMESTAMP;
`, collection, address, txCount)
	if err != nil {
		return fmt.Errorf("record fetch: %w", err)
	}
	return nil
}

// GetFetch retrieves the ledger row for a (collection, address) pair.
func (s *Store) GetFetch(ctx context.Context, collection, address string) (Fetch, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT tx_count, fetched_at FROM fetches WHERE collection = ? AND address = ?;
`, collection, address)

	f := Fetch{Collection: collection, Address: address}
	switch err := row.Scan(&f.TxCount, &f.FetchedAt); err {
	case nil:
		return f, true, nil
	case sql.ErrNoRows:
		return Fetch{}, false, nil
	default:
		return Fetch{}, false, fmt.Errorf("get fetch: %w", err)
	}
}

// ListFetches returns every ledger row for a collection, newest first.
func (s *Store) ListFetches(ctx context.Context, collection string) ([]Fetch, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT collection, address, tx_count, fetched_at
FROM fetches WHERE collection = ?
ORDER BY fetched_at DESC, address ASC;
`, collection)
	if err != nil {
		return nil, fmt.Errorf("list fetches: %w", err)
	}
	defer rows.Close()

	var out []Fetch
	for rows.Next() {
		var f Fetch
		if err := rows.Scan(&f.Collection, &f.Address, &f.TxCount, &f.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan fetch: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
