// Package kvstore provides a SQLite-backed key-value store. It stands in for
// the host platform's generic options table: small JSON documents keyed by
// name, read-modify-write by a single process.
package kvstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS options (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// Store is a JSON-document key-value store over SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) a store at the given path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// SQLite handles one writer at a time; keep the pool at one connection
	// so read-modify-write sequences stay ordered.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for diagnostic queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Get unmarshals the value stored under name into v.
func (s *Store) Get(name string, v interface{}) error {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM options WHERE name = ?`, name).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// Put stores v under name, replacing any existing value.
func (s *Store) Put(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO options (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

// Delete removes the value stored under name. Missing keys are not an error.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM options WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Stats reports round-trip latency, table count and on-disk size. Used by the
// vitals prober as its storage-engine health check.
type Stats struct {
	LatencyMS  int64
	TableCount int
	SizeMB     float64
}

// Ping runs a trivial round-trip query and collects storage statistics.
func (s *Store) Ping() (*Stats, error) {
	start := time.Now()

	var one int
	if err := s.db.QueryRow(`SELECT 1`).Scan(&one); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	st := &Stats{LatencyMS: time.Since(start).Milliseconds()}

	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&st.TableCount); err != nil {
		return st, nil
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRow(`PRAGMA page_count`).Scan(&pageCount); err == nil {
		if err := s.db.QueryRow(`PRAGMA page_size`).Scan(&pageSize); err == nil {
			st.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	return st, nil
}
