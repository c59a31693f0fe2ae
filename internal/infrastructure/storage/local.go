package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// LocalStore is the durable bottom tier, backed by a local SQLite file. It
// survives restarts, mirroring browser localStorage semantics, and is capped
// at maxEntries with oldest-first eviction.
type LocalStore struct {
	db         *sql.DB
	maxEntries int
}

// NewLocalStore opens (or creates) the SQLite-backed store at path.
func NewLocalStore(path string, maxEntries int) (*LocalStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		stored_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache_entries table: %w", err)
	}

	return &LocalStore{db: db, maxEntries: maxEntries}, nil
}

func (s *LocalStore) Get(key string) ([]byte, bool) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM cache_entries WHERE key = ?`, key).Scan(&payload)
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (s *LocalStore) Set(key string, payload []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO cache_entries (key, payload, stored_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at`,
		key, payload, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return s.enforceCap()
}

func (s *LocalStore) Remove(key string) {
	s.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
}

func (s *LocalStore) Keys(prefix string) []string {
	rows, err := s.db.Query(`SELECT key FROM cache_entries WHERE key LIKE ? || '%'`, prefix)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err == nil {
			keys = append(keys, key)
		}
	}
	return keys
}

func (s *LocalStore) Len() int {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return 0
	}
	return count
}

// Close releases the underlying database handle.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// enforceCap deletes the oldest rows once the store exceeds maxEntries.
func (s *LocalStore) enforceCap() error {
	count := s.Len()
	if count <= s.maxEntries {
		return nil
	}
	_, err := s.db.Exec(
		`DELETE FROM cache_entries WHERE key IN (
			SELECT key FROM cache_entries ORDER BY stored_at ASC LIMIT ?
		)`, count-s.maxEntries,
	)
	if err != nil {
		return fmt.Errorf("failed to enforce store cap: %w", err)
	}
	return nil
}
