// Package sqlite persists robots.txt bodies in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver
)

var schema = []string{
	"CREATE TABLE IF NOT EXISTS robots (key TEXT PRIMARY KEY, expires INTEGER, bytes BLOB)",
	"CREATE INDEX IF NOT EXISTS robots_expires_idx ON robots (expires)",
	"PRAGMA journal_mode=WAL",
}

// Store is a SQLite-backed expiring key/value store.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	now     func() time.Time
}

// New opens (or creates) the database at path.
func New(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("prepare database: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

// Read returns the payload stored under key, ignoring expired rows.
func (s *Store) Read(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		expires int64
		data    []byte
	)
	row := s.db.QueryRowContext(ctx, "SELECT expires, bytes FROM robots WHERE key = ?", key)
	if err := row.Scan(&expires, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query entry: %w", err)
	}
	if expires != 0 && s.now().UnixNano() >= expires {
		return nil, false, nil
	}
	return data, true, nil
}

// Write stores data under key. A non-positive ttl never expires.
func (s *Store) Write(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is required")
	}
	var expires int64
	if ttl > 0 {
		expires = s.now().Add(ttl).UnixNano()
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO robots (key, expires, bytes) VALUES (?, ?, ?)",
		key, expires, data,
	); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM robots WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Purge deletes every expired row and reports how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM robots WHERE expires != 0 AND expires <= ?", s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge entries: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
