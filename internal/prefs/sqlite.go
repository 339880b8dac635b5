package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const preferencesSchema = `CREATE TABLE IF NOT EXISTS preferences (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteBackend keeps preferences in a single SQLite table.
type SQLiteBackend struct {
	conn    *sql.DB
	writeMu sync.Mutex
	timeout time.Duration
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}

	dsn := resolved + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps writes ordered.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	b := &SQLiteBackend{conn: conn, timeout: 5 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := conn.ExecContext(ctx, preferencesSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	var value string
	err := b.conn.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query %s: %w", key, err)
	}
	return value, true, nil
}

func (b *SQLiteBackend) Set(key, value string) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	_, err := b.conn.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.conn.Close()
}
