// Package storage keeps per-user session state (last detection result,
// chat history, preferred LLM provider) in SQLite.
//
// The default path is ":memory:", so state lives only as long as the
// process. A file path may be set for debugging.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DefaultHistoryLimit is the number of history rows kept per user.
const DefaultHistoryLimit = 100

// DB wraps the SQLite database connection
type DB struct {
	conn         *sql.DB
	path         string
	historyLimit int
}

// New opens the database and initializes the schema.
// historyLimit <= 0 uses DefaultHistoryLimit.
func New(ctx context.Context, dbPath string, historyLimit int) (*DB, error) {
	if dbPath == "" {
		dbPath = MemoryPath
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	// Ensure directory exists (skip for in-memory database)
	if dbPath != MemoryPath {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database, so the pool is
	// pinned to one connection that never expires.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	if dbPath != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := InitSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{
		conn:         conn,
		path:         dbPath,
		historyLimit: historyLimit,
	}, nil
}

// NewTestDB creates an in-memory database for tests.
func NewTestDB() (*DB, error) {
	return New(context.Background(), MemoryPath, DefaultHistoryLimit)
}

// Close closes the database connection
func (db *DB) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// HistoryLimit returns the per-user history cap.
func (db *DB) HistoryLimit() int {
	return db.historyLimit
}
