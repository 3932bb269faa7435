package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the on-device cache: accounts, transactions, the sync run journal
// and the conflict audit trail. SQLite keeps the cache available offline.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and its directory) if needed and bootstraps
// the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
            id TEXT PRIMARY KEY,
            external_id TEXT NOT NULL DEFAULT '',
            institution TEXT NOT NULL DEFAULT '',
            name TEXT NOT NULL,
            type TEXT NOT NULL DEFAULT '',
            balance REAL NOT NULL DEFAULT 0,
            currency TEXT NOT NULL DEFAULT 'USD',
            active BOOLEAN NOT NULL DEFAULT 1,
            deactivated_at DATETIME,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS transactions (
            id TEXT PRIMARY KEY,
            external_id TEXT NOT NULL DEFAULT '',
            account_id TEXT NOT NULL,
            amount REAL NOT NULL,
            date DATETIME NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            merchant TEXT NOT NULL DEFAULT '',
            location TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            pending BOOLEAN NOT NULL DEFAULT 0,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS sync_journal (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_id TEXT NOT NULL,
            category TEXT NOT NULL,
            success BOOLEAN NOT NULL,
            message TEXT NOT NULL DEFAULT '',
            error TEXT NOT NULL DEFAULT '',
            data_updated BOOLEAN NOT NULL DEFAULT 0,
            retry_count INTEGER NOT NULL DEFAULT 0,
            ran_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS conflict_audit (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            entity TEXT NOT NULL,
            conflict_type TEXT NOT NULL,
            resolution TEXT NOT NULL,
            local_id TEXT NOT NULL DEFAULT '',
            remote_id TEXT NOT NULL DEFAULT '',
            detected_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_journal_task_id ON sync_journal(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_journal_ran_at ON sync_journal(ran_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conflict_audit_resolution ON conflict_audit(resolution)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
