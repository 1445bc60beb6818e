package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on commands(registry_id, seq)
const currentSchemaVersion = 1

// MemoryPath opens a private in-memory database. No process lock is taken.
const MemoryPath = ":memory:"

// ErrLocked is returned by Open when another process holds the database.
var ErrLocked = errors.New("database is locked by another process")

// Store provides durable storage for registries and their command log.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

// Open creates or opens a SQLite database at the given path.
// Takes the process lock, then applies pragmas and migrations.
//
// This function is idempotent - safe to call repeatedly once the previous
// Store has been closed.
func Open(path string) (*Store, error) {
	var lock *flock.Flock
	if path != MemoryPath {
		lock = flock.New(path + ".lock")
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("open %s: %w", path, ErrLocked)
		}
	}
	unlock := func() {
		if lock != nil {
			_ = lock.Unlock()
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	fail := func(msg string, err error) (*Store, error) {
		db.Close()
		unlock()
		return nil, fmt.Errorf("%s: %w", msg, err)
	}

	if err := db.Ping(); err != nil {
		return fail("failed to connect to database", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		return fail("failed to apply pragmas", err)
	}

	if err := applySchema(db); err != nil {
		return fail("failed to apply schema", err)
	}

	return &Store{db: db, lock: lock}, nil
}

// Close closes the database connection and releases the process lock.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = fmt.Errorf("release lock: %w", unlockErr)
		}
	}
	return err
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes the command log by registry for ReadRegistryCommands.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_commands_registry
		ON commands(registry_id, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
