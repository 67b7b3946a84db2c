package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	// openTimeout bounds the connectivity check during Open.
	openTimeout = 5 * time.Second
)

// DB wraps sql.DB with the lifecycle pieces the service needs:
// embedded-migration support, a health check, and SQLite-appropriate
// pool settings.
type DB struct {
	*sql.DB
	path string
}

// Config maps the database section of config.yaml.
type Config struct {
	// Path is the SQLite database file. Parent directories are
	// created on open.
	Path string

	// WALMode enables write-ahead logging so snapshot reads do not
	// block status-commit writes.
	WALMode bool

	// BusyTimeout is the lock wait in seconds before SQLite reports
	// "database is locked".
	BusyTimeout int
}

// Open opens (creating if needed) the SQLite database described by
// cfg, applies the connection pragmas, restricts file permissions, and
// verifies connectivity with a ping.
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Pragmas ride on the DSN; see mattn/go-sqlite3 connection-string docs.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout*1000)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite has a single writer; one pooled connection avoids lock
	// churn between the snapshot writer and the discrepancy recorder.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	db := &DB{DB: sqlDB, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The file holds device local keys; owner-only access. First run
	// may not have created the file yet, hence the ignored error.
	_ = os.Chmod(cfg.Path, filePermissions)

	return db, nil
}

// Close closes the database connection. Safe to call with a nil
// underlying handle.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query to confirm the connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats exposes connection pool statistics for debugging.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// ExecContext wraps sql.DB.ExecContext with consistent error wrapping.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return result, nil
}

// QueryRowContext wraps sql.DB.QueryRowContext.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction. Callers should defer Rollback, which
// is a no-op after Commit.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
