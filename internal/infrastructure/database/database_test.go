package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "fusion.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func TestOpen(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "fusion.db")

		db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("creates missing parent directories", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "data", "state", "fusion.db")

		db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
			t.Error("database directory was not created")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Close on a nil handle must be a no-op.
	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

// TestExecAndTransactions drives a throwaway table through insert,
// committed and rolled-back transactions.
func TestExecAndTransactions(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		CREATE TABLE probe (
			id INTEGER PRIMARY KEY,
			device_id TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	result, err := db.ExecContext(ctx, "INSERT INTO probe (device_id) VALUES (?)", "bf001")
	if err != nil {
		t.Fatalf("INSERT error = %v", err)
	}
	if id, err := result.LastInsertId(); err != nil || id != 1 {
		t.Fatalf("LastInsertId() = %v, %v, want 1, nil", id, err)
	}

	countFor := func(deviceID string) int {
		t.Helper()
		var n int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM probe WHERE device_id = ?", deviceID,
		).Scan(&n); err != nil {
			t.Fatalf("SELECT error = %v", err)
		}
		return n
	}

	// Committed transaction is visible.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO probe (device_id) VALUES (?)", "bf002"); err != nil {
		t.Fatalf("INSERT error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if got := countFor("bf002"); got != 1 {
		t.Errorf("committed rows = %d, want 1", got)
	}

	// Rolled-back transaction is not.
	tx, err = db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO probe (device_id) VALUES (?)", "bf003"); err != nil {
		t.Fatalf("INSERT error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if got := countFor("bf003"); got != 0 {
		t.Errorf("rolled-back rows = %d, want 0", got)
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	stats := db.Stats()
	if stats.MaxOpenConnections != 1 {
		t.Errorf("MaxOpenConnections = %v, want 1 (SQLite single writer)", stats.MaxOpenConnections)
	}
}
