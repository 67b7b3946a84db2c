// Package database provides SQLite connectivity for Tuya Fusion Core.
//
// The database holds the last merged snapshot of every device (so the
// registry has devices immediately after a restart, before the first
// cloud fetch) and the discrepancy audit log written by the merge
// engine's recorder. Schema lives in the top-level migrations package
// and is embedded into the binary.
//
// Characteristics:
//   - WAL mode so snapshot reads do not block status-commit writes
//   - single pooled connection (SQLite single-writer model)
//   - busy timeout instead of immediate "database is locked" errors
//   - file permissions 0600: snapshots carry device local keys
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are pairs of <version>_<name>.up.sql / .down.sql files,
// applied in version order, each in its own transaction.
package database
