// Package database provides SQLite persistence for the RS-485 bridge core.
//
// It wraps database/sql with WAL-mode SQLite (mattn/go-sqlite3), embedded
// schema migrations and health checking. The telemetry history store in
// internal/telemetry builds on this package.
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are embedded via the top-level migrations package, which
// registers its files in MigrationsFS at init time.
package database
