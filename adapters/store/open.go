// Package store persists batch outcomes in a SQL results ledger.
package store

import (
	"context"
	"os"
	"path/filepath"

	"combosurv/internal/errors"
	"combosurv/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the ledger database and runs the ledger migrations.
// Supported drivers are sqlite3 and postgres. For sqlite3 the DSN is a file
// path whose directory is created if needed.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	return OpenWith(ctx, driver, dsn, migration.NewRunner())
}

// OpenWith is Open with an explicit migrator.
func OpenWith(ctx context.Context, driver, dsn string, migrator migration.Migrator) (*sqlx.DB, error) {
	if driver == "sqlite3" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, errors.DatabaseError("failed to create ledger directory", err)
		}
		dsn += "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to results ledger", err)
	}
	if driver == "sqlite3" {
		// one writer at a time; worker goroutines share the handle
		db.SetMaxOpenConns(1)
	}

	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "results ledger migration %s failed", migrator.Version())
	}
	return db, nil
}
