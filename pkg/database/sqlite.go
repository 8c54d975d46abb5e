package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteDSN appends the pragmas the store relies on unless the DSN sets them.
// Write transactions take the database lock when they begin.
func sqliteDSN(dsn string) string {
	if !strings.Contains(dsn, "busy_timeout") {
		dsn = addConnectionParams(dsn, "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(dsn, "_txlock") {
		dsn = addConnectionParams(dsn, "_txlock=immediate")
	}
	return dsn
}

func openSQLite(ctx context.Context, dsn string) (*DB, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return &DB{DB: db}, nil
}

func wrapSQLiteError(err error) error {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return err
	}
	code := liteErr.Code()
	switch {
	case code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, code == sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return ErrDuplicateKey
	case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
		return ErrTransactionConflict
	}
	return err
}
