package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Supported DB_DRIVER values.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// SQLDatabase stores documents as JSON rows of a single documents table,
// keyed by (collection, id). It runs on postgres and sqlite.
type SQLDatabase struct {
	docOps

	db     *DB
	driver string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		owner TEXT NOT NULL DEFAULT '',
		group_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		PRIMARY KEY (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (collection, owner)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_group ON documents (collection, group_id)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (collection, status)`,
}

// NewSQLDatabase connects to driver ("postgres" or "sqlite") using dsn.
// Statements are traced at debug level when debug is set.
func NewSQLDatabase(ctx context.Context, driver, dsn string, debug bool) (*SQLDatabase, error) {
	var (
		d   *DB
		err error
	)
	switch driver {
	case DriverPostgres:
		d, err = openPostgres(ctx, dsn)
	case DriverSQLite:
		d, err = openSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if debug {
		d.logger = log.FromContext(ctx).WithPrefix("db")
	}

	s := &SQLDatabase{db: d, driver: driver}
	s.docOps = docOps{raw: sqlRaw{h: d}}
	return s, nil
}

// RunTransaction implements DatabaseInterface. Postgres transactions run
// serializable and lock every row they read.
func (s *SQLDatabase) RunTransaction(ctx context.Context, fn TxFunc) error {
	var opts *sql.TxOptions
	if s.driver == DriverPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return s.db.TransactionContext(ctx, opts, func(tx *sqlTx) error {
		return fn(ctx, docOps{raw: sqlRaw{h: tx, lock: s.driver == DriverPostgres}})
	})
}

// EnsureSchema creates the documents table and its indexes.
func (s *SQLDatabase) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// HealthCheck 健康检查
func (s *SQLDatabase) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 关闭连接
func (s *SQLDatabase) Close() error {
	return s.db.Close()
}

// WrapError maps driver errors onto the package errors.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if mapped := wrapPostgresError(err); mapped != err {
		return mapped
	}
	return wrapSQLiteError(err)
}

type sqlRaw struct {
	h    handler
	lock bool
}

func (r sqlRaw) get(ctx context.Context, coll, id string) ([]byte, error) {
	query := "SELECT data FROM documents WHERE collection = ? AND id = ?"
	if r.lock {
		query += " FOR UPDATE"
	}
	var data string
	if err := r.h.GetContext(ctx, &data, r.h.Rebind(query), coll, id); err != nil {
		return nil, WrapError(err)
	}
	return []byte(data), nil
}

func (r sqlRaw) insert(ctx context.Context, coll, id string, meta docMeta, data []byte) error {
	query := r.h.Rebind(`INSERT INTO documents (collection, id, owner, group_id, status, data)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := r.h.ExecContext(ctx, query, coll, id, meta.Owner, meta.Group, meta.Status, string(data))
	return WrapError(err)
}

func (r sqlRaw) put(ctx context.Context, coll, id string, meta docMeta, data []byte) error {
	query := r.h.Rebind(`INSERT INTO documents (collection, id, owner, group_id, status, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			owner = excluded.owner,
			group_id = excluded.group_id,
			status = excluded.status,
			data = excluded.data,
			version = documents.version + 1`)
	_, err := r.h.ExecContext(ctx, query, coll, id, meta.Owner, meta.Group, meta.Status, string(data))
	return WrapError(err)
}

func (r sqlRaw) list(ctx context.Context, coll string, f docFilter) ([][]byte, error) {
	var (
		where = []string{"collection = ?"}
		args  = []interface{}{coll}
	)
	if f.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, f.Owner)
	}
	if f.Group != "" {
		where = append(where, "group_id = ?")
		args = append(args, f.Group)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	query := "SELECT data FROM documents WHERE " + strings.Join(where, " AND ")
	var rows []string
	if err := r.h.SelectContext(ctx, &rows, r.h.Rebind(query), args...); err != nil {
		return nil, WrapError(err)
	}
	out := make([][]byte, len(rows))
	for i, row := range rows {
		out[i] = []byte(row)
	}
	return out, nil
}
