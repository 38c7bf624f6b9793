package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dukerupert/chorechamp/internal/database"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface{ Scan(...any) error }

// sqlQueries runs queries against either the pool or an open transaction.
// Inside a transaction lock holds the row-locking suffix for the dialect.
type sqlQueries struct {
	ex      execer
	dialect database.Dialect
	lock    string
}

func (q *sqlQueries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.ex.ExecContext(ctx, q.dialect.Rebind(query), args...)
}

func (q *sqlQueries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.ex.QueryContext(ctx, q.dialect.Rebind(query), args...)
}

func (q *sqlQueries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.ex.QueryRowContext(ctx, q.dialect.Rebind(query), args...)
}

// SQLStore implements Store over SQLite, PostgreSQL or MySQL.
type SQLStore struct {
	*sqlQueries
	db *database.DB
}

func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{
		sqlQueries: &sqlQueries{ex: db.DB, dialect: db.Dialect},
		db:         db,
	}
}

// DB exposes the underlying handle for health checks and migrations.
func (s *SQLStore) DB() *database.DB {
	return s.db
}

func (s *SQLStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := &sqlQueries{ex: tx, dialect: s.db.Dialect, lock: s.db.Dialect.ForUpdate()}
	if err := fn(q); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}

// isUniqueViolation reports whether err is a unique constraint failure from
// any of the supported drivers. Two writers can both pass the existence
// check before either inserts; the loser lands here.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
