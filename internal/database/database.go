package database

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// DB is a *sql.DB that knows which SQL dialect it speaks.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open opens a SQLite database at the given path and runs migrations.
func Open(dbPath string) (*DB, error) {
	return OpenDriver(string(SQLite), dbPath)
}

// OpenDriver opens a database for the named driver ("sqlite", "postgres" or
// "mysql") and runs migrations. For sqlite the dsn is a file path.
func OpenDriver(driver, dsn string) (*DB, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	driverName, source, err := dialect.dataSource(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := configure(db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure db: %w", err)
	}

	if err := runMigrations(db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// Version reports the applied goose migration version.
func (db *DB) Version() (int64, error) {
	if err := goose.SetDialect(db.Dialect.gooseName()); err != nil {
		return 0, fmt.Errorf("set dialect: %w", err)
	}
	return goose.GetDBVersion(db.DB)
}

func (d Dialect) dataSource(dsn string) (string, string, error) {
	switch d {
	case SQLite:
		if dsn == "" {
			return "", "", fmt.Errorf("sqlite: database path is required")
		}
		return "sqlite", dsn + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
	case Postgres:
		if dsn == "" {
			return "", "", fmt.Errorf("postgres: database url is required")
		}
		return "postgres", dsn, nil
	case MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", "", fmt.Errorf("mysql: parse dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return "mysql", cfg.FormatDSN(), nil
	}
	return "", "", fmt.Errorf("unsupported dialect %q", d)
}

func configure(db *sql.DB, d Dialect) error {
	switch d {
	case SQLite:
		// One connection serialises writers and keeps ":memory:" databases
		// from splitting across the pool.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("enable foreign keys: %w", err)
		}
	case Postgres, MySQL:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	return nil
}

func runMigrations(db *sql.DB, d Dialect) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(d.gooseName()); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations/"+strings.ToLower(string(d))); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
