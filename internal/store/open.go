package store

import (
	"fmt"
	"strings"

	"github.com/dukerupert/chorechamp/internal/database"
)

// Open returns the Store for the configured driver. "memory" selects the
// in-memory store; every other driver is opened through the database package,
// with path used for sqlite and url for postgres and mysql.
func Open(driver, path, url string) (Store, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "memory" {
		return NewMemStore(), nil
	}

	dialect, err := database.ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	dsn := url
	if dialect == database.SQLite {
		dsn = path
	}
	db, err := database.OpenDriver(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", dialect, err)
	}
	return NewSQLStore(db), nil
}
