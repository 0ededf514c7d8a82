// Package sqlite provides a SQLite-backed archive driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/membench/pkg/archive/sqldriver"
)

// DefaultPath returns the stock archive location under a results
// directory.
func DefaultPath(resultsDir string) string {
	return filepath.Join(resultsDir, "runs.db")
}

// Driver implements archive.Driver using SQLite via database/sql.
type Driver struct {
	*sqldriver.SQLDriver
}

// NewDriver creates a new SQLite-backed archive.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite-specific pragmas
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	d := &Driver{
		SQLDriver: &sqldriver.SQLDriver{DB: db},
	}

	if err := d.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return d, nil
}
