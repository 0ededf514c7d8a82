// Package sqldriver provides archive operations over a database/sql
// connection. It is dialect-agnostic and embedded by the sqlite and
// postgres drivers.
package sqldriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/membench/pkg/archive"
)

const schema = `CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	dataset_path TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	succeeded INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	config TEXT NOT NULL DEFAULT '',
	metrics TEXT NOT NULL DEFAULT ''
)`

// SQLDriver provides archive operations using a SQL database.
// It can be embedded by dialect-specific drivers.
type SQLDriver struct {
	DB *sql.DB

	// Placeholder formats the nth query parameter for the dialect.
	// Nil uses "?" for every parameter.
	Placeholder func(n int) string
}

// Migrate creates the runs table if it doesn't exist. The schema uses
// only types both sqlite and postgres accept.
func (d *SQLDriver) Migrate(ctx context.Context) error {
	if _, err := d.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating runs table: %w", err)
	}
	return nil
}

// Put stores a record. Returns true if the record was newly inserted,
// false if the run id was already archived (no-op on conflict).
func (d *SQLDriver) Put(ctx context.Context, record *archive.Record) (bool, error) {
	if record == nil {
		return false, errors.New("cannot store nil record")
	}
	if record.RunID == "" {
		return false, errors.New("record has no run id")
	}

	query := fmt.Sprintf(`INSERT INTO runs
		(run_id, dataset_path, created_at, succeeded, failed, skipped, duration_ms, config, metrics)
		VALUES (%s)
		ON CONFLICT (run_id) DO NOTHING`, d.placeholders(9))

	res, err := d.DB.ExecContext(ctx, query,
		record.RunID,
		record.DatasetPath,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		record.Succeeded,
		record.Failed,
		record.Skipped,
		record.DurationMs,
		string(record.Config),
		string(record.Metrics),
	)
	if err != nil {
		return false, fmt.Errorf("inserting run %s: %w", record.RunID, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert result: %w", err)
	}

	return inserted > 0, nil
}

// Get retrieves a record by its run id.
func (d *SQLDriver) Get(ctx context.Context, runID string) (*archive.Record, error) {
	query := fmt.Sprintf(`SELECT run_id, dataset_path, created_at, succeeded, failed, skipped, duration_ms, config, metrics
		FROM runs WHERE run_id = %s`, d.ph(1))

	record, err := scanRecord(d.DB.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, archive.NotFoundError{RunID: runID}
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}

	return record, nil
}

// Has checks if a run id is archived.
func (d *SQLDriver) Has(ctx context.Context, runID string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM runs WHERE run_id = %s", d.ph(1))

	var one int
	err := d.DB.QueryRowContext(ctx, query, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking run %s: %w", runID, err)
	}

	return true, nil
}

// List returns all archived runs, newest first.
func (d *SQLDriver) List(ctx context.Context) ([]*archive.Record, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT run_id, dataset_path, created_at, succeeded, failed, skipped, duration_ms, config, metrics
		FROM runs ORDER BY created_at DESC, run_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []*archive.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return records, nil
}

// Close closes the underlying database.
func (d *SQLDriver) Close() error {
	return d.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*archive.Record, error) {
	var (
		record    archive.Record
		createdAt string
		config    string
		metrics   string
	)

	err := row.Scan(
		&record.RunID,
		&record.DatasetPath,
		&createdAt,
		&record.Succeeded,
		&record.Failed,
		&record.Skipped,
		&record.DurationMs,
		&config,
		&metrics,
	)
	if err != nil {
		return nil, err
	}

	record.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if config != "" {
		record.Config = json.RawMessage(config)
	}
	if metrics != "" {
		record.Metrics = json.RawMessage(metrics)
	}

	return &record, nil
}

func (d *SQLDriver) ph(n int) string {
	if d.Placeholder == nil {
		return "?"
	}
	return d.Placeholder(n)
}

func (d *SQLDriver) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.ph(i + 1)
	}
	return strings.Join(parts, ", ")
}
