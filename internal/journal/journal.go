// Package journal records generation-run metadata in a local sqlite database.
// It stores process metadata only (counts, providers, cost, status), never
// generated attribute content.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// RunStatus is the terminal state of one generation run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is one journal entry.
type RunRecord struct {
	ID                string    `json:"id"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	Regulation        string    `json:"regulation,omitempty"`
	Schedule          string    `json:"schedule,omitempty"`
	ReportType        string    `json:"report_type,omitempty"`
	Status            RunStatus `json:"status"`
	DiscoveredCount   int       `json:"discovered_count"`
	DetailedCount     int       `json:"detailed_count"`
	BatchesProcessed  int       `json:"batches_processed"`
	DiscoveryProvider string    `json:"discovery_provider,omitempty"`
	DetailsProvider   string    `json:"details_provider,omitempty"`
	CostUSD           float64   `json:"cost_usd"`
	Error             string    `json:"error,omitempty"`
}

// Journal persists run records.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path and applies
// pending migrations.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "journal: open %s", path)
	}
	// sqlite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts one run record.
func (j *Journal) Record(ctx context.Context, rec RunRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO generation_runs (
			id, started_at, finished_at, regulation, schedule, report_type,
			status, discovered_count, detailed_count, batches_processed,
			discovery_provider, details_provider, cost_usd, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
		rec.Regulation,
		rec.Schedule,
		rec.ReportType,
		string(rec.Status),
		rec.DiscoveredCount,
		rec.DetailedCount,
		rec.BatchesProcessed,
		rec.DiscoveryProvider,
		rec.DetailsProvider,
		rec.CostUSD,
		rec.Error,
	)
	if err != nil {
		return eris.Wrap(err, "journal: insert run")
	}
	return nil
}

// List returns the most recent runs, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, regulation, schedule, report_type,
		       status, discovered_count, detailed_count, batches_processed,
		       discovery_provider, details_provider, cost_usd, error
		FROM generation_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "journal: list runs")
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished, status string
		if err := rows.Scan(
			&rec.ID, &started, &finished, &rec.Regulation, &rec.Schedule,
			&rec.ReportType, &status, &rec.DiscoveredCount, &rec.DetailedCount,
			&rec.BatchesProcessed, &rec.DiscoveryProvider, &rec.DetailsProvider,
			&rec.CostUSD, &rec.Error,
		); err != nil {
			return nil, eris.Wrap(err, "journal: scan run")
		}
		rec.Status = RunStatus(status)
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			rec.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, finished); err == nil {
			rec.FinishedAt = t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "journal: iterate runs")
	}

	return out, nil
}
