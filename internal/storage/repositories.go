package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vialaky/ProductImagePipeline/internal/report"
)

// ErrNotFound indicates a missing record.
var ErrNotFound = errors.New("record not found")

// RunRepository handles run-history persistence.
type RunRepository struct {
	db DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new running batch record.
func (r *RunRepository) Create(ctx context.Context, skuCount int) (*Run, error) {
	run := &Run{
		ID:        uuid.New(),
		Status:    RunStatusRunning,
		SKUCount:  skuCount,
		StartedAt: time.Now(),
	}

	query := `
		INSERT INTO runs (id, status, sku_count, failed_count, processed_total, started_at)
		VALUES ($1, $2, $3, 0, 0, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID.String(), run.Status, run.SKUCount, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Complete stores the final report for a run and marks it finished.
func (r *RunRepository) Complete(ctx context.Context, run *Run, rep *report.Report) error {
	failed := 0
	processedTotal := 0
	for i := range rep.Entries {
		e := &rep.Entries[i]
		if e.Failed() {
			failed++
		}
		processedTotal += e.ProcessedCount

		query := `
			INSERT INTO run_entries (run_id, ord, entry_time, sku, filename, size,
				archive_type, download_status, extract_status, process_status, processed_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := r.db.ExecContext(ctx, query,
			run.ID.String(), i, e.Time, e.SKU, e.Filename, e.Size,
			e.ArchiveType, e.DownloadStatus, e.ExtractStatus, e.ProcessStatus, e.ProcessedCount,
		)
		if err != nil {
			return fmt.Errorf("insert run entry %s: %w", e.SKU, err)
		}
	}

	status := RunStatusCompleted
	if rep.AllFailed() {
		status = RunStatusFailed
	}
	now := time.Now()
	run.Status = status
	run.FailedCount = failed
	run.ProcessedTotal = processedTotal
	run.CompletedAt = &now

	query := `
		UPDATE runs
		SET status = $1, failed_count = $2, processed_total = $3, completed_at = $4
		WHERE id = $5
	`
	if _, err := r.db.ExecContext(ctx, query,
		run.Status, run.FailedCount, run.ProcessedTotal, run.CompletedAt, run.ID.String(),
	); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by ID.
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `
		SELECT id, status, sku_count, failed_count, processed_total, started_at, completed_at
		FROM runs WHERE id = $1
	`
	return scanRun(r.db.QueryRowContext(ctx, query, id.String()))
}

// Latest retrieves the most recently started run.
func (r *RunRepository) Latest(ctx context.Context) (*Run, error) {
	query := `
		SELECT id, status, sku_count, failed_count, processed_total, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT 1
	`
	return scanRun(r.db.QueryRowContext(ctx, query))
}

// List retrieves runs ordered newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, status, sku_count, failed_count, processed_total, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Entries retrieves a run's report entries in catalog order.
func (r *RunRepository) Entries(ctx context.Context, runID uuid.UUID) ([]RunEntry, error) {
	query := `
		SELECT run_id, ord, entry_time, sku, filename, size,
			archive_type, download_status, extract_status, process_status, processed_count
		FROM run_entries WHERE run_id = $1 ORDER BY ord
	`
	rows, err := r.db.QueryContext(ctx, query, runID.String())
	if err != nil {
		return nil, fmt.Errorf("list run entries: %w", err)
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var (
			e     RunEntry
			rawID string
		)
		if err := rows.Scan(&rawID, &e.Ord, &e.Time, &e.SKU, &e.Filename, &e.Size,
			&e.ArchiveType, &e.DownloadStatus, &e.ExtractStatus, &e.ProcessStatus, &e.ProcessedCount,
		); err != nil {
			return nil, fmt.Errorf("scan run entry: %w", err)
		}
		e.RunID, _ = uuid.Parse(rawID)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Report reconstructs the report document stored for a run.
func (r *RunRepository) Report(ctx context.Context, runID uuid.UUID) (*report.Report, error) {
	entries, err := r.Entries(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}

	rep := &report.Report{Entries: make([]report.Entry, 0, len(entries))}
	for i := range entries {
		rep.Entries = append(rep.Entries, entries[i].ReportEntry())
	}
	return rep, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	run, err := scanRunRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

func scanRunRow(row rowScanner) (*Run, error) {
	var (
		run   Run
		rawID string
	)
	if err := row.Scan(&rawID, &run.Status, &run.SKUCount, &run.FailedCount,
		&run.ProcessedTotal, &run.StartedAt, &run.CompletedAt,
	); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	run.ID = id
	return &run, nil
}
