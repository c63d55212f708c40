// Package storage persists batch run history for the pipeline.
package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/vialaky/ProductImagePipeline/internal/report"
)

// RunStatus represents the lifecycle of a batch run record.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one batch execution over a catalog.
type Run struct {
	ID             uuid.UUID
	Status         RunStatus
	SKUCount       int
	FailedCount    int
	ProcessedTotal int
	StartedAt      time.Time
	CompletedAt    *time.Time
}

// RunEntry is one persisted per-SKU report entry belonging to a run.
type RunEntry struct {
	RunID          uuid.UUID
	Ord            int // catalog position, preserves report order
	Time           string
	SKU            string
	Filename       string
	Size           int64
	ArchiveType    string
	DownloadStatus string
	ExtractStatus  string
	ProcessStatus  string
	ProcessedCount int
}

// ReportEntry converts a stored row back into the report document form.
func (e *RunEntry) ReportEntry() report.Entry {
	return report.Entry{
		Time:           e.Time,
		SKU:            e.SKU,
		Filename:       e.Filename,
		Size:           e.Size,
		ArchiveType:    e.ArchiveType,
		DownloadStatus: e.DownloadStatus,
		ExtractStatus:  e.ExtractStatus,
		ProcessStatus:  e.ProcessStatus,
		ProcessedCount: e.ProcessedCount,
	}
}

// NewRunEntry converts a report entry into its storage form.
func NewRunEntry(runID uuid.UUID, e report.Entry) RunEntry {
	return RunEntry{
		RunID:          runID,
		Time:           e.Time,
		SKU:            e.SKU,
		Filename:       e.Filename,
		Size:           e.Size,
		ArchiveType:    e.ArchiveType,
		DownloadStatus: e.DownloadStatus,
		ExtractStatus:  e.ExtractStatus,
		ProcessStatus:  e.ProcessStatus,
		ProcessedCount: e.ProcessedCount,
	}
}
