package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialaky/ProductImagePipeline/internal/report"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(OpenConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "history", "pipeline.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleReport() *report.Report {
	return &report.Report{Entries: []report.Entry{
		{
			Time:           "15.03.2026 09:00:00",
			SKU:            "SKU-A",
			Filename:       "SKU-A.zip",
			Size:           4096,
			ArchiveType:    "zip",
			DownloadStatus: report.StatusSuccess,
			ExtractStatus:  "extracted_zip",
			ProcessStatus:  report.StatusProcessed,
			ProcessedCount: 7,
		},
		{
			Time:           "15.03.2026 09:00:05",
			SKU:            "SKU-B",
			Filename:       "SKU-B.tgz",
			ArchiveType:    "tgz",
			DownloadStatus: report.StatusFailed,
		},
	}}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(OpenConfig{Driver: "oracle", DSN: "whatever"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestRunRepository_CreateAndComplete(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))
	ctx := context.Background()

	run, err := repo.Create(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, 2, run.SKUCount)
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Nil(t, run.CompletedAt)

	require.NoError(t, repo.Complete(ctx, run, sampleReport()))
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.FailedCount)
	assert.Equal(t, 7, run.ProcessedTotal)
	require.NotNil(t, run.CompletedAt)

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.Equal(t, 1, got.FailedCount)
	assert.Equal(t, 7, got.ProcessedTotal)
	assert.NotNil(t, got.CompletedAt)
}

func TestRunRepository_AllFailedRun(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))
	ctx := context.Background()

	run, err := repo.Create(ctx, 1)
	require.NoError(t, err)

	rep := &report.Report{Entries: []report.Entry{
		{SKU: "SKU-X", Filename: "SKU-X.zip", ArchiveType: "zip", DownloadStatus: report.StatusFailed,
			Time: "15.03.2026 10:00:00"},
	}}
	require.NoError(t, repo.Complete(ctx, run, rep))
	assert.Equal(t, RunStatusFailed, run.Status)
}

func TestRunRepository_GetByID_NotFound(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunRepository_Latest(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))
	ctx := context.Background()

	_, err := repo.Latest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := repo.Create(ctx, 1)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond) // distinct started_at
	second, err := repo.Create(ctx, 3)
	require.NoError(t, err)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.NotEqual(t, first.ID, latest.ID)
}

func TestRunRepository_List(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, i+1)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	runs, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 3, runs[0].SKUCount, "newest first")
	assert.Equal(t, 2, runs[1].SKUCount)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRunRepository_EntriesPreserveOrder(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))
	ctx := context.Background()

	run, err := repo.Create(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, repo.Complete(ctx, run, sampleReport()))

	entries, err := repo.Entries(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 0, entries[0].Ord)
	assert.Equal(t, "SKU-A", entries[0].SKU)
	assert.Equal(t, "extracted_zip", entries[0].ExtractStatus)
	assert.Equal(t, 7, entries[0].ProcessedCount)

	assert.Equal(t, 1, entries[1].Ord)
	assert.Equal(t, "SKU-B", entries[1].SKU)
	assert.Empty(t, entries[1].ExtractStatus)
	assert.Equal(t, run.ID, entries[1].RunID)
}

func TestRunRepository_ReportRoundtrip(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))
	ctx := context.Background()

	run, err := repo.Create(ctx, 2)
	require.NoError(t, err)

	orig := sampleReport()
	require.NoError(t, repo.Complete(ctx, run, orig))

	got, err := repo.Report(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, orig.Entries, got.Entries)

	_, err = repo.Report(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunEntry_Conversions(t *testing.T) {
	id := uuid.New()
	e := report.Entry{
		Time:           "01.01.2026 00:00:00",
		SKU:            "SKU-Z",
		Filename:       "SKU-Z.tar",
		Size:           99,
		ArchiveType:    "tar",
		DownloadStatus: report.StatusSuccess,
		ExtractStatus:  "extracted_tar",
		ProcessStatus:  report.StatusPartial,
		ProcessedCount: 3,
	}

	stored := NewRunEntry(id, e)
	assert.Equal(t, id, stored.RunID)
	assert.Equal(t, e, stored.ReportEntry())
}
