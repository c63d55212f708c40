package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vialaky/ProductImagePipeline/cmd/pipeline/ui"
	"github.com/vialaky/ProductImagePipeline/internal/config"
	"github.com/vialaky/ProductImagePipeline/internal/storage"
)

var (
	reportRunID string
	reportJSON  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the report of the latest (or a specific) run",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportRunID, "run", "", "run ID (defaults to the latest run)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the raw report document")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ui.Init(noColor, verbose)

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open run history database: %w", err)
	}
	defer db.Close()
	repo := storage.NewRunRepository(db)

	sp := ui.NewSpinner("loading run history")
	run, err := resolveRun(ctx, repo)
	sp.Stop()
	if errors.Is(err, storage.ErrNotFound) {
		ui.Warn("No runs recorded yet")
		return nil
	}
	if err != nil {
		return err
	}

	rep, err := repo.Report(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}

	if reportJSON {
		data, err := rep.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	ui.Section(fmt.Sprintf("Run %s (%s)", run.ID, run.Status))
	rows := make([][]string, 0, len(rep.Entries))
	for i := range rep.Entries {
		e := &rep.Entries[i]
		rows = append(rows, []string{
			e.SKU, e.Filename, strconv.FormatInt(e.Size, 10), e.ArchiveType,
			e.DownloadStatus, e.ExtractStatus, e.ProcessStatus,
			strconv.Itoa(e.ProcessedCount),
		})
	}
	ui.Table([]string{"SKU", "FILE", "SIZE", "TYPE", "DOWNLOAD", "EXTRACT", "PROCESS", "IMAGES"}, rows)
	return nil
}

func resolveRun(ctx context.Context, repo *storage.RunRepository) (*storage.Run, error) {
	if reportRunID == "" {
		return repo.Latest(ctx)
	}
	id, err := uuid.Parse(reportRunID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id: %w", err)
	}
	return repo.GetByID(ctx, id)
}
