package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vialaky/ProductImagePipeline/cmd/pipeline/ui"
	"github.com/vialaky/ProductImagePipeline/internal/archive"
	"github.com/vialaky/ProductImagePipeline/internal/cifar"
	"github.com/vialaky/ProductImagePipeline/internal/config"
	"github.com/vialaky/ProductImagePipeline/internal/download"
	"github.com/vialaky/ProductImagePipeline/internal/imaging"
	"github.com/vialaky/ProductImagePipeline/internal/pipeline"
	"github.com/vialaky/ProductImagePipeline/internal/storage"
)

var (
	runPlainProgress bool
	runKeepScratch   bool
	runNoHistory     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the batch pipeline over the configured catalog",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runPlainProgress, "plain", false, "single progress bar instead of per-SKU bars")
	runCmd.Flags().BoolVar(&runKeepScratch, "keep-scratch", false, "keep downloaded archives and extracted members")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "skip run-history persistence")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)
	ui.Init(noColor, verbose)
	ui.Section("Batch Run")

	cat, err := cfg.LoadCatalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	ui.Info("Catalog: %d SKUs", cat.Len())

	cacheClient := newCache(cfg, logger)
	defer cacheClient.Close()

	downloader := download.New(download.Config{
		Timeout:     cfg.Download.Timeout,
		MaxAttempts: cfg.Download.MaxAttempts,
		ChunkSize:   cfg.Download.ChunkSize,
		UserAgents:  cfg.Download.UserAgents,
		CacheTTL:    cfg.Cache.TTL,
	}, cacheClient, logger)

	extractor := archive.NewExtractor(logger)
	decoder := cifar.NewDecoder(cifar.CIFAR10, logger)
	normalizer := imaging.NewNormalizer(cfg.Image.TargetSide, cfg.Image.Quality, logger)

	sinks := pipeline.MultiSink{pipeline.NewLogSink(logger)}
	var stageProgress *ui.StageProgress
	var batchBar *ui.BatchBar
	if runPlainProgress {
		batchBar = ui.NewBatchBar(cat.Len())
		sinks = append(sinks, batchBar)
	} else {
		stageProgress = ui.NewStageProgress()
		sinks = append(sinks, stageProgress)
	}

	p := pipeline.New(downloader, extractor, decoder, normalizer, pipeline.Options{
		DataDir:           cfg.Project.DataDir,
		OutputDir:         cfg.Project.OutputDir,
		ContinueOnPartial: cfg.Extract.ContinueOnPartial,
		KeepScratch:       runKeepScratch || cfg.Run.KeepScratch,
	}, sinks, logger)

	runner := pipeline.NewRunner(p, cfg.Run.MaxConcurrentSKUs, logger)

	var (
		runRec *storage.Run
		repo   *storage.RunRepository
	)
	if !runNoHistory {
		db, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("open run history database: %w", err)
		}
		defer db.Close()
		repo = storage.NewRunRepository(db)
		if runRec, err = repo.Create(ctx, cat.Len()); err != nil {
			return fmt.Errorf("record run start: %w", err)
		}
	}

	rep, err := runner.Run(ctx, cat)
	if stageProgress != nil {
		stageProgress.Wait()
	}
	if batchBar != nil {
		batchBar.Finish()
	}
	if err != nil {
		return fmt.Errorf("batch run: %w", err)
	}

	if err := rep.WriteFile(cfg.Project.ReportPath); err != nil {
		return err
	}
	ui.Success("Report written to %s", cfg.Project.ReportPath)

	if repo != nil {
		if err := repo.Complete(ctx, runRec, rep); err != nil {
			return fmt.Errorf("record run completion: %w", err)
		}
		ui.Info("Run recorded: %s", runRec.ID)
	}

	for i := range rep.Entries {
		e := &rep.Entries[i]
		if e.Failed() {
			ui.Warn("%s: download=%s extract=%s", e.SKU, e.DownloadStatus, e.ExtractStatus)
		} else {
			ui.Success("%s: %d images", e.SKU, e.ProcessedCount)
		}
	}

	if rep.AllFailed() {
		return fmt.Errorf("every SKU in the catalog failed")
	}
	return nil
}
