package pipeline

import (
	"context"
	"sync"

	"github.com/vialaky/ProductImagePipeline/internal/catalog"
	"github.com/vialaky/ProductImagePipeline/internal/observability"
	"github.com/vialaky/ProductImagePipeline/internal/report"
)

// Runner executes a catalog batch. SKU pipelines are independent and run
// in parallel under a bounded worker pool; one SKU's failure never aborts
// the batch and does not signal the others.
type Runner struct {
	pipeline      *Pipeline
	maxConcurrent int
	logger        *observability.Logger
}

// NewRunner creates a Runner with the given concurrency bound.
func NewRunner(p *Pipeline, maxConcurrent int, logger *observability.Logger) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Runner{pipeline: p, maxConcurrent: maxConcurrent, logger: logger}
}

// Run processes every catalog SKU and returns the finalized report in
// catalog order. The returned error is only non-nil for an internal
// consistency violation in the aggregation, never for SKU failures.
func (r *Runner) Run(ctx context.Context, cat *catalog.Catalog) (*report.Report, error) {
	agg := report.NewAggregator()

	var wg sync.WaitGroup
	sem := make(chan struct{}, r.maxConcurrent)

	for _, task := range cat.SKUs {
		wg.Add(1)
		sem <- struct{}{}
		go func(task catalog.SkuTask) {
			defer func() {
				<-sem
				wg.Done()
			}()
			res := r.pipeline.RunSKU(ctx, task)
			agg.Record(res.Entry)
		}(task)
	}
	wg.Wait()

	rep, err := agg.Finalize(cat)
	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Int("skus", cat.Len()).
		Bool("all_failed", rep.AllFailed()).
		Msg("batch run complete")
	return rep, nil
}
