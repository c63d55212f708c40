package ui

import (
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/vialaky/ProductImagePipeline/internal/pipeline"
)

// stageTotal is the number of stages a SKU bar tracks.
const stageTotal = 4

// StageProgress renders one mpb bar per SKU, advancing as pipeline stages
// complete. It implements pipeline.EventSink and is safe for concurrent
// SKU runs.
type StageProgress struct {
	progress *mpb.Progress
	mu       sync.Mutex
	bars     map[string]*mpb.Bar
}

// NewStageProgress creates a multi-bar display for a batch run.
func NewStageProgress() *StageProgress {
	return &StageProgress{
		progress: mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr)),
		bars:     make(map[string]*mpb.Bar),
	}
}

// StageStarted creates the SKU's bar on first use.
func (p *StageProgress) StageStarted(sku string, stage pipeline.Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.bars[sku]; ok {
		return
	}
	p.bars[sku] = p.progress.AddBar(stageTotal,
		mpb.PrependDecorators(
			decor.Name(sku, decor.WC{W: len(sku) + 1, C: decor.DSyncSpaceR}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}), " done"),
		),
	)
}

// StageCompleted advances the SKU's bar; terminal states finish or abort it.
func (p *StageProgress) StageCompleted(sku string, stage pipeline.Stage, state pipeline.State, err error) {
	p.mu.Lock()
	bar, ok := p.bars[sku]
	p.mu.Unlock()
	if !ok {
		return
	}

	switch {
	case state.Failed():
		bar.Abort(false)
	case state == pipeline.StateProcessed:
		bar.SetCurrent(stageTotal)
	default:
		bar.Increment()
	}
}

// ImageProcessed is a no-op; the stage bar tracks whole stages.
func (p *StageProgress) ImageProcessed(string, int, bool) {}

// Wait blocks until all bars have rendered their final state.
func (p *StageProgress) Wait() {
	p.progress.Wait()
}

// BatchBar renders a single deterministic bar counting finished SKUs,
// used in plain (non-multibar) mode. Implements pipeline.EventSink.
type BatchBar struct {
	bar *progressbar.ProgressBar
}

// NewBatchBar creates a bar over the given SKU total.
func NewBatchBar(total int) *BatchBar {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription("processing catalog"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("skus"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &BatchBar{bar: bar}
}

// StageStarted is a no-op for the batch bar.
func (b *BatchBar) StageStarted(string, pipeline.Stage) {}

// StageCompleted ticks the bar when a SKU reaches a terminal state.
func (b *BatchBar) StageCompleted(sku string, stage pipeline.Stage, state pipeline.State, err error) {
	if state.Terminal() {
		_ = b.bar.Add(1)
	}
}

// ImageProcessed is a no-op for the batch bar.
func (b *BatchBar) ImageProcessed(string, int, bool) {}

// Finish completes the bar.
func (b *BatchBar) Finish() {
	_ = b.bar.Finish()
}
