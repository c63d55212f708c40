// Package pipeline orchestrates the per-SKU processing state machine:
// download, extract, optional batch conversion, image normalization, and
// report entry accumulation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vialaky/ProductImagePipeline/internal/archive"
	"github.com/vialaky/ProductImagePipeline/internal/catalog"
	"github.com/vialaky/ProductImagePipeline/internal/cifar"
	"github.com/vialaky/ProductImagePipeline/internal/download"
	"github.com/vialaky/ProductImagePipeline/internal/imaging"
	"github.com/vialaky/ProductImagePipeline/internal/observability"
	"github.com/vialaky/ProductImagePipeline/internal/report"
)

// Options holds pipeline behavior settings.
type Options struct {
	DataDir           string // per-SKU scratch and download area
	OutputDir         string // normalized image destination
	ContinueOnPartial bool   // proceed with members that survived a partial extraction
	KeepScratch       bool   // keep downloaded archives and extracted members
}

// Pipeline runs one SKU at a time through the four stages. Safe for
// concurrent use across SKUs: all per-run state is local and each SKU's
// scratch directory is exclusive to it.
type Pipeline struct {
	downloader *download.Downloader
	extractor  *archive.Extractor
	decoder    *cifar.Decoder
	normalizer *imaging.Normalizer
	opts       Options
	sink       EventSink
	logger     *observability.Logger
}

// Result is the outcome of one SKU run.
type Result struct {
	State     State
	Entry     report.Entry
	Attempted int // normalization candidates, decoded or direct
	Processed int // successfully normalized
}

// New creates a Pipeline. A nil sink is replaced with NopSink.
func New(
	downloader *download.Downloader,
	extractor *archive.Extractor,
	decoder *cifar.Decoder,
	normalizer *imaging.Normalizer,
	opts Options,
	sink EventSink,
	logger *observability.Logger,
) *Pipeline {
	if sink == nil {
		sink = NopSink{}
	}
	return &Pipeline{
		downloader: downloader,
		extractor:  extractor,
		decoder:    decoder,
		normalizer: normalizer,
		opts:       opts,
		sink:       sink,
		logger:     logger,
	}
}

// RunSKU executes the full state machine for one task. Stage errors are
// converted into the report entry; they never escape as returned errors.
// The pipeline does not retry stages: a failed SKU is recorded and the
// caller moves on to the next one.
func (p *Pipeline) RunSKU(ctx context.Context, task catalog.SkuTask) Result {
	log := p.logger.WithSKU(task.SKU)
	entry := report.Entry{
		SKU:      task.SKU,
		Filename: task.Filename(),
	}

	res := p.run(ctx, task, &entry, log)
	entry.Stamp()
	res.Entry = entry

	log.Info().
		Str("state", string(res.State)).
		Int("attempted", res.Attempted).
		Int("processed", res.Processed).
		Msg("sku run finished")
	return res
}

func (p *Pipeline) run(ctx context.Context, task catalog.SkuTask, entry *report.Entry, log *observability.Logger) Result {
	skuDir := filepath.Join(p.opts.DataDir, task.SKU)

	// PENDING → DOWNLOADED
	p.sink.StageStarted(task.SKU, StageDownload)
	art, err := p.downloader.Fetch(ctx, task, filepath.Join(skuDir, "download"))
	if err != nil {
		entry.DownloadStatus = report.StatusFailed
		entry.ArchiveType = string(archive.KindFromName(entry.Filename))
		log.Error().Err(err).Msg("download failed")
		p.sink.StageCompleted(task.SKU, StageDownload, StateDownloadFailed, err)
		return Result{State: StateDownloadFailed}
	}
	entry.DownloadStatus = report.StatusSuccess
	entry.Size = art.Size
	entry.ArchiveType = string(art.Kind)
	p.sink.StageCompleted(task.SKU, StageDownload, StateDownloaded, nil)

	// DOWNLOADED → EXTRACTED
	p.sink.StageStarted(task.SKU, StageExtract)
	scratch := filepath.Join(skuDir, "extracted")
	members, kind, extractErr := p.extractor.Extract(art.Path, art.Kind, scratch)
	if kind != catalog.KindUnknown {
		entry.ArchiveType = string(kind)
	}
	if !p.opts.KeepScratch {
		// The artifact is owned by this run and no longer needed once
		// extraction completed or failed.
		os.Remove(art.Path)
		defer os.RemoveAll(scratch)
	}

	if extractErr != nil {
		var perr *archive.PartialError
		if errors.As(extractErr, &perr) && len(members) > 0 && p.opts.ContinueOnPartial {
			entry.ExtractStatus = report.StatusPartial
			log.Warn().
				Int("extracted", perr.Extracted).
				Err(extractErr).
				Msg("partial extraction, continuing with surviving members")
			p.sink.StageCompleted(task.SKU, StageExtract, StateExtracted, extractErr)
		} else {
			entry.ExtractStatus = report.StatusFailed
			log.Error().Err(extractErr).Msg("extraction failed")
			p.sink.StageCompleted(task.SKU, StageExtract, StateExtractFailed, extractErr)
			return Result{State: StateExtractFailed}
		}
	} else if len(members) == 0 {
		entry.ExtractStatus = report.StatusFailed
		log.Error().Msg("archive contains no members")
		p.sink.StageCompleted(task.SKU, StageExtract, StateExtractFailed, nil)
		return Result{State: StateExtractFailed}
	} else {
		entry.ExtractStatus = report.ExtractedStatus(kind)
		p.sink.StageCompleted(task.SKU, StageExtract, StateExtracted, nil)
	}

	state := StateExtracted

	// EXTRACTED → CONVERTED (only when packed-record batches are present)
	var batches, plain []archive.Member
	for _, m := range members {
		if p.decoder.IsBatchMember(m.Path, m.Size) {
			batches = append(batches, m)
		} else {
			plain = append(plain, m)
		}
	}

	var decoded []cifar.Image
	attempted := 0
	if len(batches) > 0 {
		p.sink.StageStarted(task.SKU, StageConvert)
		var convertErr error
		for _, b := range batches {
			images, corrupt, err := p.decoder.DecodeFile(b.Path)
			decoded = append(decoded, images...)
			attempted += corrupt
			if err != nil {
				convertErr = err
				log.Warn().
					Str("member", filepath.Base(b.Path)).
					Int("decoded", len(images)).
					Int("corrupt", corrupt).
					Err(err).
					Msg("batch decode failed, keeping valid records")
			}
		}
		state = StateConverted
		p.sink.StageCompleted(task.SKU, StageConvert, state, convertErr)
	}

	// → PROCESSED: normalization is attempted on every candidate; the
	// processed count reflects successes only, and a zero-success SKU
	// still completes.
	p.sink.StageStarted(task.SKU, StageProcess)
	outDir := filepath.Join(p.opts.OutputDir, task.SKU)
	processed := 0
	seq := 0

	for _, img := range decoded {
		attempted++
		dest := p.outputPath(outDir, task.SKU, seq)
		seq++
		if err := p.normalizeDecoded(img, dest); err != nil {
			log.Debug().Int("index", img.Index).Err(err).Msg("image normalization failed")
			p.sink.ImageProcessed(task.SKU, seq-1, false)
			continue
		}
		processed++
		p.sink.ImageProcessed(task.SKU, seq-1, true)
	}

	for _, m := range plain {
		attempted++
		dest := p.outputPath(outDir, task.SKU, seq)
		seq++
		if _, err := p.normalizer.NormalizeFile(m.Path, dest); err != nil {
			log.Debug().Str("member", filepath.Base(m.Path)).Err(err).Msg("member normalization failed")
			p.sink.ImageProcessed(task.SKU, seq-1, false)
			continue
		}
		processed++
		p.sink.ImageProcessed(task.SKU, seq-1, true)
	}

	entry.ProcessedCount = processed
	entry.ProcessStatus = processStatus(attempted, processed)
	p.sink.StageCompleted(task.SKU, StageProcess, StateProcessed, nil)

	return Result{State: StateProcessed, Attempted: attempted, Processed: processed}
}

// outputPath names normalized images deterministically by SKU and
// sequence index.
func (p *Pipeline) outputPath(outDir, sku string, seq int) string {
	return filepath.Join(outDir, fmt.Sprintf("%s_%05d.jpg", sku, seq))
}

func (p *Pipeline) normalizeDecoded(img cifar.Image, dest string) error {
	raster, err := imaging.FromRaster(img.Pixels, img.Width, img.Height, img.Channels)
	if err != nil {
		return err
	}
	out, err := p.normalizer.Normalize(raster)
	if err != nil {
		return err
	}
	_, err = p.normalizer.WriteJPEG(out, dest)
	return err
}

// processStatus maps attempt/success counts onto the report literals:
// "processed" when nothing failed, "partial" when some candidates failed,
// "failed" when every candidate failed.
func processStatus(attempted, processed int) string {
	switch {
	case attempted == processed:
		return report.StatusProcessed
	case processed == 0:
		return report.StatusFailed
	default:
		return report.StatusPartial
	}
}
