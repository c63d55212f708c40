// Package report collects per-SKU pipeline outcomes into the final
// report document.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vialaky/ProductImagePipeline/internal/catalog"
)

// TimeFormat is the report timestamp layout.
const TimeFormat = "02.01.2006 15:04:05"

// Status literals used in report entries.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusProcessed = "processed"
	StatusPartial   = "partial"
)

// ExtractedStatus returns the extract status literal for a resolved kind,
// e.g. "extracted_zip".
func ExtractedStatus(kind catalog.ArchiveKind) string {
	return "extracted_" + string(kind)
}

// Entry is the recorded outcome of one SKU's pipeline run. Extract and
// process statuses are omitted when the run never reached those stages.
type Entry struct {
	Time           string `json:"time"`
	SKU            string `json:"sku"`
	Filename       string `json:"filename"`
	Size           int64  `json:"size"`
	ArchiveType    string `json:"archive type"`
	DownloadStatus string `json:"download_status"`
	ExtractStatus  string `json:"extract_status,omitempty"`
	ProcessStatus  string `json:"process_status,omitempty"`
	ProcessedCount int    `json:"processed_count"`
}

// Stamp sets the entry timestamp to now.
func (e *Entry) Stamp() {
	e.Time = time.Now().Format(TimeFormat)
}

// Failed reports whether the SKU ended in an absorbing failure state.
// Per-image processing failures are not absorbing; a processed SKU with
// zero output counts as completed.
func (e *Entry) Failed() bool {
	return e.DownloadStatus == StatusFailed || e.ExtractStatus == StatusFailed
}

// Report is the ordered final document: one entry per SKU, catalog order.
type Report struct {
	Entries []Entry
}

// JSON renders the report as a pretty-printed JSON array.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r.Entries, "", "  ")
}

// WriteFile writes the report document to path, creating parent
// directories as needed.
func (r *Report) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := r.JSON()
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// AllFailed reports whether every SKU in the report failed.
func (r *Report) AllFailed() bool {
	if len(r.Entries) == 0 {
		return false
	}
	for i := range r.Entries {
		if !r.Entries[i].Failed() {
			return false
		}
	}
	return true
}

// Aggregator collects entries from concurrently running SKU pipelines.
// Recording is append-or-assign keyed by SKU; catalog order is restored
// at finalize time so the output is deterministic.
type Aggregator struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{entries: make(map[string]Entry)}
}

// Record stores the entry for its SKU, replacing any previous one.
func (a *Aggregator) Record(e Entry) {
	a.mu.Lock()
	a.entries[e.SKU] = e
	a.mu.Unlock()
}

// Finalize builds the report in catalog order. A catalog SKU without an
// entry, or an entry without a catalog SKU, indicates an orchestration
// bug upstream and is fatal to the run.
func (a *Aggregator) Finalize(c *catalog.Catalog) (*Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.entries) != c.Len() {
		return nil, fmt.Errorf("report inconsistency: %d entries for %d catalog SKUs",
			len(a.entries), c.Len())
	}

	entries := make([]Entry, 0, c.Len())
	for _, task := range c.SKUs {
		e, ok := a.entries[task.SKU]
		if !ok {
			return nil, fmt.Errorf("report inconsistency: no entry for sku %s", task.SKU)
		}
		entries = append(entries, e)
	}

	return &Report{Entries: entries}, nil
}
