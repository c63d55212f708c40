// Package download fetches source archives for SKU tasks.
package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/vialaky/ProductImagePipeline/internal/archive"
	"github.com/vialaky/ProductImagePipeline/internal/cache"
	"github.com/vialaky/ProductImagePipeline/internal/catalog"
	"github.com/vialaky/ProductImagePipeline/internal/observability"
)

// defaultUserAgents is used when no rotation list is configured.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Error describes a failed fetch: transport error, timeout, or
// non-success HTTP status.
type Error struct {
	URL        string
	StatusCode int // zero for transport errors
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: http status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Artifact is a downloaded archive on disk, owned by the SKU run that
// produced it.
type Artifact struct {
	Path     string
	Filename string
	Size     int64
	Kind     catalog.ArchiveKind
}

// cacheRecord is the idempotency entry stored per source URL.
type cacheRecord struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Config holds downloader settings.
type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	ChunkSize   int
	UserAgents  []string
	CacheTTL    time.Duration
}

// Downloader fetches archives over HTTP with transport-level retries and
// an idempotency check: an existing non-empty file, or a cached completed
// fetch matching the on-disk size, short-circuits to success.
type Downloader struct {
	client *http.Client
	cfg    Config
	cache  cache.Client
	logger *observability.Logger
}

// New creates a Downloader.
func New(cfg Config, c cache.Client, logger *observability.Logger) *Downloader {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1 << 20
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = defaultUserAgents
	}
	if c == nil {
		c = cache.NewMemoryClient()
	}
	return &Downloader{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		cache:  c,
		logger: logger.WithStage("download"),
	}
}

// Fetch downloads the task's source archive into destDir. The archive
// kind is taken from the task declaration, or derived from the filename
// when the task declares "unknown" (content sniffing happens later, at
// extraction).
func (d *Downloader) Fetch(ctx context.Context, task catalog.SkuTask, destDir string) (*Artifact, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	filename := task.Filename()
	destPath := filepath.Join(destDir, filename)

	kind := task.ArchiveKind
	if kind == catalog.KindUnknown || kind == "" {
		kind = archive.KindFromName(filename)
	}

	log := d.logger.WithSKU(task.SKU)

	if art, ok := d.completed(ctx, task.SourceURL, destPath, filename, kind); ok {
		log.Info().Str("filename", filename).Int64("size", art.Size).Msg("already downloaded, skipping")
		return art, nil
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		size, err := d.fetchOnce(ctx, task.SourceURL, destPath)
		if err == nil {
			log.Info().
				Str("filename", filename).
				Int64("size", size).
				Int("attempt", attempt).
				Msg("download complete")
			d.remember(ctx, task.SourceURL, filename, size)
			return &Artifact{Path: destPath, Filename: filename, Size: size, Kind: kind}, nil
		}

		lastErr = err
		log.Warn().
			Str("filename", filename).
			Int("attempt", attempt).
			Err(err).
			Msg("download attempt failed")

		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// completed reports whether a previous run already fetched this URL.
func (d *Downloader) completed(ctx context.Context, url, destPath, filename string, kind catalog.ArchiveKind) (*Artifact, bool) {
	fi, err := os.Stat(destPath)
	if err != nil || fi.Size() == 0 {
		return nil, false
	}

	// A cached record with a mismatching size means a different or
	// truncated file; re-download in that case.
	if data, err := d.cache.Get(ctx, "download:"+url); err == nil {
		var rec cacheRecord
		if json.Unmarshal(data, &rec) == nil && rec.Size != fi.Size() {
			return nil, false
		}
	}

	return &Artifact{Path: destPath, Filename: filename, Size: fi.Size(), Kind: kind}, true
}

func (d *Downloader) remember(ctx context.Context, url, filename string, size int64) {
	data, err := json.Marshal(cacheRecord{Filename: filename, Size: size})
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, "download:"+url, data, d.cfg.CacheTTL); err != nil {
		d.logger.Debug().Err(err).Msg("cache set failed")
	}
}

func (d *Downloader) fetchOnce(ctx context.Context, url, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &Error{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", d.cfg.UserAgents[rand.Intn(len(d.cfg.UserAgents))])

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &Error{URL: url, StatusCode: resp.StatusCode}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	buf := make([]byte, d.cfg.ChunkSize)
	size, err := io.CopyBuffer(out, resp.Body, buf)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return 0, &Error{URL: url, Err: err}
	}
	if size == 0 {
		os.Remove(destPath)
		return 0, &Error{URL: url, Err: errors.New("empty response body")}
	}

	return size, nil
}
