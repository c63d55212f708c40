package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialaky/ProductImagePipeline/internal/cache"
	"github.com/vialaky/ProductImagePipeline/internal/catalog"
	"github.com/vialaky/ProductImagePipeline/internal/observability"
)

func newTestDownloader(c cache.Client) *Downloader {
	return New(Config{Timeout: 5 * time.Second, MaxAttempts: 3}, c, observability.Nop())
}

func task(url string) catalog.SkuTask {
	return catalog.SkuTask{SKU: "SKU-1", SourceURL: url, ArchiveKind: catalog.KindZip}
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("archive-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	art, err := newTestDownloader(nil).Fetch(context.Background(), task(srv.URL+"/sku1.zip"), dir)
	require.NoError(t, err)

	assert.Equal(t, "sku1.zip", art.Filename)
	assert.Equal(t, int64(13), art.Size)
	assert.Equal(t, catalog.KindZip, art.Kind)
	assert.Equal(t, filepath.Join(dir, "sku1.zip"), art.Path)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, "archive-bytes", string(data))
}

func TestFetch_NotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestDownloader(nil).Fetch(context.Background(), task(srv.URL+"/missing.zip"), t.TempDir())

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, http.StatusNotFound, derr.StatusCode)
	assert.Equal(t, int32(3), hits.Load(), "all attempts should be used")
}

func TestFetch_RetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("eventually"))
	}))
	defer srv.Close()

	art, err := newTestDownloader(nil).Fetch(context.Background(), task(srv.URL+"/flaky.zip"), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, int64(10), art.Size)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetch_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := newTestDownloader(nil).Fetch(context.Background(), task(srv.URL+"/empty.zip"), dir)

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.ErrorContains(t, err, "empty response body")
	assert.NoFileExists(t, filepath.Join(dir, "empty.zip"))
}

func TestFetch_SkipsExistingFile(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sku1.zip"), []byte("already-here"), 0o644))

	art, err := newTestDownloader(nil).Fetch(context.Background(), task(srv.URL+"/sku1.zip"), dir)
	require.NoError(t, err)
	assert.Equal(t, int64(12), art.Size)
	assert.Zero(t, hits.Load(), "no request should be made")
}

func TestFetch_CachedSizeMismatchRedownloads(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("full-archive"))
	}))
	defer srv.Close()

	url := srv.URL + "/sku1.zip"
	dir := t.TempDir()
	// Truncated leftover from an interrupted run.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sku1.zip"), []byte("trunc"), 0o644))

	c := cache.NewMemoryClient()
	d := newTestDownloader(c)
	require.NoError(t, c.Set(context.Background(), "download:"+url,
		[]byte(`{"filename":"sku1.zip","size":12}`), 0))

	art, err := d.Fetch(context.Background(), task(url), dir)
	require.NoError(t, err)
	assert.Equal(t, int64(12), art.Size)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	_, err := newTestDownloader(nil).Fetch(context.Background(), task(srv.URL+"/gone.zip"), t.TempDir())

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Zero(t, derr.StatusCode)
}

func TestFetch_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	_, err := newTestDownloader(nil).Fetch(ctx, task(srv.URL+"/sku1.zip"), t.TempDir())
	require.Error(t, err)
	assert.LessOrEqual(t, hits.Load(), int32(1), "cancellation must stop the retry loop")
}

func TestFetch_KindFromFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	tk := catalog.SkuTask{SKU: "SKU-2", SourceURL: srv.URL + "/images.tar.gz", ArchiveKind: catalog.KindUnknown}
	art, err := newTestDownloader(nil).Fetch(context.Background(), tk, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, catalog.KindTarGz, art.Kind)
}
