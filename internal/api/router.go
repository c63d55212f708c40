// Package api serves pipeline run history and reports over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vialaky/ProductImagePipeline/internal/observability"
	"github.com/vialaky/ProductImagePipeline/internal/storage"
)

// NewRouter creates the API router.
func NewRouter(logger *observability.Logger, runs *storage.RunRepository) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"product-image-pipeline"}`))
	})

	h := NewRunHandler(logger, runs)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/report", h.LatestReport)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)
		r.Get("/runs/{id}/report", h.RunReport)
	})

	return r
}
