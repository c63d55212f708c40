package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vialaky/ProductImagePipeline/internal/observability"
	"github.com/vialaky/ProductImagePipeline/internal/storage"
)

// RunHandler serves run history endpoints.
type RunHandler struct {
	logger *observability.Logger
	runs   *storage.RunRepository
}

// NewRunHandler creates a RunHandler.
func NewRunHandler(logger *observability.Logger, runs *storage.RunRepository) *RunHandler {
	return &RunHandler{logger: logger, runs: runs}
}

// RunDTO is the API shape of a stored run.
type RunDTO struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	SKUCount       int    `json:"skuCount"`
	FailedCount    int    `json:"failedCount"`
	ProcessedTotal int    `json:"processedTotal"`
	StartedAt      string `json:"startedAt"`
	CompletedAt    string `json:"completedAt,omitempty"`
}

func runDTO(run *storage.Run) RunDTO {
	dto := RunDTO{
		ID:             run.ID.String(),
		Status:         string(run.Status),
		SKUCount:       run.SKUCount,
		FailedCount:    run.FailedCount,
		ProcessedTotal: run.ProcessedTotal,
		StartedAt:      run.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = run.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return dto
}

// ListRuns returns stored runs, newest first.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.serverError(w, err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for i := range runs {
		dtos = append(dtos, runDTO(&runs[i]))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run by ID.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid run id"}`, http.StatusBadRequest)
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, runDTO(run))
}

// RunReport returns the report document stored for a run.
func (h *RunHandler) RunReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid run id"}`, http.StatusBadRequest)
		return
	}

	rep, err := h.runs.Report(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, `{"error":"report not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rep.Entries)
}

// LatestReport returns the report of the most recent run.
func (h *RunHandler) LatestReport(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Latest(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, `{"error":"no runs recorded"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}

	rep, err := h.runs.Report(r.Context(), run.ID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, `{"error":"report not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rep.Entries)
}

func (h *RunHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("encode response")
	}
}

func (h *RunHandler) serverError(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Msg("request failed")
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
