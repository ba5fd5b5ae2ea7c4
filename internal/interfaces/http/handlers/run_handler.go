package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/DrugEx/internal/domain/run"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// RunCache holds finished runs, which never change again.  The redis cache
// satisfies it.
type RunCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const (
	defaultSampleLimit = 20
	finishedRunTTL     = time.Hour
)

// RunHandler serves recorded runs, their epochs and their best samples.
type RunHandler struct {
	runs    run.RunRepository
	samples run.SampleRepository
	cache   RunCache
	logger  logging.Logger
}

// NewRunHandler returns a handler.  samples and cache may be nil.
func NewRunHandler(runs run.RunRepository, samples run.SampleRepository, cache RunCache, logger logging.Logger) *RunHandler {
	return &RunHandler{runs: runs, samples: samples, cache: cache, logger: logger}
}

func runCacheKey(id string) string { return "run:" + id }

// Get handles GET /api/v1/runs/{runID}.
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "runID")

	if h.cache != nil {
		var cached run.Run
		if err := h.cache.Get(ctx, runCacheKey(id), &cached); err == nil {
			writeJSON(w, http.StatusOK, &cached)
			return
		}
	}

	rn, err := h.runs.GetRun(ctx, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if h.cache != nil && rn.Status.IsTerminal() {
		if err := h.cache.Set(ctx, runCacheKey(id), rn, finishedRunTTL); err != nil {
			h.logger.Warn("Failed to cache run", logging.String("run_id", id), logging.Err(err))
		}
	}
	writeJSON(w, http.StatusOK, rn)
}

// EpochsResponse is one page of a run's epochs.
type EpochsResponse struct {
	RunID  string       `json:"run_id"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
	Epochs []*run.Epoch `json:"epochs"`
}

// ListEpochs handles GET /api/v1/runs/{runID}/epochs?limit=&offset=.
func (h *RunHandler) ListEpochs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	limit, err := parseLimit(r, "limit", 0)
	if err != nil {
		writeAppError(w, err)
		return
	}
	offset, err := parseLimit(r, "offset", 0)
	if err != nil {
		writeAppError(w, err)
		return
	}
	limit = run.ClampLimit(limit)

	epochs, err := h.runs.ListEpochs(r.Context(), id, limit, offset)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if epochs == nil {
		epochs = []*run.Epoch{}
	}
	writeJSON(w, http.StatusOK, EpochsResponse{RunID: id, Limit: limit, Offset: offset, Epochs: epochs})
}

// SamplesResponse lists the best molecules of a run.
type SamplesResponse struct {
	RunID   string       `json:"run_id"`
	Samples []run.Sample `json:"samples"`
}

// TopSamples handles GET /api/v1/runs/{runID}/samples?limit=.
func (h *RunHandler) TopSamples(w http.ResponseWriter, r *http.Request) {
	if h.samples == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Code: string(errors.ErrCodeNotImplemented), Message: "sample store is not configured"})
		return
	}
	id := chi.URLParam(r, "runID")
	limit, err := parseLimit(r, "limit", defaultSampleLimit)
	if err != nil {
		writeAppError(w, err)
		return
	}

	samples, err := h.samples.TopSamples(r.Context(), id, run.ClampLimit(limit))
	if err != nil {
		writeAppError(w, err)
		return
	}
	if samples == nil {
		samples = []run.Sample{}
	}
	writeJSON(w, http.StatusOK, SamplesResponse{RunID: id, Samples: samples})
}

//Personal.AI order the ending
