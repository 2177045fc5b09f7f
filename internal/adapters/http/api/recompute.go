package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	service "github.com/okian/mccskill/internal/app"
	"github.com/okian/mccskill/internal/domain/model"
)

// RecomputeDependencies defines the interface for on-demand estimation.
type RecomputeDependencies interface {
	Recompute(ctx context.Context) (model.Run, error)
}

// RecomputeHandler handles recompute requests.
type RecomputeHandler struct {
	deps RecomputeDependencies
}

// NewRecomputeHandler creates a new recompute handler.
func NewRecomputeHandler(deps RecomputeDependencies) *RecomputeHandler {
	return &RecomputeHandler{deps: deps}
}

type runResponse struct {
	RunID      string  `json:"run_id"`
	StartedAt  string  `json:"started_at"`
	DurationMs float64 `json:"duration_ms"`
	Players    int     `json:"players"`
	Events     int     `json:"events"`
	Passes     int     `json:"passes"`
	Converged  bool    `json:"converged"`
}

// HandleRecompute handles POST /recompute requests.
func (h *RecomputeHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	const op = "api.recompute"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	run, err := h.deps.Recompute(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNotStarted) {
			writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		RunID:      run.ID.String(),
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339Nano),
		DurationMs: float64(run.Duration) / float64(time.Millisecond),
		Players:    run.Players,
		Events:     run.Events,
		Passes:     run.Passes,
		Converged:  run.Converged,
	})
}
