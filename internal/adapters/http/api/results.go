package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	service "github.com/okian/mccskill/internal/app"
	"github.com/okian/mccskill/internal/domain/model"
)

const maxResultsBody = 1 << 20

// ResultsDependencies defines the interface for result submission.
type ResultsDependencies interface {
	Submit(ctx context.Context, s model.Submission) error
}

// ResultsHandler handles result submissions.
type ResultsHandler struct {
	deps ResultsDependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps ResultsDependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

// resultsRequest is the body of POST /results. A null or -1 result marks an
// event the player did not take part in.
type resultsRequest struct {
	SubmissionID string `json:"submission_id"`
	PlayerID     string `json:"player_id"`
	Results      []*int `json:"results"`
}

func (req resultsRequest) submission() (model.Submission, error) {
	if strings.TrimSpace(req.PlayerID) == "" {
		return model.Submission{}, errors.New("missing player_id")
	}
	if len(req.Results) == 0 {
		return model.Submission{}, errors.New("missing results")
	}
	results := make([]model.Result, len(req.Results))
	for i, v := range req.Results {
		switch {
		case v == nil || *v == -1:
			results[i] = model.Absent()
		case *v < 0:
			return model.Submission{}, fmt.Errorf("invalid score %d for event %d", *v, i+1)
		default:
			results[i] = model.Scored(*v)
		}
	}
	id := strings.TrimSpace(req.SubmissionID)
	if id == "" {
		id = uuid.NewString()
	}
	return model.Submission{
		SubmissionID: id,
		PlayerID:     strings.TrimSpace(req.PlayerID),
		Results:      results,
	}, nil
}

type ackResponse struct {
	Status       string `json:"status"`
	SubmissionID string `json:"submission_id"`
}

// HandlePostResults handles POST /results requests.
func (h *ResultsHandler) HandlePostResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_results"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req resultsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxResultsBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sub, err := req.submission()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	switch err := h.deps.Submit(r.Context(), sub); {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", SubmissionID: sub.SubmissionID})
	case errors.Is(err, service.ErrDuplicate):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", SubmissionID: sub.SubmissionID})
	case errors.Is(err, service.ErrInvalidSubmission):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
