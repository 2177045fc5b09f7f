package model

import (
	"time"

	"github.com/google/uuid"
)

// Run summarizes one estimation run.
type Run struct {
	ID        uuid.UUID
	StartedAt time.Time
	Duration  time.Duration
	Players   int
	Events    int
	Passes    int
	Converged bool
	Skills    map[string]float64 // player id -> skill
}

// Submission replaces one player's result row.
type Submission struct {
	SubmissionID string
	PlayerID     string
	Results      []Result
}
