// Package loadtest simulates a season of events, submits every player's
// result row to a running service and checks the published leaderboard
// against the strengths the season was generated from.
package loadtest

import "time"

// Config holds configuration for a load test run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Players    int           // Number of simulated players
	Events     int           // Results per player; must match the service's event_count
	Workers    int           // Number of concurrent HTTP workers
	Timeout    time.Duration // HTTP request timeout
	TopN       int           // Number of leaderboard entries to fetch
	Seed       uint64        // Season generator seed
	OutputFile string        // Results file to write; empty skips it
	Verbose    bool
}

// submission mirrors the POST /results body.
type submission struct {
	SubmissionID string `json:"submission_id"`
	PlayerID     string `json:"player_id"`
	Results      []*int `json:"results"`
}

// Entry represents a leaderboard entry.
type Entry struct {
	Rank     int     `json:"rank"`
	PlayerID string  `json:"player_id"`
	Skill    float64 `json:"skill"`
}

// runSummary mirrors the POST /recompute response.
type runSummary struct {
	RunID     string `json:"run_id"`
	Players   int    `json:"players"`
	Passes    int    `json:"passes"`
	Converged bool   `json:"converged"`
}

// Stats holds test statistics.
type Stats struct {
	PlayersGenerated   int
	Submitted          int
	Accepted           int
	Retried            int
	Failed             int
	RankingsRetrieved  int
	Unranked           int
	LeaderboardEntries int
	Spearman           float64
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
