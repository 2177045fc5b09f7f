package loadtest

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Submission retry constants.
const (
	maxSubmitRetries = 5
	retryBackoff     = 20 * time.Millisecond
)

// Runner configuration constants.
const (
	DrainPollInterval = 50 * time.Millisecond
	DrainTimeout      = 2 * time.Minute
	displayTopN       = 10
)

// Season shape constants.
const (
	strengthSpread = 0.8  // stddev of log-strength across players
	eventNoise     = 0.6  // stddev of per-event performance noise
	participation  = 0.75 // chance a player enters any given event
)
