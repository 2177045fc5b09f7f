package store

import "errors"

var (
	// ErrNoRuns is returned by LatestRun when nothing has been archived yet.
	ErrNoRuns = errors.New("no archived runs")
	// ErrEmptyDSN is returned by Open when no connection string is given.
	ErrEmptyDSN = errors.New("empty postgres dsn")
)
