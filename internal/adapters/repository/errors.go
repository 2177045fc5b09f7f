package repository

import "errors"

var (
	// ErrNotFound is returned by Rank for a player absent from the board.
	ErrNotFound = errors.New("player not on leaderboard")
	// ErrInvalidLimit is returned by TopN for n < 1.
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	// ErrDuplicateID rejects a Replace that names a player twice; the
	// previous board stays published.
	ErrDuplicateID = errors.New("duplicate player id in board")
)
