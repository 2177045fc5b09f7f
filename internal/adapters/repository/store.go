// Package repository defines the skill leaderboard store interface and errors.
package repository

import "context"

// Entry represents a leaderboard row.
type Entry struct {
	Rank     int
	PlayerID string
	Skill    float64
}

// Store provides read/write access to the skill leaderboard.
type Store interface {
	// Replace swaps the whole board for entries. Ranks in entries are
	// ignored and recomputed. Readers never see a partially built board.
	Replace(ctx context.Context, entries []Entry) error

	// Rank returns the current rank and skill for a player.
	// Returns ErrNotFound if the player is unknown.
	Rank(ctx context.Context, playerID string) (Entry, error)

	// TopN returns the top-N entries ordered by skill desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of players on the board.
	Count(ctx context.Context) int
}
