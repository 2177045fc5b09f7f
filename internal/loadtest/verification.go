package loadtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/okian/mccskill/pkg/logger"
)

const skillSumTolerance = 1e-6

// verifyResults checks the leaderboard against the per-player rankings and
// the generated strengths.
func verifyResults(ctx context.Context, rankings, leaderboard []Entry, strengths map[string]float64, stats *Stats) error {
	if len(rankings) == 0 {
		return errors.New("no rankings to verify")
	}

	sum := 0.0
	for _, e := range rankings {
		sum += e.Skill
	}
	if math.Abs(sum-1) > skillSumTolerance {
		return fmt.Errorf("skills sum to %.9f, want 1", sum)
	}

	sorted := make([]Entry, len(rankings))
	copy(sorted, rankings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Skill != sorted[j].Skill {
			return sorted[i].Skill > sorted[j].Skill
		}
		return sorted[i].PlayerID < sorted[j].PlayerID
	})
	if err := verifyLeaderboardConsistency(sorted, leaderboard); err != nil {
		return err
	}

	truth := make([]float64, len(rankings))
	est := make([]float64, len(rankings))
	for i, e := range rankings {
		truth[i] = strengths[e.PlayerID]
		est[i] = e.Skill
	}
	stats.Spearman = spearman(truth, est)

	displayTopPerformers(ctx, sorted, strengths)
	return nil
}

// verifyLeaderboardConsistency checks the leaderboard is the head of the
// sorted rankings, ordered and densely ranked.
func verifyLeaderboardConsistency(sorted, leaderboard []Entry) error {
	if len(leaderboard) == 0 {
		return errors.New("empty leaderboard")
	}
	if len(leaderboard) > len(sorted) {
		return fmt.Errorf("leaderboard has %d entries but only %d players are ranked", len(leaderboard), len(sorted))
	}
	for i, e := range leaderboard {
		if e.PlayerID != sorted[i].PlayerID {
			return fmt.Errorf("leaderboard position %d is %s, rankings say %s", i+1, e.PlayerID, sorted[i].PlayerID)
		}
		if i == 0 {
			if e.Rank != 1 {
				return fmt.Errorf("leaderboard starts at rank %d", e.Rank)
			}
			continue
		}
		prev := leaderboard[i-1]
		if e.Skill > prev.Skill {
			return fmt.Errorf("leaderboard not sorted at position %d", i+1)
		}
		if want := prev.Rank + boolToInt(e.Skill != prev.Skill); e.Rank != want {
			return fmt.Errorf("position %d has rank %d, want %d", i+1, e.Rank, want)
		}
	}
	return nil
}

// spearman is the rank correlation of x and y. Ties share their mean rank.
func spearman(x, y []float64) float64 {
	return stat.Correlation(fractionalRanks(x), fractionalRanks(y), nil)
}

func fractionalRanks(v []float64) []float64 {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })

	ranks := make([]float64, len(v))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && v[idx[j+1]] == v[idx[i]] {
			j++
		}
		mean := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = mean
		}
		i = j + 1
	}
	return ranks
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// displayTopPerformers logs the head of the board next to the generated
// strengths.
func displayTopPerformers(ctx context.Context, sorted []Entry, strengths map[string]float64) {
	n := min(displayTopN, len(sorted))
	log := logger.Get()
	for i := 0; i < n; i++ {
		e := sorted[i]
		log.Info(ctx, "top performer",
			logger.Int("position", i+1),
			logger.String("playerID", e.PlayerID),
			logger.Float64("skill", e.Skill),
			logger.Float64("strength", strengths[e.PlayerID]),
		)
	}
}
