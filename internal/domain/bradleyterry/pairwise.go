// Package bradleyterry estimates player skill from repeated multi-player
// events with the Bradley-Terry paired-comparison model.
//
// Every event is split into head-to-head comparisons: for each pair of
// players who both took part, the higher score wins, and equal scores count
// as half a win for each side. The resulting win matrix is solved with the
// minorization-maximization fixed point
//
//	skill[i] = wins[i] / Σ_j (n[i][j] / (skill[i] + skill[j]))
//
// applied in place in ascending player order and renormalized after every
// pass. skill[i] then approximates the chance that i wins an event contested
// by the whole field, and skill[i] / (skill[i] + skill[j]) the chance that i
// beats j head to head.
//
// The package is pure: no I/O, no logging, no goroutines.
package bradleyterry

import "github.com/okian/mccskill/internal/domain/model"

// tieCredit is what each side receives when two scores are equal.
const tieCredit = 0.5

// ScoreAgainst returns a's wins and losses against b over every event both
// played. Ties count as half a win and half a loss.
func ScoreAgainst(a, b *model.Player) (wins, losses float64) {
	if a == b {
		return 0, 0
	}

	n := min(len(a.Results), len(b.Results))
	for i := 0; i < n; i++ {
		ra, rb := a.Results[i], b.Results[i]
		if !ra.Played || !rb.Played {
			continue
		}
		switch {
		case ra.Score > rb.Score:
			wins++
		case ra.Score < rb.Score:
			losses++
		default:
			wins += tieCredit
			losses += tieCredit
		}
	}
	return wins, losses
}
