package bradleyterry

import (
	"github.com/okian/mccskill/internal/domain/model"
	"gonum.org/v1/gonum/mat"
)

// ScoreMatrix holds At(i, j) = wins of player i over player j.
// It is built once per run and never modified afterwards.
type ScoreMatrix struct {
	n     int
	dense *mat.Dense // nil when n == 0; gonum rejects zero-sized matrices
}

// BuildScoreMatrix tallies every ordered pair of players.
func BuildScoreMatrix(players []*model.Player) *ScoreMatrix {
	n := len(players)
	if n == 0 {
		return &ScoreMatrix{}
	}

	dense := mat.NewDense(n, n, nil)
	for i, p := range players {
		for j, q := range players {
			if i == j {
				continue
			}
			wins, _ := ScoreAgainst(p, q)
			dense.Set(i, j, wins)
		}
	}
	return &ScoreMatrix{n: n, dense: dense}
}

// NewScoreMatrix wraps precomputed win counts. rows must be square; the
// diagonal is forced to zero.
func NewScoreMatrix(rows [][]float64) *ScoreMatrix {
	n := len(rows)
	if n == 0 {
		return &ScoreMatrix{}
	}
	dense := mat.NewDense(n, n, nil)
	for i, row := range rows {
		for j := 0; j < n && j < len(row); j++ {
			if i != j {
				dense.Set(i, j, row[j])
			}
		}
	}
	return &ScoreMatrix{n: n, dense: dense}
}

// Len returns the number of players the matrix covers.
func (m *ScoreMatrix) Len() int { return m.n }

// At returns the wins of player i over player j.
func (m *ScoreMatrix) At(i, j int) float64 {
	return m.dense.At(i, j)
}

// Matches returns how many comparisons i and j share.
func (m *ScoreMatrix) Matches(i, j int) float64 {
	if i == j {
		return 0
	}
	return m.dense.At(i, j) + m.dense.At(j, i)
}

// TotalWins returns the wins of player i over everyone else, summed in
// ascending opponent order.
func (m *ScoreMatrix) TotalWins(i int) float64 {
	total := 0.0
	for j := 0; j < m.n; j++ {
		if j != i {
			total += m.dense.At(i, j)
		}
	}
	return total
}
