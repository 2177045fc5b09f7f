package bradleyterry

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultIterations is enough passes for roughly nine stable decimal places
// on tournament-sized rosters.
const DefaultIterations = 1000

// PassObserver receives the renormalized vector after each pass. pass is
// zero-based and skills is a copy the observer may keep.
type PassObserver func(pass int, skills []float64)

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithIterations sets the number of refinement passes.
func WithIterations(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.iterations = n
		}
	}
}

// WithTolerance enables early exit once no skill moves by more than tol in a
// pass. Zero keeps the fixed pass count.
func WithTolerance(tol float64) Option {
	return func(e *Estimator) {
		if tol >= 0 && !math.IsNaN(tol) {
			e.tolerance = tol
		}
	}
}

// WithPassObserver registers a callback invoked after every pass.
func WithPassObserver(fn PassObserver) Option {
	return func(e *Estimator) {
		e.observer = fn
	}
}

// Estimator runs the MM iteration over a ScoreMatrix.
type Estimator struct {
	iterations int
	tolerance  float64
	observer   PassObserver
}

// Estimate is the outcome of one estimation.
type Estimate struct {
	Skills    []float64
	Passes    int
	Converged bool // only set in tolerance mode
}

// NewEstimator creates an estimator with configuration options.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		iterations: DefaultIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Iterations returns the configured pass limit.
func (e *Estimator) Iterations() int { return e.iterations }

// Estimate solves for the skill vector of m.
//
// Updates are sequential: when player i is refined, players before it already
// carry this pass's values. Changing that to a snapshot update converges to
// different numbers.
func (e *Estimator) Estimate(m *ScoreMatrix) Estimate {
	n := m.Len()
	if n == 0 {
		return Estimate{Skills: []float64{}}
	}

	skills := make([]float64, n)
	for i := range skills {
		skills[i] = 1.0 / float64(n)
	}

	wins := make([]float64, n)
	for i := range wins {
		wins[i] = m.TotalWins(i)
	}

	var prev []float64
	if e.tolerance > 0 {
		prev = make([]float64, n)
	}

	out := Estimate{Skills: skills}
	for pass := 0; pass < e.iterations; pass++ {
		if prev != nil {
			copy(prev, skills)
		}

		for i := 0; i < n; i++ {
			den := 0.0
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				den += m.Matches(i, j) / (skills[i] + skills[j])
			}
			skills[i] = finiteOrZero(wins[i] / den)
		}
		normalize(skills)
		out.Passes = pass + 1

		if e.observer != nil {
			snapshot := make([]float64, n)
			copy(snapshot, skills)
			e.observer(pass, snapshot)
		}

		if prev != nil && floats.Distance(prev, skills, math.Inf(1)) <= e.tolerance {
			out.Converged = true
			break
		}
	}
	return out
}

// finiteOrZero maps NaN and ±Inf to zero. A player with no comparable
// matches ends every pass at exactly zero.
func finiteOrZero(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// normalize rescales skills to sum to one. An all-zero vector is left as is.
func normalize(skills []float64) {
	sum := floats.Sum(skills)
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return
	}
	for i := range skills {
		skills[i] /= sum
	}
}
