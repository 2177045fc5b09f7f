package bradleyterry

import "github.com/okian/mccskill/internal/domain/model"

// Context is everything one estimation run needs. It is built per run and
// discarded afterwards.
type Context struct {
	Players []*model.Player
	Matrix  *ScoreMatrix
}

// NewContext tallies the score matrix for players.
func NewContext(players []*model.Player) *Context {
	return &Context{
		Players: players,
		Matrix:  BuildScoreMatrix(players),
	}
}

// Run estimates skills for ectx and writes them onto its players.
// Players are written only after the final pass.
func Run(ectx *Context, opts ...Option) Estimate {
	est := NewEstimator(opts...).Estimate(ectx.Matrix)
	for i, skill := range est.Skills {
		ectx.Players[i].Skill = skill
	}
	return est
}

// GenerateSkillLevels builds a context for players, runs the estimator and
// assigns each player's Skill.
func GenerateSkillLevels(players []*model.Player, opts ...Option) Estimate {
	return Run(NewContext(players), opts...)
}

// WinProbability is the head-to-head chance that a player with skill a beats
// one with skill b.
func WinProbability(a, b float64) float64 {
	if a+b == 0 {
		return tieCredit
	}
	return a / (a + b)
}
