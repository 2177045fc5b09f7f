// Package model contains domain models passed between layers.
package model

import "strconv"

// Result is one player's outcome in one event. A zero Score that was played
// is a real result; only Played == false means "did not participate".
type Result struct {
	Score  int
	Played bool
}

// Scored returns a played result with the given score.
func Scored(score int) Result { return Result{Score: score, Played: true} }

// Absent returns a result for an event the player did not take part in.
func Absent() Result { return Result{} }

// String renders the result the way the results file does (-1 for absent).
func (r Result) String() string {
	if !r.Played {
		return "-1"
	}
	return strconv.Itoa(r.Score)
}

// Player is a competitor with a fixed-length per-event result history.
type Player struct {
	ID      string   // immutable identity, e.g. a username
	Results []Result // one entry per event, in event order
	Skill   float64  // written by the estimator's output step
}

// NewPlayer builds a player from its results.
func NewPlayer(id string, results []Result) *Player {
	return &Player{ID: id, Results: results}
}

// Played reports how many events the player took part in.
func (p *Player) Played() int {
	n := 0
	for _, r := range p.Results {
		if r.Played {
			n++
		}
	}
	return n
}

// HasScored reports whether the player ever scored above zero.
func (p *Player) HasScored() bool {
	for _, r := range p.Results {
		if r.Played && r.Score > 0 {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand players to an estimator
// without sharing the result slice.
func (p *Player) Clone() *Player {
	results := make([]Result, len(p.Results))
	copy(results, p.Results)
	return &Player{ID: p.ID, Results: results, Skill: p.Skill}
}

// String formats the player the way the console ranking prints it.
func (p *Player) String() string {
	if p == nil || p.ID == "" {
		return ""
	}
	return p.ID + ", " + strconv.FormatFloat(p.Skill, 'g', -1, 64)
}
