package loadtest

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/okian/mccskill/internal/domain/model"
	"github.com/okian/mccskill/pkg/logger"
)

// season is a generated roster plus the strengths it was drawn from.
type season struct {
	Players   []*model.Player
	Strengths map[string]float64
}

// generateSeason draws a log-normal strength per player and plays Events
// events. In each event every entrant scores the number of entrants they
// out-performed, so the weakest entrant scores zero.
func generateSeason(ctx context.Context, config *Config, stats *Stats) (*season, error) {
	if config.Players < 2 {
		return nil, fmt.Errorf("need at least 2 players, got %d", config.Players)
	}
	if config.Events < 1 {
		return nil, fmt.Errorf("need at least 1 event, got %d", config.Events)
	}
	logger.Get().Info(ctx, "generating season",
		logger.Int("players", config.Players),
		logger.Int("events", config.Events),
	)

	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))

	s := &season{
		Players:   make([]*model.Player, config.Players),
		Strengths: make(map[string]float64, config.Players),
	}
	logStrength := make([]float64, config.Players)
	for i := range s.Players {
		id := fmt.Sprintf("player-%04d", i)
		logStrength[i] = rng.NormFloat64() * strengthSpread
		s.Strengths[id] = math.Exp(logStrength[i])
		s.Players[i] = model.NewPlayer(id, make([]model.Result, config.Events))
	}

	type entrant struct {
		index       int
		performance float64
	}
	entrants := make([]entrant, 0, config.Players)
	for e := 0; e < config.Events; e++ {
		entrants = entrants[:0]
		for i := range s.Players {
			if rng.Float64() < participation {
				entrants = append(entrants, entrant{index: i, performance: logStrength[i] + rng.NormFloat64()*eventNoise})
			}
		}
		sort.Slice(entrants, func(a, b int) bool { return entrants[a].performance < entrants[b].performance })
		for place, en := range entrants {
			s.Players[en.index].Results[e] = model.Scored(place)
		}
	}

	stats.PlayersGenerated = len(s.Players)
	return s, nil
}

// toSubmission converts a player row into the request body.
func toSubmission(p *model.Player, submissionID string) submission {
	results := make([]*int, len(p.Results))
	for i, r := range p.Results {
		if r.Played {
			v := r.Score
			results[i] = &v
		}
	}
	return submission{SubmissionID: submissionID, PlayerID: p.ID, Results: results}
}
