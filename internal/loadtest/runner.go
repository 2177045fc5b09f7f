package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/mccskill/internal/adapters/resultsfile"
	"github.com/okian/mccskill/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete load test and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting season load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("players", config.Players),
		logger.Int("events", config.Events),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Int("topN", config.TopN),
		logger.Bool("verbose", config.Verbose),
	)

	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	s, err := generateSeason(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("season generation failed: %w", err)
	}

	if config.OutputFile != "" {
		if err := saveResultsFile(ctx, config.OutputFile, s); err != nil {
			log.Warn(ctx, "failed to save results file", logger.Error(err))
		}
	}

	if err := submitResults(ctx, config, s.Players, stats); err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}
	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d submissions failed", stats.Failed)
	}

	if err := waitForRoster(ctx, config, stats.Accepted); err != nil {
		return stats, fmt.Errorf("waiting for roster: %w", err)
	}
	if _, err := triggerRecompute(ctx, config); err != nil {
		return stats, fmt.Errorf("recompute failed: %w", err)
	}

	ids := make([]string, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.ID
	}
	rankings, err := retrieveRankings(ctx, config, ids, stats)
	if err != nil {
		return stats, fmt.Errorf("ranking retrieval failed: %w", err)
	}

	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	if err := verifyResults(ctx, rankings, leaderboard, s.Strengths, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// The service answers with Prometheus metrics; any 200 counts.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// saveResultsFile writes the generated season in the results file format so
// it can be replayed through the rank command.
func saveResultsFile(ctx context.Context, filename string, s *season) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(filename) //nolint:gosec // operator-chosen output path
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := resultsfile.Format(f, s.Players); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	logger.Get().Info(ctx, "season saved", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("playersGenerated", stats.PlayersGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("retried", stats.Retried),
		logger.Int("failed", stats.Failed),
		logger.Int("rankingsRetrieved", stats.RankingsRetrieved),
		logger.Int("unranked", stats.Unranked),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Float64("spearman", stats.Spearman),
		logger.Duration("duration", stats.Duration),
		logger.Float64("submissionsPerSecond", perSecond),
	)
}
