package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/mccskill/pkg/logger"
)

// waitForRoster polls /stats until the service roster holds want players.
func waitForRoster(ctx context.Context, config *Config, want int) error {
	client := newHTTPClient(config.Timeout)
	deadline := time.Now().Add(DrainTimeout)
	for {
		var stats struct {
			Players     int `json:"players"`
			QueueLength int `json:"queueLength"`
		}
		if _, err := client.getJSON(ctx, config.BaseURL+"/stats", &stats); err != nil {
			return err
		}
		if stats.Players >= want && stats.QueueLength == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("roster has %d of %d players after %s", stats.Players, want, DrainTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(DrainPollInterval):
		}
	}
}

// triggerRecompute asks the service for a final estimation.
func triggerRecompute(ctx context.Context, config *Config) (runSummary, error) {
	client := newHTTPClient(config.Timeout)
	resp, err := client.Post(ctx, config.BaseURL+"/recompute", nil)
	if err != nil {
		return runSummary{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return runSummary{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return runSummary{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	var run runSummary
	if err := json.Unmarshal(body, &run); err != nil {
		return runSummary{}, fmt.Errorf("failed to parse response: %w", err)
	}
	logger.Get().Info(ctx, "recompute finished",
		logger.String("runID", run.RunID),
		logger.Int("players", run.Players),
		logger.Int("passes", run.Passes),
	)
	return run, nil
}

// retrieveRankings fetches /rank/{id} for every player concurrently.
// Players the service left off the board are counted as unranked.
func retrieveRankings(ctx context.Context, config *Config, ids []string, stats *Stats) ([]Entry, error) {
	logger.Get().Info(ctx, "retrieving rankings",
		logger.Int("players", len(ids)),
		logger.Int("workers", config.Workers),
	)

	client := newHTTPClient(config.Timeout)
	rankings := make([]Entry, len(ids))
	var unranked, failed int64

	indices := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indices {
				var entry Entry
				status, err := client.getJSON(ctx, config.BaseURL+"/rank/"+url.PathEscape(ids[idx]), &entry)
				switch {
				case err == nil:
					rankings[idx] = entry
				case status == http.StatusNotFound:
					atomic.AddInt64(&unranked, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	go func() {
		defer close(indices)
		for i := range ids {
			select {
			case <-ctx.Done():
				return
			case indices <- i:
			}
		}
	}()
	wg.Wait()

	if n := atomic.LoadInt64(&failed); n > 0 {
		return nil, fmt.Errorf("%d rank lookups failed", n)
	}

	valid := make([]Entry, 0, len(rankings))
	for _, e := range rankings {
		if e.PlayerID != "" {
			valid = append(valid, e)
		}
	}
	stats.RankingsRetrieved = len(valid)
	stats.Unranked = int(atomic.LoadInt64(&unranked))
	return valid, nil
}

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	client := newHTTPClient(config.Timeout)
	var leaderboard []Entry
	if _, err := client.getJSON(ctx, fmt.Sprintf("%s/leaderboard?limit=%d", config.BaseURL, config.TopN), &leaderboard); err != nil {
		return nil, err
	}
	stats.LeaderboardEntries = len(leaderboard)
	return leaderboard, nil
}
