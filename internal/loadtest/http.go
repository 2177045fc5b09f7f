package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/mccskill/internal/domain/model"
	"github.com/okian/mccskill/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with an optional JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON decodes a 200 response from url into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) (int, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.StatusCode, nil
}

type submitOutcome int

const (
	outcomeAccepted submitOutcome = iota
	outcomeFailed
)

// submitResults posts every player's row using a worker pool.
func submitResults(ctx context.Context, config *Config, players []*model.Player, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "submitting results",
		logger.Int("players", len(players)),
		logger.Int("workers", config.Workers),
	)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/results"

	var submitted, accepted, retried, failed int64

	work := make(chan *model.Player, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				outcome, retries := submitSingle(ctx, client, url, toSubmission(p, uuid.NewString()))
				atomic.AddInt64(&submitted, 1)
				atomic.AddInt64(&retried, int64(retries))
				if outcome == outcomeAccepted {
					atomic.AddInt64(&accepted, 1)
					continue
				}
				atomic.AddInt64(&failed, 1)
				if config.Verbose {
					log.Warn(ctx, "submission failed", logger.String("playerID", p.ID))
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, p := range players {
			select {
			case <-ctx.Done():
				return
			case work <- p:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Accepted = int(atomic.LoadInt64(&accepted))
	stats.Retried = int(atomic.LoadInt64(&retried))
	stats.Failed = int(atomic.LoadInt64(&failed))

	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("retried", stats.Retried),
		logger.Int("failed", stats.Failed),
	)
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// submitSingle posts one row, backing off while the service reports a full
// queue.
func submitSingle(ctx context.Context, client *HTTPClient, url string, s submission) (submitOutcome, int) {
	for attempt := 0; ; attempt++ {
		resp, err := client.Post(ctx, url, s)
		if err != nil {
			return outcomeFailed, attempt
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusAccepted:
			return outcomeAccepted, attempt
		case resp.StatusCode == http.StatusTooManyRequests && attempt < maxSubmitRetries:
			select {
			case <-ctx.Done():
				return outcomeFailed, attempt
			case <-time.After(retryBackoff * time.Duration(attempt+1)):
			}
		default:
			return outcomeFailed, attempt
		}
	}
}
