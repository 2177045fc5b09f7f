// Package service owns the player roster and keeps the skill leaderboard in
// step with it. It implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	submissionqueue "github.com/okian/mccskill/internal/adapters/mq/queue"
	"github.com/okian/mccskill/internal/adapters/mq/worker"
	repository "github.com/okian/mccskill/internal/adapters/repository"
	"github.com/okian/mccskill/internal/adapters/resultsfile"
	"github.com/okian/mccskill/internal/adapters/store"
	"github.com/okian/mccskill/internal/domain/bradleyterry"
	"github.com/okian/mccskill/internal/domain/dedupe"
	"github.com/okian/mccskill/internal/domain/model"
	"github.com/okian/mccskill/internal/domain/types"
	"github.com/okian/mccskill/pkg/logger"
	"github.com/okian/mccskill/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

// Archive persists estimation runs. *store.DB satisfies it.
type Archive interface {
	SaveRun(ctx context.Context, run model.Run) error
	LatestRun(ctx context.Context) (model.Run, error)
}

// Service implements the API dependencies for the skill leaderboard.
type Service struct {
	mu sync.RWMutex // lifecycle and roster
	// estimateMu serializes estimation runs so each one sees a consistent
	// roster and publishes in order.
	estimateMu sync.Mutex

	roster  map[string]*model.Player
	order   []string
	lastRun *model.Run

	// Core components
	leaderboard repository.Store
	queue       *submissionqueue.InMemoryQueue
	recomputer  *worker.Recomputer
	archive     Archive
	deduper     dedupe.Deduper

	// Configuration
	resultsPath  string
	eventCount   int
	iterations   int
	tolerance    float64
	keepInactive bool
	queueSize    int
	maxBatch     int
	dedupeSize   int

	// State
	started  bool
	stopping bool // set by Stop while the worker drains
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithResultsPath seeds the roster from a results file on Start.
func WithResultsPath(path string) Option {
	return func(s *Service) {
		s.resultsPath = path
	}
}

// WithEventCount sets how many results each player row must carry.
func WithEventCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.eventCount = n
		}
	}
}

// WithIterations sets the number of estimator passes.
func WithIterations(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.iterations = n
		}
	}
}

// WithTolerance enables early stopping once skills move less than tol.
func WithTolerance(tol float64) Option {
	return func(s *Service) {
		if tol >= 0 {
			s.tolerance = tol
		}
	}
}

// WithKeepInactive keeps players who never scored in the estimation.
func WithKeepInactive(keep bool) Option {
	return func(s *Service) {
		s.keepInactive = keep
	}
}

// WithQueueSize sets the maximum number of pending submissions.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMaxBatch caps how many submissions are folded into one estimation.
func WithMaxBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

// WithDedupeSize sets how many submission ids are remembered for
// idempotency. A non-positive size remembers every id.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithArchive stores every run in archive.
func WithArchive(archive Archive) Option {
	return func(s *Service) {
		s.archive = archive
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		roster:     make(map[string]*model.Player),
		eventCount: resultsfile.DefaultEventCount,
		iterations: bradleyterry.DefaultIterations,
		queueSize:  1024,
		maxBatch:   256,
		dedupeSize: dedupe.DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the initial roster, publishes a first leaderboard and starts
// the recompute worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting skill service...")

	if s.resultsPath != "" {
		readerOpts := []resultsfile.Option{resultsfile.WithEventCount(s.eventCount)}
		if s.keepInactive {
			readerOpts = append(readerOpts, resultsfile.WithKeepInactive())
		}
		players, err := resultsfile.NewReader(readerOpts...).Load(ctx, s.resultsPath)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("load roster: %w", err)
		}
		for _, p := range players {
			s.upsert(p.ID, p.Results)
		}
		s.logger.Info(ctx, "roster loaded",
			logger.String("path", s.resultsPath),
			logger.Int("players", len(players)),
		)
	}

	s.leaderboard = repository.NewTreapStore(ctx)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = submissionqueue.NewInMemoryQueue(submissionqueue.WithCapacity(s.queueSize))
	s.recomputer = worker.NewRecomputer(s.queue, s,
		worker.WithMaxBatch(s.maxBatch),
		worker.WithLogger(s.logger.Named("recomputer")),
	)

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.recomputer.Run(workerCtx)

	s.started = true
	rosterSize := len(s.order)
	s.mu.Unlock()

	if rosterSize > 0 {
		if _, err := s.Recompute(ctx); err != nil {
			return err
		}
	} else {
		s.warmStart(ctx)
	}

	s.logger.Info(ctx, "skill service started",
		logger.Int("players", rosterSize),
		logger.Int("events", s.eventCount),
		logger.Int("iterations", s.iterations),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("archive", s.archive != nil),
	)
	return nil
}

// warmStart publishes the latest archived skills so reads work before the
// first submission arrives.
func (s *Service) warmStart(ctx context.Context) {
	if s.archive == nil {
		return
	}
	run, err := s.archive.LatestRun(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoRuns) {
			metrics.RecordArchiveError()
			s.logger.Warn(ctx, "failed to load archived run", logger.Error(err))
		}
		return
	}
	if err := s.leaderboard.Replace(ctx, entriesFromSkills(run.Skills)); err != nil {
		s.logger.Warn(ctx, "failed to publish archived run", logger.Error(err))
		return
	}
	s.logger.Info(ctx, "published archived run",
		logger.String("runID", run.ID.String()),
		logger.Int("players", len(run.Skills)),
	)
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started || s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	recomputer, q, cancel := s.recomputer, s.queue, s.cancel
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping skill service...")

	_ = q.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, shutdownTimeout)
	defer shutdownCancel()
	if err := recomputer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "recomputer shutdown", logger.Error(err))
	}
	cancel()

	// Recompute stays available until here so drained submissions are
	// estimated.
	s.mu.Lock()
	s.started = false
	s.stopping = false
	s.mu.Unlock()

	s.logger.Info(ctx, "skill service stopped")
}

// validate checks a submission against the configured event count.
func (s *Service) validate(sub model.Submission) error {
	if sub.PlayerID == "" {
		return fmt.Errorf("%w: missing player id", ErrInvalidSubmission)
	}
	if len(sub.Results) != s.eventCount {
		return fmt.Errorf("%w: %d results, want %d", ErrInvalidSubmission, len(sub.Results), s.eventCount)
	}
	for i, r := range sub.Results {
		if r.Played && r.Score < 0 {
			return fmt.Errorf("%w: negative score %d in event %d", ErrInvalidSubmission, r.Score, i)
		}
	}
	return nil
}

// Apply replaces the player's result row, adding the player if new.
// The leaderboard is not touched until the next Recompute.
func (s *Service) Apply(_ context.Context, sub model.Submission) error {
	if err := s.validate(sub); err != nil {
		return err
	}
	results := make([]model.Result, len(sub.Results))
	copy(results, sub.Results)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsert(sub.PlayerID, results)
	return nil
}

// upsert must be called with mu held.
func (s *Service) upsert(id string, results []model.Result) {
	if p, ok := s.roster[id]; ok {
		p.Results = results
		return
	}
	s.roster[id] = model.NewPlayer(id, results)
	s.order = append(s.order, id)
}

// Submit validates a submission and queues it for the recompute worker.
// A submission id that was already accepted yields ErrDuplicate.
func (s *Service) Submit(ctx context.Context, sub model.Submission) error {
	s.mu.RLock()
	started, q, d := s.started && !s.stopping, s.queue, s.deduper
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	err := s.validate(sub)
	if err == nil && sub.SubmissionID == "" {
		err = fmt.Errorf("%w: missing submission id", ErrInvalidSubmission)
	}
	if err != nil {
		_ = metrics.RecordSubmission(metrics.SubmissionRejected)
		return err
	}
	if d.SeenAndRecord(ctx, sub.SubmissionID) {
		_ = metrics.RecordSubmission(metrics.SubmissionDuplicate)
		return ErrDuplicate
	}
	if !q.Enqueue(ctx, sub) {
		d.Unrecord(ctx, sub.SubmissionID)
		_ = metrics.RecordSubmission(metrics.SubmissionBackpressure)
		return ErrQueueFull
	}
	_ = metrics.RecordSubmission(metrics.SubmissionAccepted)
	return nil
}

// snapshot clones the players that take part in the next estimation, in
// roster order.
func (s *Service) snapshot() []*model.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := make([]*model.Player, 0, len(s.order))
	for _, id := range s.order {
		p := s.roster[id]
		if !s.keepInactive && !p.HasScored() {
			continue
		}
		players = append(players, p.Clone())
	}
	return players
}

// Recompute estimates skills for the current roster and publishes them.
func (s *Service) Recompute(ctx context.Context) (model.Run, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return model.Run{}, ErrNotStarted
	}

	s.estimateMu.Lock()
	defer s.estimateMu.Unlock()

	players := s.snapshot()
	opts := []bradleyterry.Option{bradleyterry.WithIterations(s.iterations)}
	if s.tolerance > 0 {
		opts = append(opts, bradleyterry.WithTolerance(s.tolerance))
	}

	startedAt := time.Now()
	est := bradleyterry.GenerateSkillLevels(players, opts...)
	elapsed := time.Since(startedAt)

	run := model.Run{
		ID:        uuid.New(),
		StartedAt: startedAt,
		Duration:  elapsed,
		Players:   len(players),
		Events:    s.eventCount,
		Passes:    est.Passes,
		Converged: est.Converged,
		Skills:    make(map[string]float64, len(players)),
	}
	for _, p := range players {
		run.Skills[p.ID] = p.Skill
	}
	metrics.RecordEstimation(float64(elapsed)/float64(time.Millisecond), est.Passes, est.Converged)
	metrics.UpdateRoster(len(players), s.eventCount)

	if err := s.leaderboard.Replace(ctx, entriesFromSkills(run.Skills)); err != nil {
		return model.Run{}, fmt.Errorf("publish leaderboard: %w", err)
	}

	s.mu.Lock()
	for _, p := range players {
		if r, ok := s.roster[p.ID]; ok {
			r.Skill = p.Skill
		}
	}
	s.lastRun = &run
	s.mu.Unlock()

	if s.archive != nil {
		if err := s.archive.SaveRun(ctx, run); err != nil {
			metrics.RecordArchiveError()
			s.logger.Error(ctx, "failed to archive run",
				logger.String("runID", run.ID.String()),
				logger.Error(err),
			)
		}
	}

	s.logger.Info(ctx, "skills recomputed",
		logger.String("runID", run.ID.String()),
		logger.Int("players", run.Players),
		logger.Int("passes", run.Passes),
		logger.Bool("converged", run.Converged),
		logger.Duration("duration", run.Duration),
	)
	return run, nil
}

func entriesFromSkills(skills map[string]float64) []repository.Entry {
	entries := make([]repository.Entry, 0, len(skills))
	for id, skill := range skills {
		entries = append(entries, repository.Entry{PlayerID: id, Skill: skill})
	}
	return entries
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if err := s.requireStarted(); err != nil {
		return nil, err
	}
	entries, err := s.leaderboard.TopN(ctx, n)
	if err != nil {
		return nil, err
	}

	apiEntries := make([]types.Entry, len(entries))
	for i, entry := range entries {
		apiEntries[i] = types.Entry{
			Rank:     entry.Rank,
			PlayerID: entry.PlayerID,
			Skill:    entry.Skill,
		}
	}
	return apiEntries, nil
}

// Rank returns the rank and skill for a given player id.
func (s *Service) Rank(ctx context.Context, playerID string) (types.Entry, error) {
	if err := s.requireStarted(); err != nil {
		return types.Entry{}, err
	}
	entry, err := s.leaderboard.Rank(ctx, playerID)
	if err != nil {
		return types.Entry{}, err
	}
	return types.Entry{
		Rank:     entry.Rank,
		PlayerID: entry.PlayerID,
		Skill:    entry.Skill,
	}, nil
}

func (s *Service) requireStarted() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Players returns copies of every roster player with their latest skill.
func (s *Service) Players() []*model.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Player, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.roster[id].Clone())
	}
	return out
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":    s.started,
		"players":    len(s.order),
		"events":     s.eventCount,
		"iterations": s.iterations,
		"tolerance":  s.tolerance,
		"queueSize":  s.queueSize,
		"maxBatch":   s.maxBatch,
		"archive":    s.archive != nil,
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["ranked"] = s.leaderboard.Count(ctx)
		stats["dedupeSize"] = s.deduper.Size()
	}
	if s.lastRun != nil {
		stats["lastRun"] = map[string]interface{}{
			"id":         s.lastRun.ID.String(),
			"startedAt":  s.lastRun.StartedAt.UTC().Format(time.RFC3339Nano),
			"durationMs": float64(s.lastRun.Duration) / float64(time.Millisecond),
			"players":    s.lastRun.Players,
			"passes":     s.lastRun.Passes,
			"converged":  s.lastRun.Converged,
		}
	}
	return stats
}
