// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and MCCSKILL_* env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ResultsPath points at the results file loaded on start. Empty starts
	// with an empty roster.
	ResultsPath string `koanf:"results_path"`

	// EventCount is the number of events every result row must carry.
	EventCount int `koanf:"event_count"`

	// KeepInactive keeps players who never scored above zero.
	KeepInactive bool `koanf:"keep_inactive"`

	// Iterations is the number of estimator refinement passes.
	Iterations int `koanf:"iterations"`

	// Tolerance enables early exit when positive. Zero runs every pass.
	Tolerance float64 `koanf:"tolerance"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`

	// MaxBatch caps submissions applied per recompute.
	MaxBatch int `koanf:"max_batch"`

	// DedupeSize is how many submission ids are remembered for idempotency.
	// Zero or negative remembers every id.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// PostgresDSN enables the run archive when set.
	PostgresDSN string `koanf:"postgres_dsn"`

	// AutoMigrate applies the archive schema on start.
	AutoMigrate bool `koanf:"auto_migrate"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		EventCount:          31,
		Iterations:          1000,
		QueueSize:           1024,
		MaxBatch:            256,
		DedupeSize:          50000,
		MaxLeaderboardLimit: 100,
	}
}
