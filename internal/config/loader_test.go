package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/mccskill/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.EventCount, convey.ShouldEqual, 31)
				convey.So(cfg.Iterations, convey.ShouldEqual, 1000)
				convey.So(cfg.KeepInactive, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("MCCSKILL_ADDR", ":8080")
			_ = os.Setenv("MCCSKILL_RESULTS_PATH", "/data/mccResults.txt")
			_ = os.Setenv("MCCSKILL_EVENT_COUNT", "12")
			_ = os.Setenv("MCCSKILL_ITERATIONS", "250")
			_ = os.Setenv("MCCSKILL_TOLERANCE", "1e-9")
			_ = os.Setenv("MCCSKILL_KEEP_INACTIVE", "true")
			_ = os.Setenv("MCCSKILL_POSTGRES_DSN", "postgres://localhost/mcc")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ResultsPath, convey.ShouldEqual, "/data/mccResults.txt")
				convey.So(cfg.EventCount, convey.ShouldEqual, 12)
				convey.So(cfg.Iterations, convey.ShouldEqual, 250)
				convey.So(cfg.Tolerance, convey.ShouldEqual, 1e-9)
				convey.So(cfg.KeepInactive, convey.ShouldBeTrue)
				convey.So(cfg.PostgresDSN, convey.ShouldEqual, "postgres://localhost/mcc")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
log_format: json
event_count: 20
iterations: 500
queue_size: 64
max_batch: 8
dedupe_size: 10
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MCCSKILL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.EventCount, convey.ShouldEqual, 20)
				convey.So(cfg.Iterations, convey.ShouldEqual, 500)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.MaxBatch, convey.ShouldEqual, 8)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 10)
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100) // From defaults
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
iterations: 500
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MCCSKILL_CONFIG", tmpFile)
			_ = os.Setenv("MCCSKILL_ITERATIONS", "2000")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")    // From file
				convey.So(cfg.Iterations, convey.ShouldEqual, 2000) // Overridden by env
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MCCSKILL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("MCCSKILL_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("MCCSKILL_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with zero iterations", func() {
			_ = os.Setenv("MCCSKILL_ITERATIONS", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("MCCSKILL_EVENT_COUNT", "thirty-one")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"MCCSKILL_CONFIG",
		"MCCSKILL_ADDR",
		"MCCSKILL_RESULTS_PATH",
		"MCCSKILL_EVENT_COUNT",
		"MCCSKILL_ITERATIONS",
		"MCCSKILL_TOLERANCE",
		"MCCSKILL_KEEP_INACTIVE",
		"MCCSKILL_POSTGRES_DSN",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "mccskill-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
