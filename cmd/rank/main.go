package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/okian/mccskill/internal/adapters/resultsfile"
	"github.com/okian/mccskill/internal/domain/bradleyterry"
	"github.com/okian/mccskill/internal/rank"
	"github.com/okian/mccskill/pkg/logger"
)

func main() {
	var (
		resultsPath  = flag.String("results", "results.txt", "Results file to rank")
		events       = flag.Int("events", resultsfile.DefaultEventCount, "Results per player line")
		iterations   = flag.Int("iterations", bradleyterry.DefaultIterations, "Maximum estimator passes")
		tolerance    = flag.Float64("tolerance", 0, "Stop once no skill moves more than this; 0 runs every pass")
		keepInactive = flag.Bool("keep-inactive", false, "Rank players who never scored")
		top          = flag.Int("top", 0, "Print only the first N players; 0 prints all")
		verbose      = flag.Bool("verbose", false, "Log estimation progress to stderr")
	)
	flag.Parse()

	if err := run(*resultsPath, *events, *iterations, *tolerance, *keepInactive, *top, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "rank:", err)
		os.Exit(1)
	}
}

func run(path string, events, iterations int, tolerance float64, keepInactive bool, top int, verbose bool) error {
	ctx := context.Background()
	if err := logger.InitWriter(os.Stderr, "text"); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if !verbose {
		_ = logger.SetLevelString("warn")
	}
	log := logger.Get()

	readerOpts := []resultsfile.Option{resultsfile.WithEventCount(events)}
	if keepInactive {
		readerOpts = append(readerOpts, resultsfile.WithKeepInactive())
	}
	players, err := resultsfile.NewReader(readerOpts...).Load(ctx, path)
	if err != nil {
		return err
	}

	est := bradleyterry.GenerateSkillLevels(players,
		bradleyterry.WithIterations(iterations),
		bradleyterry.WithTolerance(tolerance),
	)
	log.Info(ctx, "estimation finished",
		logger.Int("players", len(players)),
		logger.Int("passes", est.Passes),
		logger.Bool("converged", est.Converged),
	)

	return rank.Print(os.Stdout, players, top)
}
