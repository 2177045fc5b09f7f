package loadtest

import "os"

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	os.Stdout.WriteString(`mccskill season load test
=========================

Generates a season of events from hidden player strengths, submits every
player's result row, forces a recompute and checks the leaderboard.

Usage:
  go run ./cmd/load-results [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -players int
        Number of simulated players (default 200)
  -events int
        Results per player; must match the service's event_count (default 31)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -top int
        Number of leaderboard entries to fetch (default 50)
  -seed uint
        Season generator seed (default 1)
  -output string
        Write the generated season as a results file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/load-results -players 1000 -workers 16
  go run ./cmd/load-results -output season.txt && go run ./cmd/rank -results season.txt
`)
}
