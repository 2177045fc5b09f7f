// Package resultsfile reads and writes the plain-text results format:
//
//	username,c1,c2,...,cN
//
// one line per player, where each ci is the score in event i and -1 marks an
// event the player did not take part in.
package resultsfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/mccskill/internal/domain/model"
)

const (
	separator      = ","
	absentSentinel = -1
)

// Reader parses results files.
type Reader struct {
	eventCount   int
	keepInactive bool
}

// NewReader creates a reader with configuration options.
func NewReader(opts ...Option) *Reader {
	r := &Reader{eventCount: DefaultEventCount}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EventCount returns the number of results expected per line.
func (r *Reader) EventCount() int { return r.eventCount }

// Parse reads players from src in file order. Players who never scored above
// zero are skipped unless WithKeepInactive was given.
func (r *Reader) Parse(src io.Reader) ([]*model.Player, error) {
	var players []*model.Player
	seen := make(map[string]int)

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		p, err := r.parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if first, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("line %d: %w: %q first seen on line %d", lineNo, ErrDuplicatePlayer, p.ID, first)
		}
		seen[p.ID] = lineNo

		if !r.keepInactive && !p.HasScored() {
			continue
		}
		players = append(players, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return players, nil
}

func (r *Reader) parseLine(line string) (*model.Player, error) {
	fields := strings.Split(line, separator)
	if got := len(fields) - 1; got != r.eventCount {
		return nil, fmt.Errorf("%w: want %d results, got %d", ErrMalformedLine, r.eventCount, got)
	}

	id := strings.TrimSpace(fields[0])
	if id == "" {
		return nil, fmt.Errorf("%w: empty username", ErrMalformedLine)
	}

	results := make([]model.Result, r.eventCount)
	for i, f := range fields[1:] {
		res, err := ParseResult(f)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %w", ErrMalformedLine, i+1, err)
		}
		results[i] = res
	}
	return model.NewPlayer(id, results), nil
}

// ParseResult converts one field of the format into a Result.
func ParseResult(field string) (model.Result, error) {
	v, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return model.Result{}, err
	}
	switch {
	case v == absentSentinel:
		return model.Absent(), nil
	case v < 0:
		return model.Result{}, fmt.Errorf("negative score %d", v)
	default:
		return model.Scored(v), nil
	}
}

// Load opens path and parses it.
func (r *Reader) Load(_ context.Context, path string) ([]*model.Player, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer func() { _ = f.Close() }()
	return r.Parse(f)
}

// Format writes players back in the results format.
func Format(w io.Writer, players []*model.Player) error {
	bw := bufio.NewWriter(w)
	for _, p := range players {
		if _, err := bw.WriteString(p.ID); err != nil {
			return err
		}
		for _, res := range p.Results {
			if _, err := bw.WriteString(separator + res.String()); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
