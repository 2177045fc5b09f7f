// Package repository defines the skill leaderboard store interface and errors.
package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"

	"github.com/okian/mccskill/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: skill DESC, then playerID ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the board from
// best to worst.

// skillScale controls fixed-point scaling from float64.
const skillScale = 1_000_000_000_000 // 12 decimal places

const defaultTopCacheSize = 100

type skillFP int64

// toFixedPoint maps a skill in [0, 1] onto an int64. NaN maps to zero and
// out-of-range values are clamped.
func toFixedPoint(x float64) skillFP {
	if math.IsNaN(x) {
		return 0
	}
	scaled := math.Round(x * skillScale)
	if scaled > float64(math.MaxInt64) {
		return skillFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return skillFP(math.MinInt64)
	}
	return skillFP(scaled)
}

func toFloat(x skillFP) float64 {
	return float64(x) / skillScale
}

// treap node
type node struct {
	id    string
	skill skillFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aSkill, aID) should appear before (bSkill, bID).
func less(aSkill skillFP, aID string, bSkill skillFP, bID string) bool {
	if aSkill != bSkill {
		return aSkill > bSkill
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// idPriority derives a stable heap priority from the player id so the same
// roster always produces the same tree shape.
func idPriority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func insert(n *node, id string, skill skillFP) *node {
	if n == nil {
		return &node{id: id, skill: skill, prio: idPriority(id), size: 1}
	}
	if less(skill, id, n.skill, n.id) {
		n.left = insert(n.left, id, skill)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, skill)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// collect appends up to limit entries in rank order. limit < 0 means all.
func collect(n *node, limit int, out *[]Entry) {
	if n == nil || (limit >= 0 && len(*out) >= limit) {
		return
	}
	collect(n.left, limit, out)
	if limit < 0 || len(*out) < limit {
		*out = append(*out, Entry{PlayerID: n.id, Skill: toFloat(n.skill)})
	}
	collect(n.right, limit, out)
}

// board is an immutable, fully ranked leaderboard.
type board struct {
	root     *node
	byID     map[string]Entry
	topCache []Entry
}

// TreapStore publishes each board through an atomic pointer; readers never
// take a lock.
type TreapStore struct {
	mu           sync.Mutex // serializes writers
	current      atomic.Pointer[board]
	topCacheSize int
}

// NewTreapStore constructs an empty store with configuration options.
func NewTreapStore(_ context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{topCacheSize: defaultTopCacheSize}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&board{byID: map[string]Entry{}})
	return s
}

// Replace implements Store.Replace in O(n log n).
func (s *TreapStore) Replace(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var root *node
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.PlayerID]; dup {
			metrics.RecordErrorByComponent("repository", "duplicate_id")
			return fmt.Errorf("%w: %s", ErrDuplicateID, e.PlayerID)
		}
		seen[e.PlayerID] = struct{}{}
		root = insert(root, e.PlayerID, toFixedPoint(e.Skill))
	}

	ordered := make([]Entry, 0, len(entries))
	collect(root, -1, &ordered)
	assignRanksWithTies(ordered)

	byID := make(map[string]Entry, len(ordered))
	for _, e := range ordered {
		byID[e.PlayerID] = e
	}
	top := ordered
	if len(top) > s.topCacheSize {
		top = top[:s.topCacheSize]
	}

	s.current.Store(&board{root: root, byID: byID, topCache: top})
	return nil
}

// Rank returns the current rank and skill for a player in O(1).
func (s *TreapStore) Rank(_ context.Context, playerID string) (Entry, error) {
	b := s.current.Load()
	e, ok := b.byID[playerID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// TopN returns the top N entries ordered by skill desc.
func (s *TreapStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	b := s.current.Load()
	if n <= len(b.topCache) || len(b.topCache) == len(b.byID) {
		n = min(n, len(b.topCache))
		out := make([]Entry, n)
		copy(out, b.topCache[:n])
		return out, nil
	}

	out := make([]Entry, 0, n)
	collect(b.root, n, &out)
	for i := range out {
		out[i].Rank = b.byID[out[i].PlayerID].Rank
	}
	return out, nil
}

// Count returns the number of players on the board.
func (s *TreapStore) Count(_ context.Context) int {
	return len(s.current.Load().byID)
}

// assignRanksWithTies assigns dense ranks: equal skills share a rank and
// the next distinct skill takes the next integer.
func assignRanksWithTies(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Skill != entries[i-1].Skill {
			rank++
		}
		entries[i].Rank = rank
	}
}
