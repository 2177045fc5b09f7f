// Package rank prints a ranking table from estimated players.
package rank

import (
	"bufio"
	"io"
	"sort"

	"github.com/okian/mccskill/internal/domain/model"
)

// Sorted returns players ordered by skill, highest first. Equal skills keep
// their input order.
func Sorted(players []*model.Player) []*model.Player {
	out := make([]*model.Player, len(players))
	copy(out, players)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Skill > out[j].Skill })
	return out
}

// Print writes one "id, skill" line per player in ranking order. A positive
// top limits the output to the first top players.
func Print(w io.Writer, players []*model.Player, top int) error {
	sorted := Sorted(players)
	if top > 0 && top < len(sorted) {
		sorted = sorted[:top]
	}
	bw := bufio.NewWriter(w)
	for _, p := range sorted {
		if _, err := bw.WriteString(p.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
