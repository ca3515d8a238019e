package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smilemakc/cil/internal/domain"
)

// LineageEntry is one strand in a reconstructed lineage chain, root first.
type LineageEntry struct {
	StrandID uuid.UUID `json:"strand_id"`
	Kind domain.Kind `json:"kind"`
	BraidLevel int `json:"braid_level"`
	Lesson string `json:"lesson"`
	Scores domain.Scores `json:"scores"`
	CreatedAt time.Time `json:"created_at"`
}

// LineageTrace is a depth-first reconstruction of a braid strand's ancestry,
// walking Lineage().ParentIDs back through the store until it reaches strands
// with no parents (braid level 1). Used to explain how a higher-braid-level
// strand was synthesized from lower-level observations.
type LineageTrace struct {
	RootID uuid.UUID `json:"root_id"`
	Entries []*LineageEntry `json:"entries"`
}

// BuildLineageTrace walks a strand's ancestry via store, depth-first,
// stopping at strands with no parents or at ancestors more than maxDepth
// generations above the starting strand (0 means unbounded).
func BuildLineageTrace(ctx context.Context, store domain.StrandStore, strandID uuid.UUID, maxDepth int) (*LineageTrace, error) {
	trace := &LineageTrace{RootID: strandID}
	visited := make(map[uuid.UUID]bool)

	var walk func(id uuid.UUID, depth int) error
	walk = func(id uuid.UUID, depth int) error {
		if visited[id] {
			return nil
		}
		if maxDepth > 0 && depth > maxDepth {
			return nil
		}
		visited[id] = true

		s, err := store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("lineage: fetch %s: %w", id, err)
		}
		trace.Entries = append(trace.Entries, &LineageEntry{
				StrandID: s.ID(), Kind: s.Kind(), BraidLevel: s.BraidLevel(),
				Lesson: s.Lesson(), Scores: s.Scores(), CreatedAt: s.CreatedAt(),
		})

		for _, parentID := range s.Lineage().ParentIDs {
			if err := walk(parentID, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(strandID, 0); err != nil {
		return nil, err
	}
	return trace, nil
}

// String renders the trace as a human-readable ancestry listing.
func (t *LineageTrace) String() string {
	out := fmt.Sprintf("Lineage trace for %s (%d strands)\n", t.RootID, len(t.Entries))
	for i, e := range t.Entries {
		out += fmt.Sprintf("%d. [braid=%d] %s lesson=%q selection=%.3f @ %s\n",
			i+1, e.BraidLevel, e.Kind, e.Lesson, e.Scores.Selection, e.CreatedAt.Format(time.RFC3339))
	}
	return out
}
