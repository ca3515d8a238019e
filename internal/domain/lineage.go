package domain

import "github.com/google/uuid"

// Lineage records where a strand came from: the parent strands it was derived
// from (if any) and, for mutations of a first-class field within the mutable
// subset, a short note on what changed and why.
type Lineage struct {
	ParentIDs []uuid.UUID `json:"parent_ids,omitempty"`
	MutationNote string `json:"mutation_note,omitempty"`
}

// IsDerived reports whether the strand has at least one parent, i.e. it was
// produced by braiding rather than ingested directly.
func (l Lineage) IsDerived() bool {
	return len(l.ParentIDs) > 0
}

// Clone returns a deep copy safe to attach to a new strand.
func (l Lineage) Clone() Lineage {
	out := Lineage{MutationNote: l.MutationNote}
	if l.ParentIDs != nil {
		out.ParentIDs = make([]uuid.UUID, len(l.ParentIDs))
		copy(out.ParentIDs, l.ParentIDs)
	}
	return out
}
