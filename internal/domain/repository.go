package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MutablePatch carries the subset of a Strand's fields that are legal to
// update after creation. Zero-value (nil/zero) fields
// are left untouched; StrandStore.UpdateMutableFields fails ImmutableField
// if asked to change anything else.
type MutablePatch struct {
	TrackingStatus *TrackingStatus
	ResonanceState *ResonanceState
	Telemetry *Telemetry
	Scores *Scores
}

// QueryFilter expresses the conjunctions StrandStore.Query must support:
// kind, scope keys, a time window, tag membership, and
// cluster_key containment. Zero-value fields are unconstrained.
type QueryFilter struct {
	Kind Kind
	Symbol string
	Timeframe string
	BraidLevel int
	CreatedAfter time.Time
	CreatedBefore time.Time
	Tags []string
	ClusterType ClusterType
	ClusterKey string
	UnconsumedAt *int // braid level to require an unconsumed slot at, if set
	Limit int
}

// StrandStore is the append-only log port every CIL component reads and
// writes through. Implementations must provide
// single-writer-per-id linearizability and durability before ack.
type StrandStore interface {
	// Append validates invariants and persists a new strand, returning its
	// assigned id. Fails ValidationFailure if the strand's invariants do not
	// hold.
	Append(ctx context.Context, s *Strand) (uuid.UUID, error)

	// Get retrieves a strand by id. Fails NotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (*Strand, error)

	// Query returns strands matching filter, ordered created_at desc unless
	// the implementation documents otherwise.
	Query(ctx context.Context, filter QueryFilter) ([]*Strand, error)

	// UpdateConsumed atomically flips the matching cluster slot's Consumed
	// flag to true. Fails NotFound if no such slot exists on the strand.
	UpdateConsumed(ctx context.Context, id uuid.UUID, key ClusterSlotKey) error

	// AddClusterSlot appends a new, unconsumed cluster slot to the strand,
	// idempotently: a slot already present at the same
	// (cluster_type, cluster_key, braid_level) is left untouched. This is the
	// one first-class-field exception to invariant 1: cluster_key gains
	// entries over a strand's lifetime even though existing entries are
	// immutable apart from their Consumed flag.
	AddClusterSlot(ctx context.Context, id uuid.UUID, slot ClusterSlot) error

	// UpdateMutableFields applies patch to the strand, restricted to the
	// mutable subset. Fails ImmutableField for any other attempted change.
	UpdateMutableFields(ctx context.Context, id uuid.UUID, patch MutablePatch) error
}
