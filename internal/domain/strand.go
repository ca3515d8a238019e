package domain

import (
	"time"

	"github.com/google/uuid"

	domerrors "github.com/smilemakc/cil/internal/domain/errors"
)

// Strand is the uniform, append-only record that every CIL component reads
// and writes. It is immutable after creation except for the fields
// enumerated in invariant 1: ClusterKey[i].Consumed, TrackingStatus,
// ResonanceState, Telemetry, Scores, and UpdatedAt. All other fields are set
// once at construction and exposed only through getters.
type Strand struct {
	id uuid.UUID
	createdAt time.Time
	updatedAt time.Time
	kind Kind
	braidLevel int
	symbol string
	timeframe string
	sessionBucket string
	regime string
	content Content
	tags []string
	clusterKey ClusterSlots
	lesson string
	lineage Lineage
	resonanceState ResonanceState
	telemetry Telemetry
	scores Scores
	trackingStatus TrackingStatus
	featureVersion int
}

// Params bundles the immutable fields supplied at construction time. ID,
// CreatedAt and UpdatedAt are assigned by the constructor (or by
// Reconstruct, for rehydration from storage) rather than the caller.
type Params struct {
	Kind Kind
	BraidLevel int
	Symbol string
	Timeframe string
	SessionBucket string
	Regime string
	Content Content
	Tags []string
	ClusterKey ClusterSlots
	Lesson string
	Lineage Lineage
	ResonanceState ResonanceState
	Telemetry Telemetry
	Scores Scores
	TrackingStatus TrackingStatus
	FeatureVersion int
}

// New validates params against the invariants that are checkable
// at construction time (braid-level/lineage consistency, cluster-key
// uniqueness) and returns a fresh Strand stamped with a new id and
// created_at/updated_at set to now.
func New(params Params, now time.Time) (*Strand, error) {
	if !params.Kind.IsValid() {
		return nil, domerrors.Newf(domerrors.CodeValidationFailure, "unknown strand kind %q", params.Kind)
	}
	if params.BraidLevel < 1 {
		return nil, domerrors.New(domerrors.CodeValidationFailure, "braid_level must be >= 1")
	}
	if params.BraidLevel > 1 && len(params.Lineage.ParentIDs) == 0 {
		return nil, domerrors.Newf(domerrors.CodeValidationFailure,
			"braid_level %d requires non-empty lineage.parent_ids", params.BraidLevel)
	}
	if err := validateClusterKeyUniqueness(params.ClusterKey); err != nil {
		return nil, err
	}
	if params.TrackingStatus == "" {
		params.TrackingStatus = StatusActive
	}
	if params.FeatureVersion == 0 {
		params.FeatureVersion = 1
	}

	s := &Strand{
		id: uuid.New(),
		createdAt: now,
		updatedAt: now,
		kind: params.Kind,
		braidLevel: params.BraidLevel,
		symbol: params.Symbol,
		timeframe: params.Timeframe,
		sessionBucket: params.SessionBucket,
		regime: params.Regime,
		content: params.Content,
		tags: append([]string(nil), params.Tags...),
		clusterKey: params.ClusterKey.Clone(),
		lesson: params.Lesson,
		lineage: params.Lineage.Clone(),
		resonanceState: params.ResonanceState,
		telemetry: params.Telemetry,
		scores: params.Scores,
		trackingStatus: params.TrackingStatus,
		featureVersion: params.FeatureVersion,
	}
	return s, nil
}

// Reconstruct rehydrates a Strand from a storage row without re-running
// construction-time validation, trusting that the stored row already
// satisfied it at append time. id/createdAt/updatedAt come from the row.
func Reconstruct(id uuid.UUID, createdAt, updatedAt time.Time, params Params) *Strand {
	return &Strand{
		id: id,
		createdAt: createdAt,
		updatedAt: updatedAt,
		kind: params.Kind,
		braidLevel: params.BraidLevel,
		symbol: params.Symbol,
		timeframe: params.Timeframe,
		sessionBucket: params.SessionBucket,
		regime: params.Regime,
		content: params.Content,
		tags: append([]string(nil), params.Tags...),
		clusterKey: params.ClusterKey.Clone(),
		lesson: params.Lesson,
		lineage: params.Lineage.Clone(),
		resonanceState: params.ResonanceState,
		telemetry: params.Telemetry,
		scores: params.Scores,
		trackingStatus: params.TrackingStatus,
		featureVersion: params.FeatureVersion,
	}
}

func validateClusterKeyUniqueness(slots ClusterSlots) error {
	seen := make(map[ClusterSlotKey]struct{}, len(slots))
	for _, slot := range slots {
		k := slot.Key()
		if _, dup := seen[k]; dup {
			return domerrors.Newf(domerrors.CodeValidationFailure,
				"duplicate cluster_key slot (%s, %s, level %d)", k.ClusterType, k.ClusterKey, k.BraidLevel)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// --- read accessors -------------------------------------------------------

func (s *Strand) ID() uuid.UUID { return s.id }
func (s *Strand) CreatedAt() time.Time { return s.createdAt }
func (s *Strand) UpdatedAt() time.Time { return s.updatedAt }
func (s *Strand) Kind() Kind { return s.kind }
func (s *Strand) BraidLevel() int { return s.braidLevel }
func (s *Strand) Symbol() string { return s.symbol }
func (s *Strand) Timeframe() string { return s.timeframe }
func (s *Strand) SessionBucket() string { return s.sessionBucket }
func (s *Strand) Regime() string { return s.regime }
func (s *Strand) Content() Content { return s.content }
func (s *Strand) Lesson() string { return s.lesson }
func (s *Strand) Lineage() Lineage { return s.lineage }
func (s *Strand) ResonanceState() ResonanceState { return s.resonanceState }
func (s *Strand) Telemetry() Telemetry { return s.telemetry }
func (s *Strand) Scores() Scores { return s.scores }
func (s *Strand) TrackingStatus() TrackingStatus { return s.trackingStatus }
func (s *Strand) FeatureVersion() int { return s.featureVersion }

func (s *Strand) Tags() []string {
	return append([]string(nil), s.tags...)
}

func (s *Strand) HasTag(tag string) bool {
	for _, t := range s.tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (s *Strand) ClusterKey() ClusterSlots {
	return s.clusterKey.Clone()
}

// --- mutations (invariant 1: only these fields may ever change) ----------

// ConsumeSlot atomically flips the matching cluster slot's Consumed flag to
// true, mirroring StrandStore.UpdateConsumed. Returns NotFound if
// no slot matches k, matching the store contract so in-memory and Postgres
// implementations behave identically.
func (s *Strand) ConsumeSlot(k ClusterSlotKey, now time.Time) error {
	for i := range s.clusterKey {
		if s.clusterKey[i].Key() == k {
			s.clusterKey[i].Consumed = true
			s.updatedAt = now
			return nil
		}
	}
	return domerrors.Newf(domerrors.CodeNotFound, "no cluster_key slot (%s, %s, level %d) on strand %s",
		k.ClusterType, k.ClusterKey, k.BraidLevel, s.id)
}

// AddClusterSlot appends a new, unconsumed cluster slot, unless
// an identical (cluster_type, cluster_key, braid_level) slot already exists,
// in which case it is a no-op so repeated runs of C6 stay idempotent.
func (s *Strand) AddClusterSlot(slot ClusterSlot, now time.Time) {
	if s.clusterKey.HasKey(slot.Key()) {
		return
	}
	s.clusterKey = append(s.clusterKey, slot)
	s.updatedAt = now
}

// validTransitions encodes the monotonic tracking-status state machine from
// active may move to any terminal state; terminal states never
// move again.
var validTransitions = map[TrackingStatus]map[TrackingStatus]bool{
	StatusActive: {
		StatusCompleted: true,
		StatusExpired: true,
		StatusCancelled: true,
	},
}

// TransitionStatus advances TrackingStatus, rejecting any move that isn't
// active->terminal (idempotent if status already equals target).
func (s *Strand) TransitionStatus(target TrackingStatus, now time.Time) error {
	if s.trackingStatus == target {
		return nil
	}
	if s.trackingStatus.IsTerminal() {
		return domerrors.Newf(domerrors.CodeImmutableField,
			"strand %s tracking_status %q is terminal, cannot move to %q", s.id, s.trackingStatus, target)
	}
	if !validTransitions[s.trackingStatus][target] {
		return domerrors.Newf(domerrors.CodeImmutableField,
			"strand %s invalid tracking_status transition %q -> %q", s.id, s.trackingStatus, target)
	}
	s.trackingStatus = target
	s.updatedAt = now
	return nil
}

// UpdateResonance applies a clamped resonance update, reporting whether either component was out of bounds so the caller can
// raise BoundExceeded and emit the corresponding flag.
func (s *Strand) UpdateResonance(next ResonanceState, bounds ResonanceBounds, now time.Time) bool {
	clamped, exceeded := bounds.Clamp(next)
	clamped.UpdatedAt = now
	s.resonanceState = clamped
	s.updatedAt = now
	return exceeded
}

// UpdateTelemetry replaces the running telemetry estimates.
func (s *Strand) UpdateTelemetry(t Telemetry, now time.Time) {
	s.telemetry = t
	s.updatedAt = now
}

// UpdateScores replaces the fitness/selection scores, computing
// Selection from the components if the caller left it unset.
func (s *Strand) UpdateScores(sc Scores, now time.Time) {
	if sc.Selection == 0 {
		sc.Selection = sc.ComputeSelection()
	}
	s.scores = sc
	s.updatedAt = now
}
