package cil

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/cil/internal/domain"
	domerrors "github.com/smilemakc/cil/internal/domain/errors"
)

// DoctrineStatus classifies whether a braid is cleared for promotion into a
// conditional_plan.
type DoctrineStatus string

const (
	DoctrineClear DoctrineStatus = "clear"
	DoctrineContraindicated DoctrineStatus = "contraindicated"
)

// PlanComposerConfig carries the promotion thresholds.
type PlanComposerConfig struct {
	MinMemberCount int
	MinAvgSelection float64
}

// PlanComposer implements C10: promotes a qualifying braided prediction_review
// into an immutable conditional_plan strand.
type PlanComposer struct {
	store domain.StrandStore
	cfg PlanComposerConfig
}

// NewPlanComposer builds a PlanComposer gated by cfg.
func NewPlanComposer(store domain.StrandStore, cfg PlanComposerConfig) *PlanComposer {
	return &PlanComposer{store: store, cfg: cfg}
}

// Qualifies reports whether braid's aggregates clear the promotion bar:
// `member_count >= N_plan, avg_selection >= S_plan, doctrine_status !=
// contraindicated`.
func (c *PlanComposer) Qualifies(braid *domain.Strand, payload domain.LearningBraidContent, avgSelection float64, doctrine DoctrineStatus) bool {
	if !isBraid(braid) {
		return false
	}
	if payload.MemberCount < c.cfg.MinMemberCount {
		return false
	}
	if avgSelection < c.cfg.MinAvgSelection {
		return false
	}
	return doctrine != DoctrineContraindicated
}

// Compose extracts plan fields from a qualifying braid and appends a
// conditional_plan strand whose provenance and lineage name the braid. The
// contributing reviews are not listed on the plan; they are reachable only
// through the braid's own lineage. Plans are immutable: a later revision is
// a brand-new strand whose provenance references the superseded plan's braid.
func (c *PlanComposer) Compose(ctx context.Context, braid *domain.Strand, payload domain.LearningBraidContent, expectedRR float64, scope domain.PlanScope, risk domain.RiskProfile, activation, invalidation, entry, exit []domain.ConditionCriteria, now time.Time) (*domain.Strand, error) {
	if !isBraid(braid) {
		return nil, domerrors.Newf(domerrors.CodeValidationFailure, "plan composition requires a braided prediction_review (braid_level > 1), got kind=%s braid_level=%d", braid.Kind(), braid.BraidLevel())
	}

	content, err := domain.EncodeContent(domain.ConditionalPlanContent{
			Activation: activation,
			Invalidation: invalidation,
			EntryCriteria: entry,
			ExitCriteria: exit,
			Risk: risk,
			Scope: scope,
			Provenance: domain.PlanProvenance{BraidIDs: []uuid.UUID{braid.ID()}},
			ExpectedRR: expectedRR,
	})
	if err != nil {
		return nil, domerrors.Wrap(domerrors.CodeValidationFailure, "encode conditional_plan content", err)
	}

	plan, err := domain.New(domain.Params{
			Kind: domain.KindConditionalPlan,
			BraidLevel: braid.BraidLevel(),
			Symbol: braid.Symbol(),
			Timeframe: braid.Timeframe(),
			Content: content,
			Lesson: braid.Lesson(),
			Lineage: domain.Lineage{ParentIDs: []uuid.UUID{braid.ID()}, MutationNote: "promoted from braid " + braid.ID().String()},
			Tags: []string{"cil:conditional_plan", "cluster:" + string(payload.ClusterType)},
		}, now)
	if err != nil {
		return nil, err
	}
	if _, err := c.store.Append(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// isBraid reports whether strand is a synthesized braid rather than a
// level-1 prediction_review: both share Kind=prediction_review, so only
// braid_level distinguishes them.
func isBraid(strand *domain.Strand) bool {
	return strand.Kind() == domain.KindPredictionReview && strand.BraidLevel() > 1
}
