package cil

import (
	"context"

	"github.com/smilemakc/cil/internal/domain"
	domerrors "github.com/smilemakc/cil/internal/domain/errors"
)

// ClusterEngine implements C6: on every newly created level-1
// prediction_review, assign one cluster slot per cluster family; on a
// braid re-entering as a prediction_review one level up, inherit its single
// originating (cluster_type, cluster_key) as a fresh slot instead.
type ClusterEngine struct {
	store domain.StrandStore
	successThreshold float64
}

// NewClusterEngine builds a ClusterEngine. successThreshold is the realized
// return above which a review counts as the "success" outcome cluster.
func NewClusterEngine(store domain.StrandStore, successThreshold float64) *ClusterEngine {
	return &ClusterEngine{store: store, successThreshold: successThreshold}
}

// Assign computes and persists the cluster_key slots for review, idempotently: re-running produces no duplicate slots (testable
// property #9, enforced by Strand.AddClusterSlot). review is either a
// level-1 prediction_review carrying a PredictionReviewContent payload, or a
// braid re-entering as a prediction_review one level up, carrying a
// LearningBraidContent payload instead (see LearningLoop.buildBraid) — each
// shape is assigned against its own family of cluster keys.
func (c *ClusterEngine) Assign(ctx context.Context, review *domain.Strand) error {
	if review.Kind() != domain.KindPredictionReview {
		return domerrors.Newf(domerrors.CodeValidationFailure, "cluster assignment requires a prediction_review, got %s", review.Kind())
	}

	var assignments []clusterAssignment
	if review.BraidLevel() > 1 {
		var payload domain.LearningBraidContent
		if err := review.Content().Decode(&payload); err != nil {
			return domerrors.Wrap(domerrors.CodeValidationFailure, "decode braid content", err)
		}
		assignments = c.deriveBraidAssignments(payload)
	} else {
		var payload domain.PredictionReviewContent
		if err := review.Content().Decode(&payload); err != nil {
			return domerrors.Wrap(domerrors.CodeValidationFailure, "decode review content", err)
		}
		assignments = c.deriveAssignments(review, payload)
	}

	level := review.BraidLevel()
	for _, assignment := range assignments {
		slot := domain.ClusterSlot{ClusterType: assignment.clusterType, ClusterKey: assignment.clusterKey, BraidLevel: level}
		if err := c.store.AddClusterSlot(ctx, review.ID(), slot); err != nil {
			return err
		}
	}
	return nil
}

type clusterAssignment struct {
	clusterType domain.ClusterType
	clusterKey string
}

func (c *ClusterEngine) deriveAssignments(review *domain.Strand, payload domain.PredictionReviewContent) []clusterAssignment {
	outcomeKey := "failure"
	if payload.Outcome.RealizedReturn >= c.successThreshold {
		outcomeKey = "success"
	}

	groupType := dominantGroupType(payload.GroupCode)

	return []clusterAssignment{
		{domain.ClusterPatternTimeframe, payload.GroupSignature + "|" + review.Symbol()},
		{domain.ClusterAsset, review.Symbol()},
		{domain.ClusterTimeframe, review.Timeframe()},
		{domain.ClusterOutcome, outcomeKey},
		{domain.ClusterPattern, groupType},
		{domain.ClusterGroupType, groupType},
		{domain.ClusterMethod, payload.Method.String()},
	}
}

// deriveBraidAssignments inherits the single (cluster_type, cluster_key) the
// braid was synthesized from as its one fresh unconsumed slot at the new
// level, exactly as decided for the parent cluster: the family the braid
// re-enters is the family it came from, not a re-derivation across all
// families (which, for an asset-family braid, would collide with this same
// slot and trip the uniqueness check).
func (c *ClusterEngine) deriveBraidAssignments(payload domain.LearningBraidContent) []clusterAssignment {
	return []clusterAssignment{{payload.ClusterType, payload.ClusterKey}}
}

// dominantGroupType reports the group shape (GroupCode) the review's source
// prediction was assembled under, e.g. "single_single". group_signature
// itself is a sha256 digest and carries no recoverable plaintext, so the
// shape travels on the strand as its own field instead.
func dominantGroupType(groupCode string) string {
	if groupCode == "" {
		return "unknown"
	}
	return groupCode
}
