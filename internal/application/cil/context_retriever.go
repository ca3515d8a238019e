package cil

import (
	"context"
	"math"

	"github.com/smilemakc/cil/internal/domain"
)

// ExactMatch is one exact historical context hit for a group.
type ExactMatch struct {
	Review *domain.Strand
}

// SimilarMatch is one similar historical context hit, scored against the
// query group.
type SimilarMatch struct {
	Review *domain.Strand
	Similarity float64
	Differences []string
}

// Context is the full historical-context bundle C3 returns.
type Context struct {
	Exact []ExactMatch
	Similar []SimilarMatch
	ExactCount int
	SimilarCount int
	ConfidenceLevel float64
}

// ContextRetriever implements C3: fetch exact and similar historical
// prediction_review context for a group.
type ContextRetriever struct {
	store domain.StrandStore
	similarityThreshold float64
	saturationN int
}

// NewContextRetriever builds a ContextRetriever backed by store, with the
// configured similarity threshold (default 0.7) and saturation count
// (default 10) .
func NewContextRetriever(store domain.StrandStore, similarityThreshold float64, saturationN int) *ContextRetriever {
	return &ContextRetriever{store: store, similarityThreshold: similarityThreshold, saturationN: saturationN}
}

// Retrieve fetches context for group g on asset, steps 1-3.
func (r *ContextRetriever) Retrieve(ctx context.Context, g Group) (Context, error) {
	exactRows, err := r.store.Query(ctx, domain.QueryFilter{
			Kind: domain.KindPredictionReview,
			Symbol: g.Asset,
	})
	if err != nil {
		return Context{}, err
	}

	var exact []ExactMatch
	var candidates []*domain.Strand
	queryTypes := distinctPatternTypes(g.Constituents)

	for _, review := range exactRows {
		sig, _ := reviewGroupSignature(review)
		if sig == g.Signature {
			exact = append(exact, ExactMatch{Review: review})
			continue
		}
		if overlapsAny(sig, queryTypes) {
			candidates = append(candidates, review)
		}
	}

	var similar []SimilarMatch
	for _, c := range candidates {
		score, err := r.scoreCandidate(ctx, g, c)
		if err != nil {
			continue
		}
		if score >= r.similarityThreshold {
			similar = append(similar, SimilarMatch{Review: c, Similarity: score})
		}
	}

	successRate := aggregateSuccessRate(exact, similar)
	confidence := confidenceLevel(len(exact), len(similar), successRate, r.saturationN)

	return Context{
		Exact: exact,
		Similar: similar,
		ExactCount: len(exact),
		SimilarCount: len(similar),
		ConfidenceLevel: confidence,
	}, nil
}

func reviewGroupSignature(s *domain.Strand) (string, bool) {
	var payload domain.PredictionReviewContent
	if err := s.Content().Decode(&payload); err != nil {
		return "", false
	}
	return payload.GroupSignature, true
}

// overlapsAny is a cheap pre-filter: candidates are worth scoring only if
// their group_signature isn't simply absent. Real pattern-type overlap is
// evaluated in scoreCandidate via GroupSimilarity against reconstructed
// constituents; this guards against scoring reviews with no signature at all.
func overlapsAny(sig string, queryTypes []string) bool {
	return sig != "" && len(queryTypes) > 0
}

func distinctPatternTypes(obs []PatternObservation) []string {
	return distinctStrings(obs, func(p PatternObservation) string { return p.PatternType })
}

// scoreCandidate reconstructs the candidate review's original constituent
// patterns from content.original_pattern_strand_ids and scores them against
// the query group via the weighted similarity (pattern-type
// Jaccard 0.5 + timeframe Jaccard 0.3 + cycle-proximity 0.2).
func (r *ContextRetriever) scoreCandidate(ctx context.Context, g Group, candidate *domain.Strand) (float64, error) {
	var payload domain.PredictionReviewContent
	if err := candidate.Content().Decode(&payload); err != nil {
		return 0, err
	}
	constituents := make([]PatternObservation, 0, len(payload.OriginalPatternStrandIDs))
	for _, id := range payload.OriginalPatternStrandIDs {
		leaf, err := r.store.Get(ctx, id)
		if err != nil {
			continue
		}
		var pc domain.PatternContent
		if err := leaf.Content().Decode(&pc); err != nil {
			continue
		}
		constituents = append(constituents, PatternObservation{
				StrandID: leaf.ID().String(),
				Asset: leaf.Symbol(),
				PatternType: pc.PatternType,
				Timeframe: leaf.Timeframe(),
				CycleTime: pc.CycleTime,
		})
	}
	if len(constituents) == 0 {
		return 0, nil
	}
	return GroupSimilarity(g.Constituents, constituents), nil
}

func aggregateSuccessRate(exact []ExactMatch, similar []SimilarMatch) float64 {
	total, successes := 0, 0
	for _, e := range exact {
		total++
		if outcomeSuccess(e.Review) {
			successes++
		}
	}
	for _, s := range similar {
		total++
		if outcomeSuccess(s.Review) {
			successes++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(successes) / float64(total)
}

func outcomeSuccess(s *domain.Strand) bool {
	var payload domain.PredictionReviewContent
	if err := s.Content().Decode(&payload); err != nil {
		return false
	}
	return payload.Outcome.RealizedReturn > 0
}

// confidenceLevel saturates as exact matches approach saturationN, so that
// N_sat+ exact matches no longer increases confidence further.
func confidenceLevel(exactCount, similarCount int, successRate float64, saturationN int) float64 {
	if saturationN <= 0 {
		saturationN = 10
	}
	countFactor := 1 - math.Exp(-float64(exactCount)/float64(saturationN))
	similarFactor := 1 - math.Exp(-float64(similarCount)/float64(2*saturationN))
	return clip01(0.6*countFactor + 0.2*similarFactor + 0.2*successRate)
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
