package cil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smilemakc/cil/internal/domain"
	domerrors "github.com/smilemakc/cil/internal/domain/errors"
	"github.com/smilemakc/cil/internal/infrastructure/config"
)

// BraidCandidate is the slice of a prediction_review that the learning
// analyzer needs to synthesize a lesson: enough to reason
// about the outcome without re-fetching the whole strand.
type BraidCandidate struct {
	ReviewID uuid.UUID
	Symbol string
	Timeframe string
	GroupSignature string
	Method domain.PredictionMethod
	Outcome domain.Outcome
	OriginalPatternIDs []uuid.UUID
}

// ProcessResult reports what ProcessCluster did for one (cluster_type,
// cluster_key, braid_level) slot.
type ProcessResult struct {
	// Eligible is true once min_braid_size unconsumed, non-stale reviews were
	// present (whether or not synthesis ultimately succeeded this attempt).
	Eligible bool
	Braid *domain.Strand
	// Parked is true if the job exhausted its retry budget and was parked
	// with an uncertainty strand instead of a braid.
	Parked bool
}

// LearningLoop implements C7: the per-cluster learning loop that watches each
// (cluster_type, cluster_key, braid_level) slot, and once enough unconsumed
// reviews accumulate, synthesizes them into a learning_braid one level up.
type LearningLoop struct {
	store domain.StrandStore
	llm LLMPort
	breaker *CircuitBreaker
	backoff BackoffPolicy
	backpressure *BackpressureController

	mu sync.Mutex
	minBraidSize int
	maxBraidSize int
	qualityGate config.BraidQualityGate

	log zerolog.Logger
}

// NewLearningLoop builds a LearningLoop wired to store and llm, gated by cfg's
// braid sizing and quality thresholds. backpressure may be
// nil to disable rolling error-rate degradation.
func NewLearningLoop(store domain.StrandStore, llm LLMPort, breaker *CircuitBreaker, backoff BackoffPolicy, backpressure *BackpressureController, minBraidSize, maxBraidSize int, gate config.BraidQualityGate, log zerolog.Logger) *LearningLoop {
	return &LearningLoop{
		store: store, llm: llm, breaker: breaker, backoff: backoff, backpressure: backpressure,
		minBraidSize: minBraidSize, maxBraidSize: maxBraidSize, qualityGate: gate, log: log,
	}
}

// SetMinBraidSize lets the dispatcher's backpressure controller raise or
// restore the effective min_braid_size as the braid queue depth changes.
func (l *LearningLoop) SetMinBraidSize(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minBraidSize = n
}

func (l *LearningLoop) currentMinBraidSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minBraidSize
}

// SetMaxBraidSize lets the control endpoint adjust the upper bound on braid
// membership at runtime.
func (l *LearningLoop) SetMaxBraidSize(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxBraidSize = n
}

// BraidSizeBounds reports the current (min, max) braid size, for the control
// endpoint's read path.
func (l *LearningLoop) BraidSizeBounds() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minBraidSize, l.maxBraidSize
}

func (l *LearningLoop) currentMaxBraidSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxBraidSize
}

// ProcessCluster evaluates one cluster slot for braid eligibility and, if
// eligible, attempts synthesis. attempt is the 1-indexed retry count for this
// slot, supplied by the dispatcher's retry queue: on LLM failure the caller should re-invoke after
// BackoffPolicy.Delay(attempt, nil), until Exhausted, at which point
// ProcessCluster parks the slot itself and returns Parked=true.
func (l *LearningLoop) ProcessCluster(ctx context.Context, clusterType domain.ClusterType, clusterKey string, level, attempt int, now time.Time) (ProcessResult, error) {
	unconsumedLevel := level
	reviews, err := l.store.Query(ctx, domain.QueryFilter{
			Kind: domain.KindPredictionReview,
			ClusterType: clusterType,
			ClusterKey: clusterKey,
			BraidLevel: level,
			UnconsumedAt: &unconsumedLevel,
			Limit: l.currentMaxBraidSize() * 4, // over-fetch so staleness filtering still leaves enough
	})
	if err != nil {
		return ProcessResult{}, err
	}

	fresh := l.filterFresh(reviews, now)
	if len(fresh) < l.currentMinBraidSize() {
		return ProcessResult{Eligible: false}, nil
	}

	maxBraidSize := l.currentMaxBraidSize()
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].CreatedAt().Before(fresh[j].CreatedAt()) })
	if len(fresh) > maxBraidSize {
		fresh = fresh[:maxBraidSize]
	}

	candidates := make([]BraidCandidate, 0, len(fresh))
	patternIDs := make([]uuid.UUID, 0, len(fresh))
	var avgSelection float64
	for _, r := range fresh {
		var payload domain.PredictionReviewContent
		if err := r.Content().Decode(&payload); err != nil {
			continue
		}
		candidates = append(candidates, BraidCandidate{
				ReviewID: r.ID(), Symbol: r.Symbol(), Timeframe: r.Timeframe(),
				GroupSignature: payload.GroupSignature, Method: payload.Method, Outcome: payload.Outcome,
				OriginalPatternIDs: payload.OriginalPatternStrandIDs,
		})
		patternIDs = append(patternIDs, payload.OriginalPatternStrandIDs...)
		avgSelection += r.Scores().Selection
	}
	if len(candidates) == 0 {
		return ProcessResult{Eligible: false}, nil
	}
	avgSelection /= float64(len(candidates))

	if l.qualityGate.MinSelection > 0 && avgSelection > 0 && avgSelection < l.qualityGate.MinSelection {
		l.log.Info().Str("cluster_type", string(clusterType)).Str("cluster_key", clusterKey).
		Float64("avg_selection", avgSelection).Msg("cluster below braid quality gate, deferring")
		return ProcessResult{Eligible: true}, nil
	}

	if l.backpressure != nil && l.backpressure.ShouldDegradeToCodeOnly() {
		return l.parkOrRetry(ctx, clusterType, clusterKey, attempt, now,
			domerrors.New(domerrors.CodeLLMUnavailable, "llm error rate above threshold, parking braid synthesis"))
	}
	if l.breaker != nil && !l.breaker.Allow(now) {
		return l.parkOrRetry(ctx, clusterType, clusterKey, attempt, now,
			domerrors.New(domerrors.CodeLLMUnavailable, "llm circuit breaker open, deferring braid synthesis"))
	}

	resp, err := l.llm.SynthesizeBraid(ctx, LLMBraidRequest{
			ClusterType: string(clusterType),
			ClusterKey: clusterKey,
			Reviews: candidates,
			OriginalPatternIDs: uuidsToStrings(patternIDs),
	})
	if l.backpressure != nil {
		l.backpressure.RecordLLMOutcome(err == nil)
	}
	if err != nil {
		if l.breaker != nil {
			l.breaker.RecordFailure(now)
		}
		return l.parkOrRetry(ctx, clusterType, clusterKey, attempt, now, err)
	}
	if l.breaker != nil {
		l.breaker.RecordSuccess(now)
	}

	braid, err := l.buildBraid(ctx, clusterType, clusterKey, level, fresh, candidates, avgSelection, resp, now)
	if err != nil {
		return ProcessResult{}, err
	}

	for _, r := range fresh {
		key := domain.ClusterSlotKey{ClusterType: clusterType, ClusterKey: clusterKey, BraidLevel: level}
		if err := l.store.UpdateConsumed(ctx, r.ID(), key); err != nil {
			return ProcessResult{}, err
		}
	}

	return ProcessResult{Eligible: true, Braid: braid}, nil
}

// filterFresh drops reviews whose slot has gone stale past the quality
// gate's max_staleness, since a braid synthesized from a mix of fresh and
// long-idle reviews would misrepresent the cluster's current behavior.
func (l *LearningLoop) filterFresh(reviews []*domain.Strand, now time.Time) []*domain.Strand {
	if l.qualityGate.MaxStaleness <= 0 {
		return reviews
	}
	fresh := make([]*domain.Strand, 0, len(reviews))
	for _, r := range reviews {
		if now.Sub(r.CreatedAt()) <= l.qualityGate.MaxStaleness {
			fresh = append(fresh, r)
		}
	}
	return fresh
}

func (l *LearningLoop) parkOrRetry(ctx context.Context, clusterType domain.ClusterType, clusterKey string, attempt int, now time.Time, cause error) (ProcessResult, error) {
	if !l.backoff.Exhausted(attempt) {
		return ProcessResult{Eligible: true}, domerrors.Wrap(domerrors.CodeLLMUnavailable, "braid synthesis failed, will retry", cause)
	}
	l.log.Error().Err(cause).Str("cluster_type", string(clusterType)).Str("cluster_key", clusterKey).
	Int("attempt", attempt).Msg("braid synthesis retries exhausted, parking cluster")
	if err := l.emitParkedUncertainty(ctx, clusterType, clusterKey, now); err != nil {
		l.log.Error().Err(err).Msg("failed to emit parked-cluster uncertainty strand")
	}
	return ProcessResult{Eligible: true, Parked: true}, nil
}

func (l *LearningLoop) emitParkedUncertainty(ctx context.Context, clusterType domain.ClusterType, clusterKey string, now time.Time) error {
	content, err := domain.EncodeContent(domain.UncertaintyContent{
			UncertaintyType: domain.UncertaintyDataSufficiency,
			ResolutionPriority: 1,
			ResolutionActions: []string{"investigate LLM error rate", "re-queue cluster " + string(clusterType) + "/" + clusterKey + " for braiding"},
	})
	if err != nil {
		return err
	}
	u, err := domain.New(domain.Params{
			Kind: domain.KindUncertainty,
			BraidLevel: 1,
			Tags: []string{"cil:uncertainty", "cil:braid-parked"},
			Content: content,
		}, now)
	if err != nil {
		return err
	}
	_, err = l.store.Append(ctx, u)
	return err
}

func (l *LearningLoop) buildBraid(ctx context.Context, clusterType domain.ClusterType, clusterKey string, level int, reviews []*domain.Strand, candidates []BraidCandidate, avgSelection float64, resp LLMBraidResponse, now time.Time) (*domain.Strand, error) {
	successes := 0
	avgConfidence := 0.0
	parents := make([]uuid.UUID, 0, len(reviews))
	symbol, timeframe := "", ""
	for i, c := range candidates {
		if c.Outcome.RealizedReturn > 0 {
			successes++
		}
		parents = append(parents, c.ReviewID)
		if i == 0 {
			symbol, timeframe = c.Symbol, c.Timeframe
		}
		avgConfidence += avgSelection
	}
	if len(candidates) > 0 {
		avgConfidence /= float64(len(candidates))
	}

	var analyzerUncertainty *domain.AnalyzerUncertainty
	if resp.Uncertainty.InsufficientSignal || resp.Uncertainty.Confidence > 0 {
		analyzerUncertainty = &domain.AnalyzerUncertainty{
			PatternClarity: resp.Uncertainty.PatternClarity, DataSufficiency: resp.Uncertainty.DataSufficiency,
			Confidence: resp.Uncertainty.Confidence, InsufficientSignal: resp.Uncertainty.InsufficientSignal,
		}
	}

	payload := domain.LearningBraidContent{
		Insights: resp.LessonsLearned,
		ClusterType: clusterType,
		ClusterKey: clusterKey,
		MemberCount: len(candidates),
		SuccessRate: float64(successes) / float64(len(candidates)),
		AvgConfidence: avgConfidence,
		Recommendations: resp.Recommendations,
		PatternsObserved: resp.PatternsObserved,
		MistakesIdentified: resp.MistakesIdentified,
		SuccessFactors: resp.SuccessFactors,
		Uncertainty: analyzerUncertainty,
	}
	content, err := domain.EncodeContent(payload)
	if err != nil {
		return nil, domerrors.Wrap(domerrors.CodeValidationFailure, "encode learning_braid content", err)
	}

	lesson := summarize(resp.LessonsLearned)

	braid, err := domain.New(domain.Params{
			Kind: domain.KindPredictionReview,
			BraidLevel: level + 1,
			Symbol: symbol,
			Timeframe: timeframe,
			Content: content,
			Lesson: lesson,
			Lineage: domain.Lineage{ParentIDs: parents, MutationNote: "braided from " + string(clusterType) + "/" + clusterKey},
			Tags: []string{"cil:learning_braid", "cluster:" + string(clusterType)},
		}, now)
	if err != nil {
		return nil, err
	}
	if _, err := l.store.Append(ctx, braid); err != nil {
		return nil, err
	}
	return braid, nil
}

func summarize(lessons []string) string {
	if len(lessons) == 0 {
		return ""
	}
	return lessons[0]
}

func uuidsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
