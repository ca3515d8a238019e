package cil

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smilemakc/cil/internal/domain"
	domerrors "github.com/smilemakc/cil/internal/domain/errors"
	"github.com/smilemakc/cil/internal/infrastructure/config"
)

// PredictionEngine implements C4: given a group, consult historical context
// and emit a code-based and LLM-based prediction.
type PredictionEngine struct {
	store domain.StrandStore
	context *ContextRetriever
	llm LLMPort
	marketData MarketDataPort
	backpressure *BackpressureController
	weights config.TimeframeWeights
	llmDeadline time.Duration
	log zerolog.Logger
}

// NewPredictionEngine builds a PredictionEngine wired to store and llm, using
// the configured timeframe weights and LLM deadline. marketData supplies the
// reference price entry_price falls back to when neither the LLM nor the
// code path proposes one; it may be nil, in which case that fallback is 0.
// backpressure may be nil to disable proactive code-only degradation.
func NewPredictionEngine(store domain.StrandStore, context *ContextRetriever, llm LLMPort, marketData MarketDataPort, backpressure *BackpressureController, weights config.TimeframeWeights, llmDeadline time.Duration, log zerolog.Logger) *PredictionEngine {
	return &PredictionEngine{store: store, context: context, llm: llm, marketData: marketData, backpressure: backpressure, weights: weights, llmDeadline: llmDeadline, log: log}
}

// CreatePrediction implements its create_prediction(group) operation.
func (e *PredictionEngine) CreatePrediction(ctx context.Context, g Group, now time.Time) (*domain.Strand, error) {
	if g.Asset == "" || len(g.Constituents) == 0 {
		return nil, domerrors.New(domerrors.CodeValidationFailure, "group must have an asset and at least one constituent pattern")
	}

	timeframe := modeOf(g.Constituents)
	patternIDs := make([]uuid.UUID, 0, len(g.Constituents))
	for _, c := range g.Constituents {
		if id, err := uuid.Parse(c.StrandID); err == nil {
			patternIDs = append(patternIDs, id)
		}
	}

	histCtx, ctxErr := e.context.Retrieve(ctx, g)
	degraded := false
	if ctxErr != nil {
		e.log.Warn().Err(ctxErr).Str("group_signature", g.Signature).Msg("context retrieval unavailable, degrading to code-only")
		degraded = true
	}

	refPrice, refErr := e.referencePrice(ctx, g.Asset, timeframe, now)
	if refErr != nil {
		e.log.Warn().Err(refErr).Str("group_signature", g.Signature).Msg("reference price unavailable, entry price may fall back to zero")
	}

	codePred := e.codePrediction(histCtx, timeframe, refPrice)

	if !degraded && e.backpressure != nil && e.backpressure.ShouldDegradeToCodeOnly() {
		e.log.Info().Str("group_signature", g.Signature).Msg("llm error rate above threshold, degrading to code-only prediction")
		degraded = true
	}

	var llmPred *domain.PricePlan
	if !degraded && e.llm != nil {
		llmCtx, cancel := context.WithTimeout(ctx, e.llmDeadline)
		resp, err := e.llm.Predict(llmCtx, LLMPredictionRequest{
				Symbol: g.Asset,
				Timeframe: timeframe,
				GroupSignature: g.Signature,
				ExactContext: histCtx.Exact,
				SimilarContext: histCtx.Similar,
		})
		cancel()
		if e.backpressure != nil {
			e.backpressure.RecordLLMOutcome(err == nil)
		}
		if err != nil {
			e.log.Warn().Err(err).Str("group_signature", g.Signature).Msg("LLM prediction unavailable, degrading to code-only")
		} else {
			llmPred = &domain.PricePlan{
				Entry: resp.Entry, Target: resp.Target, Stop: resp.Stop,
				ExpectedHoldMS: resp.ExpectedHoldMS, Confidence: resp.Confidence, Rationale: resp.Rationale,
			}
		}
	}

	matchQuality := domain.MatchFirstTime
	switch {
		case histCtx.ExactCount > 0:
			matchQuality = domain.MatchExact
		case histCtx.SimilarCount > 0:
			matchQuality = domain.MatchSimilar
	}

	maxHold := 20 * timeframeDurationMS(timeframe)

	entry := refPrice
	target := codePred.Target
	stop := codePred.Stop
	switch {
		case llmPred != nil && llmPred.Entry > 0:
			entry = llmPred.Entry
		case codePred != nil && codePred.Entry > 0:
			entry = codePred.Entry
	}

	content, err := domain.EncodeContent(domain.PredictionContent{
			PatternGroup: patternIDs,
			GroupSignature: g.Signature,
			GroupCode: string(g.Code),
			CodePrediction: codePred,
			LLMPrediction: llmPred,
			EntryPrice: entry,
			TargetPrice: target,
			StopLoss: stop,
			MaxHoldDuration: maxHold,
			MatchQuality: matchQuality,
			ContextMetadata: map[string]any{
				"exact_count": histCtx.ExactCount,
				"similar_count": histCtx.SimilarCount,
				"confidence_level": histCtx.ConfidenceLevel,
				"pattern_ids": patternIDs,
			},
	})
	if err != nil {
		return nil, domerrors.Wrap(domerrors.CodeValidationFailure, "encode prediction content", err)
	}

	strand, err := domain.New(domain.Params{
			Kind: domain.KindPrediction,
			BraidLevel: 1,
			Symbol: g.Asset,
			Timeframe: timeframe,
			Content: content,
			Tags: []string{"cil:prediction"},
			TrackingStatus: domain.StatusActive,
		}, now)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.Append(ctx, strand); err != nil {
		return nil, err
	}

	if degraded || (e.llm != nil && llmPred == nil) {
		if err := e.emitUncertainty(ctx, g.Asset, timeframe, now); err != nil {
			e.log.Error().Err(err).Msg("failed to emit degradation uncertainty strand")
		}
	}

	return strand, nil
}

func (e *PredictionEngine) emitUncertainty(ctx context.Context, symbol, timeframe string, now time.Time) error {
	content, err := domain.EncodeContent(domain.UncertaintyContent{
			UncertaintyType: domain.UncertaintyDataSufficiency,
			ResolutionPriority: 3,
			ResolutionActions: []string{"retry prediction once context/LLM recovers"},
	})
	if err != nil {
		return err
	}
	u, err := domain.New(domain.Params{
			Kind: domain.KindUncertainty,
			BraidLevel: 1,
			Symbol: symbol,
			Timeframe: timeframe,
			Content: content,
			Tags: []string{"cil:uncertainty"},
		}, now)
	if err != nil {
		return err
	}
	_, err = e.store.Append(ctx, u)
	return err
}

// referencePrice fetches the most recent observed bar for symbol/timeframe
// and returns its open, the entry price falls back to when neither the code
// nor the LLM path proposes one of its own. Returns 0 with an error when no
// market data port is wired or no bar is available.
func (e *PredictionEngine) referencePrice(ctx context.Context, symbol, timeframe string, now time.Time) (float64, error) {
	if e.marketData == nil {
		return 0, domerrors.New(domerrors.CodeContextUnavailable, "no market data port wired")
	}
	bars, err := e.marketData.OHLCV(ctx, symbol, timeframe, now.Add(-timeframeDurationMSDuration(timeframe)), now)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, domerrors.New(domerrors.CodeContextUnavailable, "no bars available for reference price")
	}
	return bars[0].Open, nil
}

// codePrediction computes a deterministic code-based prediction from
// historical context: median-of-neighbors return, 75th-percentile drawdown
// for the stop, weighted by similarity and timeframe weight. refPrice seeds
// Entry so target/stop (expressed as returns off the median/percentile) have
// a real price to be computed against downstream.
func (e *PredictionEngine) codePrediction(histCtx Context, timeframe string, refPrice float64) *domain.PricePlan {
	var returns, drawdowns, weights []float64
	tfWeight := e.weights[timeframe]
	if tfWeight == 0 {
		tfWeight = 1
	}
	for _, m := range histCtx.Exact {
		var payload domain.PredictionReviewContent
		if m.Review.Content().Decode(&payload) != nil {
			continue
		}
		returns = append(returns, payload.Outcome.RealizedReturn)
		drawdowns = append(drawdowns, payload.Outcome.MaxAdverse)
		weights = append(weights, tfWeight)
	}
	for _, m := range histCtx.Similar {
		var payload domain.PredictionReviewContent
		if m.Review.Content().Decode(&payload) != nil {
			continue
		}
		returns = append(returns, payload.Outcome.RealizedReturn)
		drawdowns = append(drawdowns, payload.Outcome.MaxAdverse)
		weights = append(weights, tfWeight*m.Similarity)
	}

	if len(returns) == 0 {
		return &domain.PricePlan{Entry: refPrice, Confidence: 0}
	}

	medianReturn := weightedMedian(returns, weights)
	p75Drawdown := percentile(drawdowns, 0.75)

	return &domain.PricePlan{
		Entry: refPrice,
		Target: refPrice + medianReturn,
		Stop: refPrice - p75Drawdown,
		ExpectedHoldMS: 20 * timeframeDurationMS(timeframe),
		Confidence: histCtx.ConfidenceLevel,
	}
}

// timeframeDurationMSDuration is timeframeDurationMS as a time.Duration, used
// to size the market data lookback window for the reference price.
func timeframeDurationMSDuration(timeframe string) time.Duration {
	return time.Duration(timeframeDurationMS(timeframe)) * time.Millisecond
}

func modeOf(obs []PatternObservation) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, o := range obs {
		counts[o.Timeframe]++
		if counts[o.Timeframe] > bestCount {
			best, bestCount = o.Timeframe, counts[o.Timeframe]
		}
	}
	return best
}

// timeframeDurationMS returns the nominal duration of one bar of timeframe
// in milliseconds, used to derive max_hold_duration = 20x timeframe.
func timeframeDurationMS(timeframe string) int64 {
	switch timeframe {
		case "1m":
			return int64(time.Minute / time.Millisecond)
		case "5m":
			return int64(5 * time.Minute / time.Millisecond)
		case "15m":
			return int64(15 * time.Minute / time.Millisecond)
		case "1h":
			return int64(time.Hour / time.Millisecond)
		case "4h":
			return int64(4 * time.Hour / time.Millisecond)
		case "1d":
			return int64(24 * time.Hour / time.Millisecond)
		default:
			return int64(time.Minute / time.Millisecond)
	}
}

func weightedMedian(values, weights []float64) float64 {
	type pair struct{ v, w float64 }
	pairs := make([]pair, len(values))
	total := 0.0
	for i := range values {
		pairs[i] = pair{values[i], weights[i]}
		total += weights[i]
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })
	if total == 0 {
		return median(values)
	}
	cum := 0.0
	for _, p := range pairs {
		cum += p.w
		if cum >= total/2 {
			return p.v
		}
	}
	return pairs[len(pairs)-1].v
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
