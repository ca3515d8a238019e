package cil

import (
	"context"
	"time"

	"github.com/smilemakc/cil/internal/domain"
	domerrors "github.com/smilemakc/cil/internal/domain/errors"
)

// OutcomeAnalyzer implements C5: given a completed prediction and its
// observed price series, produces a prediction_review.
type OutcomeAnalyzer struct {
	store domain.StrandStore
	marketData MarketDataPort
}

// NewOutcomeAnalyzer builds an OutcomeAnalyzer backed by store and
// marketData.
func NewOutcomeAnalyzer(store domain.StrandStore, marketData MarketDataPort) *OutcomeAnalyzer {
	return &OutcomeAnalyzer{store: store, marketData: marketData}
}

// Analyze computes the review for prediction p, whose tracking_status must
// already be completed, over the observed bars.
func (a *OutcomeAnalyzer) Analyze(ctx context.Context, p *domain.Strand, bars []OHLCVBar, now time.Time) (*domain.Strand, error) {
	if p.TrackingStatus() != domain.StatusCompleted {
		return nil, domerrors.Newf(domerrors.CodeValidationFailure,
			"prediction %s must be completed before review, got %s", p.ID(), p.TrackingStatus())
	}
	var pred domain.PredictionContent
	if err := p.Content().Decode(&pred); err != nil {
		return nil, domerrors.Wrap(domerrors.CodeValidationFailure, "decode prediction content", err)
	}

	outcome, err := computeOutcome(pred, bars)
	if err != nil {
		return nil, err
	}

	var comparison *domain.MethodComparison
	if pred.CodePrediction != nil && pred.LLMPrediction != nil {
		comparison = compareMethods(pred.CodePrediction, pred.LLMPrediction, outcome.RealizedReturn)
	}

	method := domain.MethodCode
	if comparison != nil && comparison.CloserMethod == domain.MethodLLM {
		method = domain.MethodLLM
	}

	content, err := domain.EncodeContent(domain.PredictionReviewContent{
			PredictionID: p.ID(),
			Outcome: outcome,
			MethodComparison: comparison,
			GroupSignature: pred.GroupSignature,
			GroupCode: pred.GroupCode,
			Method: method,
			OriginalPatternStrandIDs: pred.PatternGroup,
			BetterEntryExisted: betterEntryExisted(pred, bars),
	})
	if err != nil {
		return nil, domerrors.Wrap(domerrors.CodeValidationFailure, "encode review content", err)
	}

	review, err := domain.New(domain.Params{
			Kind: domain.KindPredictionReview,
			BraidLevel: 1,
			Symbol: p.Symbol(),
			Timeframe: p.Timeframe(),
			Content: content,
			Tags: []string{"cil:review"},
		}, now)
	if err != nil {
		return nil, err
	}
	if _, err := a.store.Append(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// computeOutcome derives realized PnL, MFE/MAE and hit ordering from the
// observed bars, enforcing invariant 7 (max_favorable >= realized_return
// >= -max_adverse).
func computeOutcome(pred domain.PredictionContent, bars []OHLCVBar) (domain.Outcome, error) {
	if len(bars) == 0 {
		return domain.Outcome{}, domerrors.New(domerrors.CodeContextUnavailable, "no bars available to compute outcome")
	}
	entry := pred.EntryPrice
	var maxFav, maxAdv float64
	var hitTarget, hitStop bool
	var firstHit string
	var timeToOutcome int64

	for i, bar := range bars {
		favorable := bar.High - entry
		adverse := entry - bar.Low
		if favorable > maxFav {
			maxFav = favorable
		}
		if adverse > maxAdv {
			maxAdv = adverse
		}
		if !hitTarget && pred.TargetPrice > 0 && bar.High >= pred.TargetPrice {
			hitTarget = true
			if firstHit == "" {
				firstHit = "target"
			}
		}
		if !hitStop && pred.StopLoss > 0 && bar.Low <= pred.StopLoss {
			hitStop = true
			if firstHit == "" {
				firstHit = "stop"
			}
		}
		if hitTarget || hitStop || i == len(bars)-1 {
			timeToOutcome = bar.Time.Sub(bars[0].Time).Milliseconds()
			if hitTarget || hitStop {
				break
			}
		}
	}

	realized := bars[len(bars)-1].Close - entry
	if hitTarget && firstHit == "target" {
		realized = pred.TargetPrice - entry
	} else if hitStop && firstHit == "stop" {
		realized = pred.StopLoss - entry
	}

	if realized > maxFav {
		maxFav = realized
	}
	if -realized > maxAdv {
		maxAdv = -realized
	}

	return domain.Outcome{
		RealizedReturn: realized,
		MaxFavorable: maxFav,
		MaxAdverse: maxAdv,
		TimeToOutcome: timeToOutcome,
		HitTarget: hitTarget,
		HitStop: hitStop,
		FirstHit: firstHit,
	}, nil
}

func compareMethods(code, llm *domain.PricePlan, realized float64) *domain.MethodComparison {
	codeErr := abs((code.Target - code.Entry) - realized)
	llmErr := abs((llm.Target - llm.Entry) - realized)
	closer := domain.MethodCode
	if llmErr < codeErr {
		closer = domain.MethodLLM
	}
	return &domain.MethodComparison{
		CloserMethod: closer,
		CodeError: codeErr,
		LLMError: llmErr,
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// betterEntryExisted reports whether a more favorable entry was available
// in-window than the one actually taken.
func betterEntryExisted(pred domain.PredictionContent, bars []OHLCVBar) bool {
	for _, bar := range bars {
		if bar.Low < pred.EntryPrice {
			return true
		}
	}
	return false
}
