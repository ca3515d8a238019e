package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Content is the structured payload carried on a strand; its shape is
// determined by Kind. Stored as jsonb by the infrastructure
// layer, so consumers must ignore unknown fields and producers must never
// remove or rename a field within a feature_version.
type Content map[string]any

// Decode unmarshals c into dst via a JSON round-trip, which is sufficient
// given Content itself is always built from (or destined for) jsonb.
func (c Content) Decode(dst any) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// EncodeContent marshals src (one of the typed payloads below) into a
// Content map via a JSON round-trip.
func EncodeContent(src any) (Content, error) {
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	var c Content
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return c, nil
}

// PatternContent is the payload of a kind=pattern leaf strand.
type PatternContent struct {
	PatternType string `json:"pattern_type"`
	Strength float64 `json:"strength"`
	Features map[string]any `json:"features,omitempty"`
	CycleTime int64 `json:"cycle_time"`
}

// PredictionContent is the payload of a kind=prediction strand.
type PredictionContent struct {
	PatternGroup []uuid.UUID `json:"pattern_group"`
	GroupSignature string `json:"group_signature"`
	GroupCode string `json:"group_code"`
	CodePrediction *PricePlan `json:"code_prediction,omitempty"`
	LLMPrediction *PricePlan `json:"llm_prediction,omitempty"`
	EntryPrice float64 `json:"entry_price"`
	TargetPrice float64 `json:"target_price"`
	StopLoss float64 `json:"stop_loss"`
	MaxHoldDuration int64 `json:"max_hold_duration"`
	MatchQuality MatchQuality `json:"match_quality"`
	ContextMetadata map[string]any `json:"context_metadata,omitempty"`
}

// PricePlan is the common shape of a code- or LLM-derived directional call:
// entry/target/stop plus a confidence and rationale.
type PricePlan struct {
	Entry float64 `json:"entry"`
	Target float64 `json:"target"`
	Stop float64 `json:"stop"`
	ExpectedHoldMS int64 `json:"expected_hold_ms"`
	Confidence float64 `json:"confidence"`
	Rationale string `json:"rationale,omitempty"`
}

// Outcome is the measured result of a resolved prediction.
type Outcome struct {
	RealizedReturn float64 `json:"realized_return"`
	MaxFavorable float64 `json:"max_favorable"`
	MaxAdverse float64 `json:"max_adverse"`
	TimeToOutcome int64 `json:"time_to_outcome"`
	HitTarget bool `json:"hit_target"`
	HitStop bool `json:"hit_stop"`
	FirstHit string `json:"first_hit,omitempty"` // "target" | "stop" | ""
}

// MethodComparison records which of the code/LLM predictions tracked closer
// to the realized outcome, when both were present.
type MethodComparison struct {
	CloserMethod PredictionMethod `json:"closer_method"`
	CodeError float64 `json:"code_error"`
	LLMError float64 `json:"llm_error"`
	KeyDifferences []string `json:"key_differences,omitempty"`
}

// PredictionReviewContent is the payload of a kind=prediction_review strand.
type PredictionReviewContent struct {
	PredictionID uuid.UUID `json:"prediction_id"`
	Outcome Outcome `json:"outcome"`
	PlanVsReality map[string]any `json:"plan_vs_reality,omitempty"`
	MethodComparison *MethodComparison `json:"method_comparison,omitempty"`
	GroupSignature string `json:"group_signature"`
	GroupCode string `json:"group_code"`
	Method PredictionMethod `json:"method"`
	OriginalPatternStrandIDs []uuid.UUID `json:"original_pattern_strand_ids,omitempty"`
	BetterEntryExisted bool `json:"better_entry_existed"`
}

// ConditionCriteria is a single evaluable expression with a human label,
// compiled and cached by the conditions evaluator (expr-lang).
type ConditionCriteria struct {
	Label string `json:"label"`
	Expression string `json:"expression"`
}

// RiskProfile carries the position-sizing and drawdown caps of a conditional
// plan.
type RiskProfile struct {
	SizingPct float64 `json:"sizing_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

// PlanScope restricts where a conditional plan applies.
type PlanScope struct {
	Assets []string `json:"assets,omitempty"`
	Timeframes []string `json:"timeframes,omitempty"`
	Regimes []string `json:"regimes,omitempty"`
}

// PlanProvenance traces a conditional plan back to its contributing braids
// and experiments.
type PlanProvenance struct {
	BraidIDs []uuid.UUID `json:"braid_ids"`
	ExperimentIDs []uuid.UUID `json:"experiment_ids,omitempty"`
}

// ConditionalPlanContent is the payload of a kind=conditional_plan strand.
type ConditionalPlanContent struct {
	Activation []ConditionCriteria `json:"activation"`
	Invalidation []ConditionCriteria `json:"invalidation"`
	EntryCriteria []ConditionCriteria `json:"entry_criteria"`
	ExitCriteria []ConditionCriteria `json:"exit_criteria"`
	Risk RiskProfile `json:"risk"`
	Scope PlanScope `json:"scope"`
	Provenance PlanProvenance `json:"provenance"`
	ExpectedRR float64 `json:"expected_rr"`
}

// LearningBraidContent is the payload of a synthesized braid: a
// kind=prediction_review strand one braid_level above its cluster's members,
// re-entrant into further clustering. Also mirrored onto the enclosing
// strand's Lesson field.
type LearningBraidContent struct {
	Insights []string `json:"insights"`
	ClusterType ClusterType `json:"cluster_type"`
	ClusterKey string `json:"cluster_key"`
	MemberCount int `json:"member_count"`
	SuccessRate float64 `json:"success_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
	Recommendations []string `json:"recommendations"`

	PatternsObserved []string `json:"patterns_observed,omitempty"`
	MistakesIdentified []string `json:"mistakes_identified,omitempty"`
	SuccessFactors []string `json:"success_factors,omitempty"`
	Uncertainty *AnalyzerUncertainty `json:"uncertainty,omitempty"`
}

// AnalyzerUncertainty is the explicit "we don't yet know" signal the LLM
// learning analyzer is required to be able to emit.
type AnalyzerUncertainty struct {
	PatternClarity float64 `json:"pattern_clarity"`
	DataSufficiency float64 `json:"data_sufficiency"`
	Confidence float64 `json:"confidence"`
	InsufficientSignal bool `json:"insufficient_signal"`
}

// UncertaintyContent is the payload of a kind=uncertainty strand.
type UncertaintyContent struct {
	UncertaintyType UncertaintyType `json:"uncertainty_type"`
	ResolutionPriority int `json:"resolution_priority"`
	ResolutionActions []string `json:"resolution_actions,omitempty"`
}
