// Package llm adapts the CIL application layer's LLMPort to the OpenAI chat
// completions API, constraining every call to strict JSON output
// so the numeric-only prediction and braid-synthesis contracts are mechanically enforceable rather than merely requested.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/smilemakc/cil/internal/application/cil"
	domerrors "github.com/smilemakc/cil/internal/domain/errors"
)

// disallowedNarrative flags the market-cause phrasing explicitly
// forbids in learning-braid output ("X happened because the Fed ...").
var disallowedNarrative = []string{"because the fed", "because the market", "due to investor sentiment", "traders believe"}

// Port implements cil.LLMPort against the OpenAI chat completions API.
type Port struct {
	client *openai.Client
	model string
	maxRetries int
	inFlight *xsync.Counter
	maxInFlight int64
	log zerolog.Logger
}

// NewPort builds a Port. maxInFlight bounds concurrent calls; apiKey/model/maxRetries come from config.LLMConfig.
func NewPort(apiKey, model string, maxRetries int, maxInFlight int64, log zerolog.Logger) *Port {
	return &Port{
		client: openai.NewClient(apiKey),
		model: model,
		maxRetries: maxRetries,
		inFlight: xsync.NewCounter(),
		maxInFlight: maxInFlight,
		log: log,
	}
}

// Predict implements cil.LLMPort.Predict: a numeric-only entry/target/stop
// call grounded in the supplied historical context.
func (p *Port) Predict(ctx context.Context, req cil.LLMPredictionRequest) (cil.LLMPredictionResponse, error) {
	if !p.acquire() {
		return cil.LLMPredictionResponse{}, domerrors.New(domerrors.CodeLLMUnavailable, "llm in-flight limit reached")
	}
	defer p.release()

	prompt := predictionPrompt(req)
	var resp cil.LLMPredictionResponse
	err := p.callJSON(ctx, prompt, func(raw []byte) error {
			return json.Unmarshal(raw, &resp)
	})
	return resp, err
}

// SynthesizeBraid implements cil.LLMPort.SynthesizeBraid: the learning
// analyzer prompt contract, with output validation that rejects and
// retries on disallowed narrative content.
func (p *Port) SynthesizeBraid(ctx context.Context, req cil.LLMBraidRequest) (cil.LLMBraidResponse, error) {
	if !p.acquire() {
		return cil.LLMBraidResponse{}, domerrors.New(domerrors.CodeLLMUnavailable, "llm in-flight limit reached")
	}
	defer p.release()

	prompt := braidPrompt(req)
	var resp cil.LLMBraidResponse
	err := p.callJSON(ctx, prompt, func(raw []byte) error {
			if err := json.Unmarshal(raw, &resp); err != nil {
				return err
			}
			return validateBraidResponse(resp)
	})
	return resp, err
}

// callJSON sends prompt as a JSON-mode chat completion and hands the raw
// content to decode, retrying up to maxRetries times on a malformed or
// rejected response.
func (p *Port) callJSON(ctx context.Context, prompt string, decode func([]byte) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		content, err := p.complete(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return domerrors.Wrap(domerrors.CodeLLMTimeout, "llm call deadline exceeded", ctx.Err())
			}
			lastErr = domerrors.Wrap(domerrors.CodeLLMUnavailable, "llm call failed", err)
			continue
		}
		if err := decode([]byte(content)); err != nil {
			lastErr = domerrors.Wrap(domerrors.CodeLLMMalformed, "llm response failed validation", err)
			continue
		}
		return nil
	}
	return lastErr
}

func (p *Port) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: p.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
			Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Port) acquire() bool {
	if p.maxInFlight <= 0 {
		return true
	}
	if p.inFlight.Value() >= p.maxInFlight {
		return false
	}
	p.inFlight.Add(1)
	return true
}

func (p *Port) release() {
	p.inFlight.Add(-1)
}

const systemPrompt = "You respond only with a single JSON object matching the requested schema. " +
"Never include narrative market-cause explanations. Ground every statement in the numbers supplied. " +
"If you lack sufficient signal, say so explicitly via the uncertainty fields rather than guessing."

func predictionPrompt(req cil.LLMPredictionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "symbol=%s timeframe=%s group_signature=%s\n", req.Symbol, req.Timeframe, req.GroupSignature)
	fmt.Fprintf(&b, "exact_matches=%d similar_matches=%d\n", len(req.ExactContext), len(req.SimilarContext))
	b.WriteString("Return JSON: {\"entry\":number,\"target\":number,\"stop\":number,\"expected_hold_ms\":integer,\"confidence\":number 0-1,\"rationale\":short string, no market narrative}")
	return b.String()
}

func braidPrompt(req cil.LLMBraidRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cluster_type=%s cluster_key=%s review_count=%d\n", req.ClusterType, req.ClusterKey, len(req.Reviews))
	for _, r := range req.Reviews {
		fmt.Fprintf(&b, "- review=%s method=%s realized_return=%.6f hit_target=%v hit_stop=%v\n",
			r.ReviewID, r.Method, r.Outcome.RealizedReturn, r.Outcome.HitTarget, r.Outcome.HitStop)
	}
	b.WriteString("Return JSON: {\"patterns_observed\":[string],\"mistakes_identified\":[string],\"success_factors\":[string],")
	b.WriteString("\"lessons_learned\":[string],\"recommendations\":[string],")
	b.WriteString("\"uncertainty\":{\"pattern_clarity\":number,\"data_sufficiency\":number,\"confidence\":number,\"insufficient_signal\":bool}}")
	return b.String()
}

// validateBraidResponse rejects disallowed narrative content.
// Numeric-aggregate agreement with the supplied reviews is the caller's
// responsibility once it has the candidate set in hand; this adapter only
// enforces the content-shape rule it alone is positioned to check.
func validateBraidResponse(resp cil.LLMBraidResponse) error {
	all := append(append(append([]string{}, resp.PatternsObserved...), resp.MistakesIdentified...), resp.LessonsLearned...)
	for _, s := range all {
		lower := strings.ToLower(s)
		for _, bad := range disallowedNarrative {
			if strings.Contains(lower, bad) {
				return fmt.Errorf("response contains disallowed narrative phrasing: %q", bad)
			}
		}
	}
	return nil
}
