package cil

import "sync"

// BackpressureController implements its load-shedding rules: once the
// pending-braid queue grows past a threshold, raise the effective
// min_braid_size so C7 batches larger, less frequent braids; once the LLM
// error rate crosses its threshold, C4 degrades to code-only predictions and
// C7 parks jobs until the rate recovers.
type BackpressureController struct {
	mu sync.Mutex

	llmOutcomes []bool // ring of recent LLM call outcomes, true = success
	windowSize int
	errorThreshold float64

	highWatermark int
	baseMinBraidSize int
	maxMinBraidSize int

	forceDegrade bool // operator override from the control endpoint, independent of the rolling error rate
}

// NewBackpressureController builds a controller. windowSize bounds how many
// recent LLM outcomes feed the error-rate estimate.
func NewBackpressureController(errorThreshold float64, highWatermark, baseMinBraidSize, maxMinBraidSize, windowSize int) *BackpressureController {
	if windowSize <= 0 {
		windowSize = 50
	}
	return &BackpressureController{
		windowSize: windowSize, errorThreshold: errorThreshold,
		highWatermark: highWatermark, baseMinBraidSize: baseMinBraidSize, maxMinBraidSize: maxMinBraidSize,
	}
}

// RecordLLMOutcome feeds one call's success/failure into the rolling window.
func (b *BackpressureController) RecordLLMOutcome(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.llmOutcomes = append(b.llmOutcomes, success)
	if len(b.llmOutcomes) > b.windowSize {
		b.llmOutcomes = b.llmOutcomes[len(b.llmOutcomes)-b.windowSize:]
	}
}

// ErrorRate returns the fraction of failures in the rolling window.
func (b *BackpressureController) ErrorRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.llmOutcomes) == 0 {
		return 0
	}
	failures := 0
	for _, ok := range b.llmOutcomes {
		if !ok {
			failures++
		}
	}
	return float64(failures) / float64(len(b.llmOutcomes))
}

// ShouldDegradeToCodeOnly reports whether the rolling LLM error rate exceeds
// its configured threshold, signaling C4 to skip the LLM call and
// C7 to park rather than attempt synthesis. An operator-forced degrade from
// the control endpoint takes precedence over the rolling rate.
func (b *BackpressureController) ShouldDegradeToCodeOnly() bool {
	b.mu.Lock()
	forced := b.forceDegrade
	b.mu.Unlock()
	return forced || (b.errorThreshold > 0 && b.ErrorRate() > b.errorThreshold)
}

// SetForceDegrade lets the admin control endpoint disable the LLM path
// outright, regardless of the observed error rate.
func (b *BackpressureController) SetForceDegrade(force bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forceDegrade = force
}

// ForceDegrade reports the current operator override state.
func (b *BackpressureController) ForceDegrade() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.forceDegrade
}

// EffectiveMinBraidSize scales min_braid_size up once queueDepth passes the
// high watermark, capped at maxMinBraidSize, so the dispatcher batches fewer,
// larger braids under load instead of falling behind.
func (b *BackpressureController) EffectiveMinBraidSize(queueDepth int) int {
	if b.highWatermark <= 0 || queueDepth <= b.highWatermark {
		return b.baseMinBraidSize
	}
	over := queueDepth - b.highWatermark
	scaled := b.baseMinBraidSize + over/b.highWatermark + 1
	if scaled > b.maxMinBraidSize {
		return b.maxMinBraidSize
	}
	return scaled
}
