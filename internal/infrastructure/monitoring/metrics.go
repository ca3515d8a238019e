package monitoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/smilemakc/cil/internal/domain"
)

// MetricsCollector aggregates resonance and selection-score statistics per
// cluster family, plus LLM usage, so an
// operator can see which cluster families are resonating and how much the
// prediction/braid-synthesis LLM calls are costing.
type MetricsCollector struct {
	clusterMetrics map[string]*ClusterFamilyMetrics
	aiMetrics *AIMetrics
	mu sync.RWMutex
}

// ClusterFamilyMetrics aggregates resonance and selection-score statistics
// for every strand carrying a slot in one (ClusterType, ClusterKey) family.
type ClusterFamilyMetrics struct {
	ClusterType domain.ClusterType `json:"cluster_type"`
	ClusterKey string `json:"cluster_key"`

	StrandCount int `json:"strand_count"`

	AveragePhi float64 `json:"average_phi"`
	AverageRho float64 `json:"average_rho"`
	AverageTheta float64 `json:"average_theta"`
	AverageScore float64 `json:"average_selection_score"`
	MinScore float64 `json:"min_selection_score"`
	MaxScore float64 `json:"max_selection_score"`
	totalPhi float64
	totalRho float64
	totalTheta float64
	totalScore float64
	LastObservedAt time.Time `json:"last_observed_at"`
}

// AIMetrics represents LLM API usage metrics across predictions (C4) and
// learning-braid synthesis (C8).
type AIMetrics struct {
	TotalRequests int `json:"total_requests"`
	TotalTokens int `json:"total_tokens"`
	PromptTokens int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	AverageLatency time.Duration `json:"average_latency"`
	mu sync.RWMutex
}

// NewMetricsCollector creates an empty MetricsCollector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		clusterMetrics: make(map[string]*ClusterFamilyMetrics),
		aiMetrics: &AIMetrics{},
	}
}

func familyKey(clusterType domain.ClusterType, clusterKey string) string {
	return string(clusterType) + "::" + clusterKey
}

// RecordStrand folds a strand's resonance state and selection score into
// every cluster family it currently carries a slot for.
func (mc *MetricsCollector) RecordStrand(s *domain.Strand) {
	resonance := s.ResonanceState()
	score := s.Scores().Selection

	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, slot := range s.ClusterKey() {
		key := familyKey(slot.ClusterType, slot.ClusterKey)
		fm, ok := mc.clusterMetrics[key]
		if !ok {
			fm = &ClusterFamilyMetrics{
				ClusterType: slot.ClusterType, ClusterKey: slot.ClusterKey,
				MinScore: score, MaxScore: score,
			}
			mc.clusterMetrics[key] = fm
		}

		fm.StrandCount++
		fm.totalPhi += resonance.Phi
		fm.totalRho += resonance.Rho
		fm.totalTheta += resonance.ThetaContribution
		fm.totalScore += score
		fm.AveragePhi = fm.totalPhi / float64(fm.StrandCount)
		fm.AverageRho = fm.totalRho / float64(fm.StrandCount)
		fm.AverageTheta = fm.totalTheta / float64(fm.StrandCount)
		fm.AverageScore = fm.totalScore / float64(fm.StrandCount)
		if score < fm.MinScore {
			fm.MinScore = score
		}
		if score > fm.MaxScore {
			fm.MaxScore = score
		}
		fm.LastObservedAt = time.Now()
	}
}

// RecordLLMRequest records one completed LLM call's token usage and latency.
// costPerKPrompt/costPerKCompletion are USD per 1,000 tokens, configured
// rather than hard-coded so the estimate tracks the model actually in use.
func (mc *MetricsCollector) RecordLLMRequest(promptTokens, completionTokens int, latency time.Duration, costPerKPrompt, costPerKCompletion float64) {
	mc.aiMetrics.mu.Lock()
	defer mc.aiMetrics.mu.Unlock()

	mc.aiMetrics.TotalRequests++
	mc.aiMetrics.PromptTokens += promptTokens
	mc.aiMetrics.CompletionTokens += completionTokens
	mc.aiMetrics.TotalTokens += promptTokens + completionTokens

	promptCost := float64(promptTokens) / 1000.0 * costPerKPrompt
	completionCost := float64(completionTokens) / 1000.0 * costPerKCompletion
	mc.aiMetrics.EstimatedCostUSD += promptCost + completionCost

	totalLatency := time.Duration(mc.aiMetrics.TotalRequests-1) * mc.aiMetrics.AverageLatency
	mc.aiMetrics.AverageLatency = (totalLatency + latency) / time.Duration(mc.aiMetrics.TotalRequests)
}

// ClusterFamilyMetricsFor returns a copy of the metrics for one cluster family,
// or nil if nothing has been recorded for it yet.
func (mc *MetricsCollector) ClusterFamilyMetricsFor(clusterType domain.ClusterType, clusterKey string) *ClusterFamilyMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if fm, ok := mc.clusterMetrics[familyKey(clusterType, clusterKey)]; ok {
		c := *fm
		return &c
	}
	return nil
}

// AllClusterFamilyMetrics returns a copy of every tracked cluster family's metrics.
func (mc *MetricsCollector) AllClusterFamilyMetrics() []*ClusterFamilyMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	result := make([]*ClusterFamilyMetrics, 0, len(mc.clusterMetrics))
	for _, fm := range mc.clusterMetrics {
		c := *fm
		result = append(result, &c)
	}
	return result
}

// GetAIMetrics returns a copy of the current LLM usage metrics.
func (mc *MetricsCollector) GetAIMetrics() *AIMetrics {
	mc.aiMetrics.mu.RLock()
	defer mc.aiMetrics.mu.RUnlock()
	return &AIMetrics{
		TotalRequests: mc.aiMetrics.TotalRequests,
		TotalTokens: mc.aiMetrics.TotalTokens,
		PromptTokens: mc.aiMetrics.PromptTokens,
		CompletionTokens: mc.aiMetrics.CompletionTokens,
		EstimatedCostUSD: mc.aiMetrics.EstimatedCostUSD,
		AverageLatency: mc.aiMetrics.AverageLatency,
	}
}

// Reset clears all collected metrics.
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.clusterMetrics = make(map[string]*ClusterFamilyMetrics)
	mc.aiMetrics = &AIMetrics{}
}

// MetricsSummary is a flat roll-up of MetricsCollector's state, suitable for
// a one-line operator health check.
type MetricsSummary struct {
	ClusterFamilies int `json:"cluster_families"`
	TotalStrandsScored int `json:"total_strands_scored"`
	OverallAverageRho float64 `json:"overall_average_rho"`
	TotalAIRequests int `json:"total_ai_requests"`
	TotalAITokens int `json:"total_ai_tokens"`
	EstimatedAICostUSD float64 `json:"estimated_ai_cost_usd"`
}

// GetSummary rolls the collector's state up into a MetricsSummary.
func (mc *MetricsCollector) GetSummary() *MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	summary := &MetricsSummary{ClusterFamilies: len(mc.clusterMetrics)}
	var rhoSum float64
	for _, fm := range mc.clusterMetrics {
		summary.TotalStrandsScored += fm.StrandCount
		rhoSum += fm.AverageRho
	}
	if len(mc.clusterMetrics) > 0 {
		summary.OverallAverageRho = rhoSum / float64(len(mc.clusterMetrics))
	}

	mc.aiMetrics.mu.RLock()
	summary.TotalAIRequests = mc.aiMetrics.TotalRequests
	summary.TotalAITokens = mc.aiMetrics.TotalTokens
	summary.EstimatedAICostUSD = mc.aiMetrics.EstimatedCostUSD
	mc.aiMetrics.mu.RUnlock()

	return summary
}

// MetricsSnapshot is a complete, serializable snapshot of a MetricsCollector
// at a point in time, used for persistence and the metrics CLI display.
type MetricsSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	ClusterMetrics map[string]*ClusterFamilyMetrics `json:"cluster_metrics,omitempty"`
	AIMetrics *AIMetrics `json:"ai_metrics,omitempty"`
	Summary *MetricsSummary `json:"summary"`
}

// Snapshot captures a thread-safe copy of all current metrics.
func (mc *MetricsCollector) Snapshot() *MetricsSnapshot {
	mc.mu.RLock()
	clusterMetrics := make(map[string]*ClusterFamilyMetrics, len(mc.clusterMetrics))
	for k, fm := range mc.clusterMetrics {
		c := *fm
		clusterMetrics[k] = &c
	}
	mc.mu.RUnlock()

	return &MetricsSnapshot{
		Timestamp: time.Now(),
		ClusterMetrics: clusterMetrics,
		AIMetrics: mc.GetAIMetrics(),
		Summary: mc.GetSummary(),
	}
}

// String renders the snapshot as a human-readable table for CLI display.
func (s *MetricsSnapshot) String() string {
	out := fmt.Sprintf("Metrics snapshot @ %s\n", s.Timestamp.Format(time.RFC3339))
	out += fmt.Sprintf("cluster families: %d, strands scored: %d, avg rho: %.4f\n",
		s.Summary.ClusterFamilies, s.Summary.TotalStrandsScored, s.Summary.OverallAverageRho)
	out += fmt.Sprintf("LLM requests: %d, tokens: %d, est. cost: $%.4f\n\n",
		s.Summary.TotalAIRequests, s.Summary.TotalAITokens, s.Summary.EstimatedAICostUSD)
	for key, fm := range s.ClusterMetrics {
		out += fmt.Sprintf(" %-40s strands=%-6d avg_phi=%.3f avg_rho=%.3f avg_theta=%.3f avg_score=%.3f [%.3f, %.3f]\n",
			key, fm.StrandCount, fm.AveragePhi, fm.AverageRho, fm.AverageTheta, fm.AverageScore, fm.MinScore, fm.MaxScore)
	}
	return out
}
