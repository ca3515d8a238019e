package cil

import (
	"fmt"
	"sort"

	"github.com/smilemakc/cil/internal/infrastructure/monitoring"
)

// ANSI colors & styles
const (
	colorReset = "\033[0m"
	colorBlue = "\033[34m"
	colorCyan = "\033[36m"
	colorGreen = "\033[32m"
	colorYellow = "\033[33m"
	colorRed = "\033[31m"
	bold = "\033[1m"
)

// MetricsSnapshot, ClusterFamilyMetrics, AIMetrics and MetricsSummary are
// re-exported so callers can display a Kernel's live metrics without
// importing internal/infrastructure/monitoring.
type (
	MetricsSnapshot = monitoring.MetricsSnapshot
	ClusterFamilyMetrics = monitoring.ClusterFamilyMetrics
	AIMetrics = monitoring.AIMetrics
	MetricsSummary = monitoring.MetricsSummary
)

// MetricsCollector aggregates resonance and selection-score statistics per
// cluster family, plus LLM usage.
type MetricsCollector = monitoring.MetricsCollector

// NewMetricsCollector creates an empty MetricsCollector.
func NewMetricsCollector() *MetricsCollector {
	return monitoring.NewMetricsCollector()
}

// DisplayMetrics prints a metrics snapshot in a formatted, human-readable,
// ANSI-colored way, suitable for examples, demos and operator debugging.
// Resonance stats are broken down per (cluster_type, cluster_key) family:
// pass clusterFamilies to list only those families, or nil to list every
// family in the snapshot.
func DisplayMetrics(snapshot *MetricsSnapshot, clusterFamilies []string, showAIMetrics bool) {
	title := func(text string) {
		fmt.Printf("\n%s%s=== %s ===%s\n\n", bold, colorBlue, text, colorReset)
	}

	section := func(text string) {
		fmt.Printf("%s%s%s\n", bold, text, colorReset)
	}

	kv := func(label string, value any) {
		fmt.Printf(" %s%-22s%s: %v\n", colorCyan, label, colorReset, value)
	}

	title("CIL Metrics")

	summary := snapshot.Summary
	if summary != nil {
		section("Summary:")
		kv("Cluster Families", summary.ClusterFamilies)
		kv("Strands Scored", summary.TotalStrandsScored)
		kv("Overall Avg Rho", fmt.Sprintf("%.4f", summary.OverallAverageRho))
		kv("AI Requests", summary.TotalAIRequests)
		kv("AI Tokens", summary.TotalAITokens)
		kv("AI Cost (USD)", fmt.Sprintf("$%.4f", summary.EstimatedAICostUSD))
	}

	families := clusterFamilies
	if len(families) == 0 {
		for key := range snapshot.ClusterMetrics {
			families = append(families, key)
		}
		sort.Strings(families)
	}

	if len(families) > 0 {
		section("\nCluster Family Metrics:")
		for _, key := range families {
			fm := snapshot.ClusterMetrics[key]
			if fm == nil {
				continue
			}
			fmt.Printf("\n %s%s%s (%s)\n", bold, key, colorReset, fm.ClusterType)
			kv("Strand Count", fm.StrandCount)
			kv("Avg Phi", fmt.Sprintf("%.4f", fm.AveragePhi))
			kv("Avg Rho", fmt.Sprintf("%.4f", fm.AverageRho))
			kv("Avg Theta", fmt.Sprintf("%.4f", fm.AverageTheta))
			kv("Avg Selection", fmt.Sprintf("%s%.4f%s", colorGreen, fm.AverageScore, colorReset))
			kv("Selection Range", fmt.Sprintf("[%.4f, %.4f]", fm.MinScore, fm.MaxScore))
		}
	}

	if showAIMetrics {
		ai := snapshot.AIMetrics
		if ai != nil {
			section("\nAI API Metrics:")
			kv("Total Requests", ai.TotalRequests)
			kv("Total Tokens", ai.TotalTokens)
			kv("Prompt Tokens", ai.PromptTokens)
			kv("Completion Tokens", ai.CompletionTokens)
			kv("Estimated Cost", fmt.Sprintf("$%.4f", ai.EstimatedCostUSD))
			kv("Avg Latency", ai.AverageLatency)
			if ai.TotalRequests == 0 {
				fmt.Printf(" %s(no LLM calls yet)%s\n", colorYellow, colorReset)
			}
		}
	}

	fmt.Println()
}
