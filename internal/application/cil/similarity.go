package cil

import "math"

// jaccard computes the Jaccard index |a∩b|/|a∪b| over two string sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	setA := toSet(a)
	setB := toSet(b)
	inter := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}

// cycleProximity scores how close two cycle counts are, 1.0 for an exact
// match decaying towards 0 as the counts diverge.
func cycleProximity(a, b int) float64 {
	diff := math.Abs(float64(a - b))
	denom := math.Max(float64(a), float64(b))
	if denom == 0 {
		return 1
	}
	return math.Max(0, 1-diff/denom)
}

// GroupSimilarity scores a candidate group against a query group using the
// weighted similarity : pattern-type Jaccard 0.5 + timeframe
// Jaccard 0.3 + cycle-proximity 0.2.
func GroupSimilarity(query, candidate []PatternObservation) float64 {
	qTypes := distinctStrings(query, func(p PatternObservation) string { return p.PatternType })
	cTypes := distinctStrings(candidate, func(p PatternObservation) string { return p.PatternType })
	qTF := distinctStrings(query, func(p PatternObservation) string { return p.Timeframe })
	cTF := distinctStrings(candidate, func(p PatternObservation) string { return p.Timeframe })

	qCycles := distinctCount(query, func(p PatternObservation) string { return fmtCycle(p.CycleTime) })
	cCycles := distinctCount(candidate, func(p PatternObservation) string { return fmtCycle(p.CycleTime) })

	return 0.5*jaccard(qTypes, cTypes) + 0.3*jaccard(qTF, cTF) + 0.2*cycleProximity(qCycles, cCycles)
}

func distinctStrings(ps []PatternObservation, key func(PatternObservation) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range ps {
		k := key(p)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
