package cil

import "strconv"

// GroupAssembler implements C2: given the leaf patterns linked by one
// pattern_overview cycle, produces up to six groupings per asset.
type GroupAssembler struct{}

// NewGroupAssembler builds a GroupAssembler. It holds no state; grouping is
// a pure function of its input patterns.
func NewGroupAssembler() *GroupAssembler {
	return &GroupAssembler{}
}

// Assemble produces the groups for one asset's patterns, which may span
// several cycle times, applying each shape's own retention rule.
func (a *GroupAssembler) Assemble(asset string, patterns []PatternObservation) []Group {
	var groups []Group

	byPTTF := bucketBy(patterns, func(p PatternObservation) string { return p.PatternType + "|" + p.Timeframe + "|" + fmtCycle(p.CycleTime) })
	for _, members := range byPTTF {
		groups = append(groups, build(GroupCodeA, asset, members))
	}

	byTFCycle := bucketBy(patterns, func(p PatternObservation) string { return p.Timeframe + "|" + fmtCycle(p.CycleTime) })
	for _, members := range byTFCycle {
		if distinctCount(members, func(p PatternObservation) string { return p.PatternType }) >= 2 {
			groups = append(groups, build(GroupCodeB, asset, members))
		}
	}

	byPTCycle := bucketBy(patterns, func(p PatternObservation) string { return p.PatternType + "|" + fmtCycle(p.CycleTime) })
	for _, members := range byPTCycle {
		if distinctCount(members, func(p PatternObservation) string { return p.Timeframe }) >= 2 {
			groups = append(groups, build(GroupCodeC, asset, members))
		}
	}

	byCycle := bucketBy(patterns, func(p PatternObservation) string { return fmtCycle(p.CycleTime) })
	for _, members := range byCycle {
		if distinctCount(members, func(p PatternObservation) string { return p.PatternType }) >= 2 &&
		distinctCount(members, func(p PatternObservation) string { return p.Timeframe }) >= 2 {
			groups = append(groups, build(GroupCodeD, asset, members))
		}
	}

	byPTTFAll := bucketBy(patterns, func(p PatternObservation) string { return p.PatternType + "|" + p.Timeframe })
	for _, members := range byPTTFAll {
		if distinctCount(members, func(p PatternObservation) string { return fmtCycle(p.CycleTime) }) >= 2 {
			groups = append(groups, build(GroupCodeE, asset, members))
		}
	}

	if distinctCount(patterns, func(p PatternObservation) string { return p.PatternType }) >= 2 &&
	distinctCount(patterns, func(p PatternObservation) string { return fmtCycle(p.CycleTime) }) >= 2 {
		groups = append(groups, build(GroupCodeF, asset, patterns))
	}

	return groups
}

func build(code GroupCode, asset string, members []PatternObservation) Group {
	return Group{
		Code: code,
		Asset: asset,
		Constituents: append([]PatternObservation(nil), members...),
		Signature: Signature(code, asset, members),
	}
}

func bucketBy(patterns []PatternObservation, key func(PatternObservation) string) map[string][]PatternObservation {
	out := make(map[string][]PatternObservation)
	for _, p := range patterns {
		k := key(p)
		out[k] = append(out[k], p)
	}
	return out
}

func distinctCount(patterns []PatternObservation, key func(PatternObservation) string) int {
	seen := make(map[string]struct{})
	for _, p := range patterns {
		seen[key(p)] = struct{}{}
	}
	return len(seen)
}

func fmtCycle(cycleTime int64) string {
	return strconv.FormatInt(cycleTime, 10)
}
