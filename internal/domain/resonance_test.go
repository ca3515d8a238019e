package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResonanceBounds_Clamp(t *testing.T) {
	bounds := ResonanceBounds{PhiMin: -1, PhiMax: 1, RhoMin: 0, RhoMax: 2}

	clamped, exceeded := bounds.Clamp(ResonanceState{Phi: 0.5, Rho: 1})
	assert.False(t, exceeded)
	assert.Equal(t, 0.5, clamped.Phi)
	assert.Equal(t, 1.0, clamped.Rho)

	clamped, exceeded = bounds.Clamp(ResonanceState{Phi: 3, Rho: -1})
	assert.True(t, exceeded)
	assert.Equal(t, 1.0, clamped.Phi)
	assert.Equal(t, 0.0, clamped.Rho)
}

func TestScores_ComputeSelection(t *testing.T) {
	sc := Scores{Accuracy: 0.8, Precision: 0.9, Stability: 0.7, Orthogonality: 1, Cost: 0.5}
	expected := (0.8 * 0.9 * 0.7 * 1) / 0.5
	assert.InDelta(t, expected, sc.ComputeSelection(), 1e-9)
}

func TestScores_ComputeSelectionFloorsZeroCost(t *testing.T) {
	withZeroCost := Scores{Accuracy: 1, Precision: 1, Stability: 1, Orthogonality: 1, Cost: 0}
	withNegativeCost := Scores{Accuracy: 1, Precision: 1, Stability: 1, Orthogonality: 1, Cost: -5}

	assert.False(t, withZeroCost.ComputeSelection() > 1e12, "zero cost must not produce an unbounded blow-up")
	assert.Equal(t, withZeroCost.ComputeSelection(), withNegativeCost.ComputeSelection())
}

func TestEnhanced_ClampsBoostToUnitRange(t *testing.T) {
	base := Enhanced(0.5, 0, 0, 0, 1)
	assert.Equal(t, 0.5, base, "zero phi/rho/surprise means zero boost")

	saturated := Enhanced(0.5, 10, 10, 10, 1)
	assert.Equal(t, 1.0, saturated, "boost is clamped to 1 before scaling selection")

	negative := Enhanced(0.5, -1, 1, 1, 1)
	assert.Equal(t, 0.5, negative, "a negative boost floors to zero rather than reducing selection")
}
