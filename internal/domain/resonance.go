package domain

import "time"

// ResonanceState carries the bounded, self-reinforcing quantities:
// phi (self-reinforcement), rho (feedback gain), and the strand's
// contribution to the global theta field.
type ResonanceState struct {
	Phi float64 `json:"phi"`
	Rho float64 `json:"rho"`
	ThetaContribution float64 `json:"theta_contribution"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResonanceBounds are the hard clamps applied to Phi and Rho. Configured, never hard-coded.
type ResonanceBounds struct {
	PhiMin float64
	PhiMax float64
	RhoMin float64
	RhoMax float64
}

// Clamp returns s with Phi and Rho restricted to b, reporting whether either
// value was out of bounds (so the caller can raise BoundExceeded).
func (b ResonanceBounds) Clamp(s ResonanceState) (ResonanceState, bool) {
	exceeded := false
	if s.Phi > b.PhiMax {
		s.Phi = b.PhiMax
		exceeded = true
	} else if s.Phi < b.PhiMin {
		s.Phi = b.PhiMin
		exceeded = true
	}
	if s.Rho > b.RhoMax {
		s.Rho = b.RhoMax
		exceeded = true
	} else if s.Rho < b.RhoMin {
		s.Rho = b.RhoMin
		exceeded = true
	}
	return s, exceeded
}

// Telemetry carries the running per-strand estimates computed over the
// configured window W.
type Telemetry struct {
	SuccessRate float64 `json:"success_rate"`
	ConfirmationRate float64 `json:"confirmation_rate"`
	ContradictionRate float64 `json:"contradiction_rate"`
	Surprise float64 `json:"surprise"`
}

// Scores carries the fitness components and the composite selection score
// they combine into.
type Scores struct {
	SigSigma float64 `json:"sig_sigma"`
	SigConfidence float64 `json:"sig_confidence"`
	Accuracy float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Stability float64 `json:"stability"`
	Orthogonality float64 `json:"orthogonality"`
	Cost float64 `json:"cost"`
	Selection float64 `json:"selection"`
}

// ComputeSelection computes S = (accuracy*precision*stability*orthogonality)/cost.
// Cost is floored to avoid division blow-up when fees/slippage round to zero.
func (s Scores) ComputeSelection() float64 {
	cost := s.Cost
	if cost <= 0 {
		cost = 1e-6
	}
	return (s.Accuracy * s.Precision * s.Stability * s.Orthogonality) / cost
}

// Enhanced computes S* = S * (1 + wRes * clip(phi*rho*surprise, 0, 1)), the
// dispatcher's prioritization score.
func Enhanced(selection, phi, rho, surprise, wRes float64) float64 {
	boost := phi * rho * surprise
	if boost < 0 {
		boost = 0
	} else if boost > 1 {
		boost = 1
	}
	return selection * (1 + wRes*boost)
}
