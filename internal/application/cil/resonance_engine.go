package cil

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/smilemakc/cil/internal/domain"
	domerrors "github.com/smilemakc/cil/internal/domain/errors"
	"github.com/smilemakc/cil/internal/infrastructure/config"
)

// ResonanceEngine implements C9's three event-driven workers: the telemetry
// worker, the per-strand resonance worker, and the global field tick every
// active strand carries.
type ResonanceEngine struct {
	store domain.StrandStore

	mu sync.RWMutex
	cfg config.ResonanceConfig
	bounds domain.ResonanceBounds
	wRes float64

	field *GlobalField
}

// NewResonanceEngine builds a ResonanceEngine wired to store, using cfg's
// constants and bounds.
func NewResonanceEngine(store domain.StrandStore, cfg config.ResonanceConfig, wRes float64) *ResonanceEngine {
	bounds := domain.ResonanceBounds{PhiMin: cfg.PhiMin, PhiMax: cfg.PhiMax, RhoMin: cfg.RhoMin, RhoMax: cfg.RhoMax}
	return &ResonanceEngine{store: store, cfg: cfg, bounds: bounds, wRes: wRes, field: NewGlobalField()}
}

// UpdateTelemetry recomputes a strand's telemetry over the outcomes observed
// in the configured window, then persists it
// through the mutable subset.
func (e *ResonanceEngine) UpdateTelemetry(ctx context.Context, strand *domain.Strand, window []domain.Outcome, now time.Time) error {
	t := computeTelemetry(window)
	patch := domain.MutablePatch{Telemetry: &t}
	return e.store.UpdateMutableFields(ctx, strand.ID(), patch)
}

// computeTelemetry derives success/confirmation/contradiction rates and a
// surprise estimate from the outcome window. A review "confirms" the
// strand's prior direction when it hits target without hitting stop first,
// and "contradicts" it when it hits stop first; surprise is the mean
// absolute gap between the realized return and the maximum favorable
// excursion.
func computeTelemetry(window []domain.Outcome) domain.Telemetry {
	if len(window) == 0 {
		return domain.Telemetry{}
	}
	var hits, confirms, contradicts, surpriseSum float64
	for _, o := range window {
		if o.HitTarget {
			hits++
		}
		switch o.FirstHit {
			case "target":
				confirms++
			case "stop":
				contradicts++
		}
		surpriseSum += math.Abs(o.RealizedReturn - o.MaxFavorable)
	}
	n := float64(len(window))
	return domain.Telemetry{
		SuccessRate: hits / n,
		ConfirmationRate: confirms / n,
		ContradictionRate: contradicts / n,
		Surprise: surpriseSum / n,
	}
}

// UpdateResonance applies the resonance worker's update equations:
// `Δφ = (sr + λ₁·cr − λ₂·xr) − φ_prev`, `ρ ← clip(ρ_prev + α·Δφ,
// ρ_min, ρ_max)`, `φ ← (1−γ)·(φ_prev·ρ) + γ·φ_prev`. Persists the clamped
// result and returns whether the raw update would have exceeded bounds as
// BoundExceeded.
func (e *ResonanceEngine) UpdateResonance(ctx context.Context, strand *domain.Strand, now time.Time) (bool, error) {
	e.mu.RLock()
	cfg, bounds := e.cfg, e.bounds
	e.mu.RUnlock()

	telemetry := strand.Telemetry()
	prev := strand.ResonanceState()

	deltaPhi := (telemetry.SuccessRate + cfg.Lambda1*telemetry.ConfirmationRate - cfg.Lambda2*telemetry.ContradictionRate) - prev.Phi
	rho := clip(prev.Rho+cfg.Alpha*deltaPhi, cfg.RhoMin, cfg.RhoMax)
	phi := (1-cfg.Gamma)*(prev.Phi*rho) + cfg.Gamma*prev.Phi

	next := domain.ResonanceState{Phi: phi, Rho: rho, ThetaContribution: phi * rho}
	exceeded := strand.UpdateResonance(next, bounds, now)

	clamped := strand.ResonanceState()
	patch := domain.MutablePatch{ResonanceState: &clamped}
	if err := e.store.UpdateMutableFields(ctx, strand.ID(), patch); err != nil {
		return exceeded, err
	}
	if exceeded {
		return true, domerrors.Newf(domerrors.CodeBoundExceeded,
			"strand %s resonance update exceeded configured bounds, clamped", strand.ID())
	}
	return false, nil
}

// UpdateScores replaces a strand's fitness components, computing Selection
// from them, and persists via the mutable subset.
func (e *ResonanceEngine) UpdateScores(ctx context.Context, strand *domain.Strand, sc domain.Scores, now time.Time) error {
	sc.Selection = sc.ComputeSelection()
	patch := domain.MutablePatch{Scores: &sc}
	return e.store.UpdateMutableFields(ctx, strand.ID(), patch)
}

// Enhanced computes the dispatcher's prioritization score S* for strand,
// combining its selection score with its resonance boost.
func (e *ResonanceEngine) Enhanced(strand *domain.Strand) float64 {
	e.mu.RLock()
	wRes := e.wRes
	e.mu.RUnlock()
	rs := strand.ResonanceState()
	return domain.Enhanced(strand.Scores().Selection, rs.Phi, rs.Rho, strand.Telemetry().Surprise, wRes)
}

// Tunables reports the engine's current resonance constants and resonance
// weight, for the control endpoint's read path.
func (e *ResonanceEngine) Tunables() (config.ResonanceConfig, float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg, e.wRes
}

// SetTunables lets the admin control endpoint adjust the resonance constants
// and w_res at runtime, re-deriving the clamp bounds from cfg.
func (e *ResonanceEngine) SetTunables(cfg config.ResonanceConfig, wRes float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.wRes = wRes
	e.bounds = domain.ResonanceBounds{PhiMin: cfg.PhiMin, PhiMax: cfg.PhiMax, RhoMin: cfg.RhoMin, RhoMax: cfg.RhoMax}
}

// TickGlobalField advances the scalar field θ from the active cohort:
// `θ ← (1−δ)·θ_prev + ħ·Σ_active(φ·ρ)` where `ħ = mean_active(surprise)`.
func (e *ResonanceEngine) TickGlobalField(active []*domain.Strand) float64 {
	e.mu.RLock()
	delta := e.cfg.Delta
	e.mu.RUnlock()
	if len(active) == 0 {
		return e.field.Tick(delta, 0, 0)
	}
	var sumPhiRho, sumSurprise float64
	for _, s := range active {
		rs := s.ResonanceState()
		sumPhiRho += rs.Phi * rs.Rho
		sumSurprise += s.Telemetry().Surprise
	}
	hbar := sumSurprise / float64(len(active))
	return e.field.Tick(delta, hbar, sumPhiRho)
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GlobalField holds the single logical scalar θ. The dispatcher owns the
// one instance; reads/writes are serialized through the mutex so a tick is
// never observed half-applied.
type GlobalField struct {
	mu sync.Mutex
	theta float64
}

// NewGlobalField initializes θ at zero.
func NewGlobalField() *GlobalField {
	return &GlobalField{}
}

// Tick applies one field update and returns the new value.
func (f *GlobalField) Tick(delta, hbar, sumPhiRho float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.theta = (1-delta)*f.theta + hbar*sumPhiRho
	return f.theta
}

// Value reads the current θ.
func (f *GlobalField) Value() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.theta
}
