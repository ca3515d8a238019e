package cil

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smilemakc/cil/internal/domain"
)

// DispatcherConfig carries the sweep cadences and backpressure thresholds
// that drive C11.
type DispatcherConfig struct {
	ResolutionSweepInterval time.Duration
	ClusterSweepInterval time.Duration
	ResonanceSweepInterval time.Duration

	BraidQueueHighWatermark int
	LLMErrorRateThreshold float64
}

// Dispatcher implements C11: the scheduler that drives the resolution sweep,
// cluster sweep, resonance sweeps, and retry queue. It owns no
// business logic itself; it triggers the other components on their
// configured cadence and propagates cancellations.
type Dispatcher struct {
	store domain.StrandStore
	marketData MarketDataPort
	outcomes *OutcomeAnalyzer
	clusters *ClusterEngine
	learning *LearningLoop
	resonance *ResonanceEngine
	backpressure *BackpressureController
	cfg DispatcherConfig
	log zerolog.Logger
	clock Clock

	mu sync.Mutex
	retries map[retryKey]int // attempt count per (cluster_type, cluster_key, braid_level)
}

type retryKey struct {
	clusterType domain.ClusterType
	clusterKey string
	braidLevel int
}

// NewDispatcher builds a Dispatcher wired to its collaborators. backpressure
// may be nil to disable queue-depth-driven min_braid_size escalation.
func NewDispatcher(store domain.StrandStore, marketData MarketDataPort, outcomes *OutcomeAnalyzer, clusters *ClusterEngine, learning *LearningLoop, resonance *ResonanceEngine, backpressure *BackpressureController, cfg DispatcherConfig, log zerolog.Logger, clock Clock) *Dispatcher {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Dispatcher{
		store: store, marketData: marketData, outcomes: outcomes, clusters: clusters, learning: learning, resonance: resonance,
		backpressure: backpressure, cfg: cfg, log: log, clock: clock, retries: make(map[retryKey]int),
	}
}

// Run blocks, driving all sweeps on their configured cadence until ctx is
// cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	tickers := []struct {
		interval time.Duration
		fn func(context.Context)
	}{
		{d.cfg.ResolutionSweepInterval, d.ResolutionSweep},
		{d.cfg.ClusterSweepInterval, d.ClusterSweep},
		{d.cfg.ResonanceSweepInterval, d.ResonanceSweep},
	}
	for _, t := range tickers {
		if t.interval <= 0 {
			continue
		}
		wg.Add(1)
		go func(interval time.Duration, fn func(context.Context)) {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						fn(ctx)
				}
			}
		}(t.interval, t.fn)
	}
	wg.Wait()
}

// ResolutionSweep scans active predictions for completion conditions and
// hands completed ones to the outcome analyzer.
func (d *Dispatcher) ResolutionSweep(ctx context.Context) {
	now := d.clock.Now()
	predictions, err := d.store.Query(ctx, domain.QueryFilter{Kind: domain.KindPrediction})
	if err != nil {
		d.log.Error().Err(err).Msg("resolution sweep: query failed")
		return
	}
	for _, p := range predictions {
		if p.TrackingStatus() != domain.StatusActive {
			continue
		}
		if err := d.resolveIfDue(ctx, p, now); err != nil {
			d.log.Error().Err(err).Str("prediction_id", p.ID().String()).Msg("resolution sweep: resolve failed")
		}
	}
}

// resolveIfDue checks p against observed bars: if target/stop has been hit,
// or max_hold_duration has elapsed without a hit, it marks p completed, runs
// C5's OutcomeAnalyzer over the observed window, and hands the resulting
// review to C6 for cluster-slot assignment. With no
// market data port wired, it falls back to expiring purely on timeout.
func (d *Dispatcher) resolveIfDue(ctx context.Context, p *domain.Strand, now time.Time) error {
	var payload domain.PredictionContent
	if err := p.Content().Decode(&payload); err != nil {
		return err
	}
	elapsed := now.Sub(p.CreatedAt()).Milliseconds()
	timedOut := elapsed >= payload.MaxHoldDuration

	if d.marketData == nil || d.outcomes == nil {
		if !timedOut {
			return nil
		}
		return d.expire(ctx, p, now)
	}

	bars, err := d.marketData.OHLCV(ctx, p.Symbol(), p.Timeframe(), p.CreatedAt(), now)
	if err != nil {
		d.log.Warn().Err(err).Str("prediction_id", p.ID().String()).Msg("resolution sweep: market data unavailable")
		if timedOut {
			return d.expire(ctx, p, now)
		}
		return nil
	}

	hit := false
	for _, bar := range bars {
		if (payload.TargetPrice > 0 && bar.High >= payload.TargetPrice) || (payload.StopLoss > 0 && bar.Low <= payload.StopLoss) {
			hit = true
			break
		}
	}
	if !hit && !timedOut {
		return nil
	}

	if err := p.TransitionStatus(domain.StatusCompleted, now); err != nil {
		return err
	}
	status := domain.StatusCompleted
	if err := d.store.UpdateMutableFields(ctx, p.ID(), domain.MutablePatch{TrackingStatus: &status}); err != nil {
		return err
	}

	review, err := d.outcomes.Analyze(ctx, p, bars, now)
	if err != nil {
		return err
	}
	if d.clusters != nil {
		if err := d.clusters.Assign(ctx, review); err != nil {
			return err
		}
	}
	return nil
}

// expire transitions p to expired without a review, used when it timed out
// with no market data available to determine an outcome.
func (d *Dispatcher) expire(ctx context.Context, p *domain.Strand, now time.Time) error {
	if err := p.TransitionStatus(domain.StatusExpired, now); err != nil {
		return err
	}
	status := domain.StatusExpired
	return d.store.UpdateMutableFields(ctx, p.ID(), domain.MutablePatch{TrackingStatus: &status})
}

// ClusterSweep re-evaluates every cluster family's slots for newly eligible
// braids, applying backpressure by raising the effective min_braid_size when
// the braid queue backs up past the high watermark.
func (d *Dispatcher) ClusterSweep(ctx context.Context) {
	now := d.clock.Now()
	reviews, err := d.store.Query(ctx, domain.QueryFilter{Kind: domain.KindPredictionReview, Limit: d.cfg.BraidQueueHighWatermark * 2})
	if err != nil {
		d.log.Error().Err(err).Msg("cluster sweep: query failed")
		return
	}

	if d.backpressure != nil {
		queueDepth := 0
		for _, r := range reviews {
			for _, slot := range r.ClusterKey() {
				if !slot.Consumed {
					queueDepth++
				}
			}
		}
		d.learning.SetMinBraidSize(d.backpressure.EffectiveMinBraidSize(queueDepth))
	}

	seen := make(map[retryKey]bool)
	for _, r := range reviews {
		for _, slot := range r.ClusterKey() {
			if slot.Consumed {
				continue
			}
			key := retryKey{clusterType: slot.ClusterType, clusterKey: slot.ClusterKey, braidLevel: slot.BraidLevel}
			if seen[key] {
				continue
			}
			seen[key] = true
			d.processSlot(ctx, key, now)
		}
	}
}

func (d *Dispatcher) processSlot(ctx context.Context, key retryKey, now time.Time) {
	d.mu.Lock()
	attempt := d.retries[key] + 1
	d.mu.Unlock()

	result, err := d.learning.ProcessCluster(ctx, key.clusterType, key.clusterKey, key.braidLevel, attempt, now)
	if err != nil {
		d.mu.Lock()
		d.retries[key] = attempt
		d.mu.Unlock()
		d.log.Warn().Err(err).Str("cluster_type", string(key.clusterType)).Str("cluster_key", key.clusterKey).
		Int("attempt", attempt).Msg("cluster sweep: braid synthesis deferred")
		return
	}

	d.mu.Lock()
	if result.Braid != nil || result.Parked {
		delete(d.retries, key)
	}
	d.mu.Unlock()

	// A freshly synthesized braid is itself a prediction_review (one braid
	// level up) and must receive its own cluster_key slots before it can
	// re-enter the cluster sweep and braid again at the next level.
	if result.Braid != nil && d.clusters != nil {
		if err := d.clusters.Assign(ctx, result.Braid); err != nil {
			d.log.Error().Err(err).Str("strand_id", result.Braid.ID().String()).
			Msg("cluster sweep: failed to assign cluster slots to synthesized braid")
		}
	}
}

// ResonanceSweep runs the telemetry and resonance ticks, then advances the
// global field θ from the active cohort.
func (d *Dispatcher) ResonanceSweep(ctx context.Context) {
	now := d.clock.Now()
	active, err := d.store.Query(ctx, domain.QueryFilter{})
	if err != nil {
		d.log.Error().Err(err).Msg("resonance sweep: query failed")
		return
	}

	live := make([]*domain.Strand, 0, len(active))
	for _, s := range active {
		if s.TrackingStatus() == domain.StatusActive || isBraid(s) {
			live = append(live, s)
		}
		// UpdateResonance returns BoundExceeded after clamping, and can also
		// return a store write error; either is logged and swallowed rather
		// than treated as a failed sweep.
		if _, err := d.resonance.UpdateResonance(ctx, s, now); err != nil {
			d.log.Info().Err(err).Str("strand_id", s.ID().String()).Msg("resonance sweep: bound exceeded, clamped")
		}
	}
	theta := d.resonance.TickGlobalField(live)
	d.log.Debug().Float64("theta", theta).Int("active_count", len(live)).Msg("global field tick")
}

// CancelDerived propagates a group invalidation to every still-active
// prediction derived from it: it queries every prediction strand and
// cancels the active ones whose payload carries groupSignature, since
// strands don't carry a reverse child index.
func (d *Dispatcher) CancelDerived(ctx context.Context, groupSignature string, now time.Time) error {
	predictions, err := d.store.Query(ctx, domain.QueryFilter{Kind: domain.KindPrediction})
	if err != nil {
		return err
	}
	for _, p := range predictions {
		if p.TrackingStatus() != domain.StatusActive {
			continue
		}
		var payload domain.PredictionContent
		if err := p.Content().Decode(&payload); err != nil {
			continue
		}
		if payload.GroupSignature != groupSignature {
			continue
		}
		status := domain.StatusCancelled
		patch := domain.MutablePatch{TrackingStatus: &status}
		if err := d.store.UpdateMutableFields(ctx, p.ID(), patch); err != nil {
			return err
		}
	}
	return nil
}
