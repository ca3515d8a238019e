package cil

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	app "github.com/smilemakc/cil/internal/application/cil"
	"github.com/smilemakc/cil/internal/domain"
	"github.com/smilemakc/cil/internal/infrastructure/config"
	"github.com/smilemakc/cil/internal/utils"
)

// Kernel wires a complete Central Intelligence Layer instance — prediction
// engine, cluster engine, learning loop, resonance engine and dispatcher —
// around a single StrandStore, and exposes the few entry points a calling
// process needs: feeding in newly detected patterns and letting the
// background sweeps take it from there.
type Kernel struct {
	store domain.StrandStore

	assembler *app.GroupAssembler
	prediction *app.PredictionEngine
	clusters *app.ClusterEngine
	learning *app.LearningLoop
	resonance *app.ResonanceEngine
	backpressure *app.BackpressureController
	dispatcher *app.Dispatcher

	log zerolog.Logger
}

// KernelOption configures optional Kernel collaborators at construction time.
type KernelOption func(*kernelOptions)

type kernelOptions struct {
	llm app.LLMPort
	marketData app.MarketDataPort
	clock app.Clock
}

// WithLLM wires an LLMPort for predictions and braid synthesis. Without one,
// the kernel runs its code-only fallback paths exclusively.
func WithLLM(llm app.LLMPort) KernelOption {
	return func(o *kernelOptions) { o.llm = llm }
}

// WithMarketData wires the OHLCV source the dispatcher's resolution sweep
// uses to score prediction outcomes.
func WithMarketData(marketData app.MarketDataPort) KernelOption {
	return func(o *kernelOptions) { o.marketData = marketData }
}

// WithClock overrides the dispatcher's time source, for deterministic tests.
func WithClock(clock app.Clock) KernelOption {
	return func(o *kernelOptions) { o.clock = clock }
}

// NewKernel builds a Kernel from a strand store and configuration, wiring
// every application-layer component the dispatcher's sweeps and the
// prediction path depend on.
func NewKernel(store domain.StrandStore, cfg *config.Config, log zerolog.Logger, opts ...KernelOption) *Kernel {
	o := &kernelOptions{clock: app.SystemClock{}}
	for _, opt := range opts {
		opt(o)
	}

	// Callers that build *config.Config by hand rather than via config.Load()
	// (embedding this module in their own process) get the same fallbacks
	// Load() would have applied, instead of silently running with disabled
	// knobs at their zero value.
	cfg.MinBraidSize = utils.DefaultValue(cfg.MinBraidSize, 3)
	cfg.MaxBraidSize = utils.DefaultValue(cfg.MaxBraidSize, 8)
	cfg.ContextSaturationN = utils.DefaultValue(cfg.ContextSaturationN, 10)
	cfg.BraidQueueHighWatermark = utils.DefaultValue(cfg.BraidQueueHighWatermark, 200)
	if cfg.TimeframeWeights == nil {
		cfg.TimeframeWeights = config.DefaultTimeframeWeights()
	}

	backpressure := app.NewBackpressureController(
		cfg.LLMErrorRateThreshold, cfg.BraidQueueHighWatermark, cfg.MinBraidSize, cfg.MaxBraidSize, 200)

	contextRetriever := app.NewContextRetriever(store, cfg.SimilarityThreshold, cfg.ContextSaturationN)
	predictionEngine := app.NewPredictionEngine(store, contextRetriever, o.llm, o.marketData, backpressure, cfg.TimeframeWeights, cfg.LLM.Deadline, log)
	clusterEngine := app.NewClusterEngine(store, cfg.BraidQualityGate.MinSelection)
	resonanceEngine := app.NewResonanceEngine(store, cfg.Resonance, cfg.WRes)

	circuitBreaker := app.NewCircuitBreaker(app.DefaultCircuitBreakerConfig())
	backoff := app.DefaultBackoffPolicy()
	learningLoop := app.NewLearningLoop(store, o.llm, circuitBreaker, backoff, backpressure, cfg.MinBraidSize, cfg.MaxBraidSize, cfg.BraidQualityGate, log)

	var dispatcher *app.Dispatcher
	if o.marketData != nil {
		outcomeAnalyzer := app.NewOutcomeAnalyzer(store, o.marketData)
		dispatcherCfg := app.DispatcherConfig{
			ResolutionSweepInterval: cfg.ResolutionSweepInterval,
			ClusterSweepInterval: cfg.ClusterSweepInterval,
			ResonanceSweepInterval: cfg.ResonanceSweepInterval,
			BraidQueueHighWatermark: cfg.BraidQueueHighWatermark,
			LLMErrorRateThreshold: cfg.LLMErrorRateThreshold,
		}
		dispatcher = app.NewDispatcher(store, o.marketData, outcomeAnalyzer, clusterEngine, learningLoop, resonanceEngine, backpressure, dispatcherCfg, log, o.clock)
	}

	return &Kernel{
		store: store,
		assembler: app.NewGroupAssembler(),
		prediction: predictionEngine,
		clusters: clusterEngine,
		learning: learningLoop,
		resonance: resonanceEngine,
		backpressure: backpressure,
		dispatcher: dispatcher,
		log: log,
	}
}

// Store returns the strand store the kernel was built around.
func (k *Kernel) Store() domain.StrandStore { return k.store }

// Dispatcher returns the background-sweep dispatcher, or nil if the kernel
// was built without market-data access (the dispatcher's resolution sweep
// has nothing to resolve predictions against without it).
func (k *Kernel) Dispatcher() *app.Dispatcher { return k.dispatcher }

// LearningLoop returns the learning loop, for callers that need its
// braid-size control knobs (e.g. the control REST surface).
func (k *Kernel) LearningLoop() *app.LearningLoop { return k.learning }

// ResonanceEngine returns the resonance engine, for its tunable knobs.
func (k *Kernel) ResonanceEngine() *app.ResonanceEngine { return k.resonance }

// Backpressure returns the backpressure controller, for its force-degrade toggle.
func (k *Kernel) Backpressure() *app.BackpressureController { return k.backpressure }

// Run starts the dispatcher's background sweeps and blocks until ctx is
// cancelled. A kernel built without market data has no dispatcher to run;
// callers must still drive AssembleGroups/Predict directly in that case.
func (k *Kernel) Run(ctx context.Context) {
	if k.dispatcher == nil {
		<-ctx.Done()
		return
	}
	k.dispatcher.Run(ctx)
}

// AssembleGroups runs the group assembler (C2) over one asset's freshly
// observed leaf patterns, producing up to six group shapes ready to be
// turned into predictions via Predict.
func (k *Kernel) AssembleGroups(asset string, patterns []PatternObservation) []Group {
	return k.assembler.Assemble(asset, patterns)
}

// Predict runs the prediction engine (C4) over one assembled group, scoring
// it against prior outcomes and, LLM permitting, an AI-narrated prediction.
// The resulting strand is appended to the store before being returned.
func (k *Kernel) Predict(ctx context.Context, g Group, now time.Time) (*domain.Strand, error) {
	return k.prediction.CreatePrediction(ctx, g, now)
}
