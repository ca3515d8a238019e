package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/smilemakc/cil/internal/application/cil"
	"github.com/smilemakc/cil/internal/infrastructure/api/rest"
	"github.com/smilemakc/cil/internal/infrastructure/config"
	"github.com/smilemakc/cil/internal/infrastructure/llm"
	"github.com/smilemakc/cil/internal/infrastructure/logger"
	"github.com/smilemakc/cil/internal/infrastructure/marketdata"
	"github.com/smilemakc/cil/internal/infrastructure/monitoring"
	"github.com/smilemakc/cil/internal/infrastructure/storage"
	"github.com/smilemakc/cil/internal/infrastructure/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogPretty)
	log.Info().Int("port", cfg.Port).Msg("starting cil server")

	store := storage.NewBunStore(cfg.DatabaseDSN)
	ctx := context.Background()
	if err := store.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database schema")
	}
	log.Info().Msg("database schema initialized")

	// Websocket subscription feed and the monitoring fan-out that sits in
	// front of it (console logger plus metrics, composed as a single
	// observer), wired by wrapping the store in a decorator rather than
	// threading an observer through every cil constructor.
	hub := websocket.NewHub(log)
	go hub.Run()

	metricsCollector := monitoring.NewMetricsCollector()
	consoleLogger := monitoring.NewDefaultConsoleLogger()

	observerManager := monitoring.NewStrandObserverManager()
	observerManager.AddObserver(websocket.NewSocketObserver(hub))
	observerManager.AddObserver(monitoring.NewLoggingObserver(consoleLogger, metricsCollector))

	observedStore := websocket.NewObservingStore(store, observerManager)

	marketData := marketdata.NewFixtureStore()

	backpressure := cil.NewBackpressureController(
		cfg.LLMErrorRateThreshold, cfg.BraidQueueHighWatermark, cfg.MinBraidSize, cfg.MaxBraidSize, 200)

	var llmPort cil.LLMPort
	if cfg.LLM.APIKey != "" {
		llmPort = llm.NewPort(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxRetries, int64(cfg.LLM.MaxInFlight), log)
	}

	assembler := cil.NewGroupAssembler()

	contextRetriever := cil.NewContextRetriever(observedStore, cfg.SimilarityThreshold, cfg.ContextSaturationN)
	predictionEngine := cil.NewPredictionEngine(observedStore, contextRetriever, llmPort, marketData, backpressure, cfg.TimeframeWeights, cfg.LLM.Deadline, log)
	outcomeAnalyzer := cil.NewOutcomeAnalyzer(observedStore, marketData)
	clusterEngine := cil.NewClusterEngine(observedStore, cfg.BraidQualityGate.MinSelection)
	resonanceEngine := cil.NewResonanceEngine(observedStore, cfg.Resonance, cfg.WRes)

	circuitBreaker := cil.NewCircuitBreaker(cil.DefaultCircuitBreakerConfig())
	backoff := cil.DefaultBackoffPolicy()
	learningLoop := cil.NewLearningLoop(observedStore, llmPort, circuitBreaker, backoff, backpressure, cfg.MinBraidSize, cfg.MaxBraidSize, cfg.BraidQualityGate, log)

	dispatcherCfg := cil.DispatcherConfig{
		ResolutionSweepInterval: cfg.ResolutionSweepInterval,
		ClusterSweepInterval: cfg.ClusterSweepInterval,
		ResonanceSweepInterval: cfg.ResonanceSweepInterval,
		BraidQueueHighWatermark: cfg.BraidQueueHighWatermark,
		LLMErrorRateThreshold: cfg.LLMErrorRateThreshold,
	}
	dispatcher := cil.NewDispatcher(observedStore, marketData, outcomeAnalyzer, clusterEngine, learningLoop, resonanceEngine, backpressure, dispatcherCfg, log, cil.SystemClock{})

	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	go dispatcher.Run(dispatchCtx)
	log.Info().Msg("dispatcher sweeps started")

	restServer := rest.NewServer(observedStore, dispatcher, learningLoop, resonanceEngine, backpressure, []byte(cfg.JWTSigningKey), cfg.AdminPasswordHash, log)

	ingest := newIngestHandler(assembler, predictionEngine, log)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", restServer)
	mux.Handle("/api/v1/ingest/patterns", ingest)
	mux.Handle("/ws", websocket.NewHandler(hub, websocket.NewJWTAuth([]byte(cfg.JWTSigningKey)), log))

	httpServer := &http.Server{
		Addr: ":" + strconv.Itoa(cfg.Port),
		Handler: mux,
		ReadTimeout: 30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("address", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancelDispatch()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server exited gracefully")
}
