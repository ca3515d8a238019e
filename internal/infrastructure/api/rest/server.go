// Package rest exposes the CIL's query and admin/control HTTP surface:
// read-only access to strands/predictions/braids/plans, and a JWT-gated
// control endpoint for tuning the running system without a restart.
package rest

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/smilemakc/cil/internal/application/cil"
	"github.com/smilemakc/cil/internal/domain"
)

// Server wires the CIL's domain store and application-layer components to an
// http.ServeMux, with plain method-and-path routing.
type Server struct {
	store domain.StrandStore
	dispatcher *cil.Dispatcher
	learning *cil.LearningLoop
	resonance *cil.ResonanceEngine
	backpressure *cil.BackpressureController

	auth *controlAuth

	mux *http.ServeMux
	log zerolog.Logger
}

// NewServer builds a Server wired to its collaborators. dispatcher, learning,
// resonance and backpressure may be nil, in which case the control endpoints
// they back respond 503 rather than panicking.
func NewServer(store domain.StrandStore, dispatcher *cil.Dispatcher, learning *cil.LearningLoop, resonance *cil.ResonanceEngine, backpressure *cil.BackpressureController, jwtSigningKey []byte, adminPasswordHash string, log zerolog.Logger) *Server {
	s := &Server{
		store: store, dispatcher: dispatcher, learning: learning, resonance: resonance, backpressure: backpressure,
		auth: newControlAuth(jwtSigningKey, adminPasswordHash),
		mux: http.NewServeMux(),
		log: log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/v1/strands", s.handleListStrands)
	s.mux.HandleFunc("GET /api/v1/strands/{id}", s.handleGetStrand)

	s.mux.HandleFunc("GET /api/v1/predictions", s.handleListPredictions)
	s.mux.HandleFunc("POST /api/v1/predictions/cancel", s.handleCancelDerived)

	s.mux.HandleFunc("GET /api/v1/braids", s.handleListBraids)
	s.mux.HandleFunc("GET /api/v1/plans", s.handleListPlans)

	s.mux.HandleFunc("POST /api/v1/control/login", s.handleControlLogin)
	s.mux.HandleFunc("GET /api/v1/control/status", s.withAuth(s.handleControlStatus))
	s.mux.HandleFunc("POST /api/v1/control/llm", s.withAuth(s.handleControlLLM))
	s.mux.HandleFunc("POST /api/v1/control/braid-size", s.withAuth(s.handleControlBraidSize))
	s.mux.HandleFunc("POST /api/v1/control/resonance", s.withAuth(s.handleControlResonanceTunables))
	s.mux.HandleFunc("POST /api/v1/control/resonance/sweep", s.withAuth(s.handleControlResonanceSweep))
	s.mux.HandleFunc("POST /api/v1/control/cluster/sweep", s.withAuth(s.handleControlClusterSweep))
}

// Handler returns the fully middleware-wrapped handler to pass to
// http.Server, chaining recovery, logging and CORS around the router.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = corsMiddleware(h)
	h = loggingMiddleware(s.log, h)
	h = recoveryMiddleware(s.log, h)
	return h
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}
