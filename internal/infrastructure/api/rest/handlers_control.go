package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/smilemakc/cil/internal/infrastructure/config"
)

const controlTokenTTL = 12 * time.Hour

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	ExpiresIn int64 `json:"expires_in_seconds"`
}

// handleControlLogin handles POST /api/v1/control/login, exchanging the
// configured admin password for a short-lived bearer token gating the rest
// of the control surface.
func (s *Server) handleControlLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.auth.checkPassword(req.Password) {
		s.respondError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	now := time.Now()
	token, err := s.auth.issue(controlTokenTTL, now)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to issue control token")
		s.respondError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, loginResponse{Token: token, ExpiresIn: int64(controlTokenTTL.Seconds())}, http.StatusOK)
}

type controlStatusResponse struct {
	LLMForcedOff bool `json:"llm_forced_off"`
	LLMErrorRate float64 `json:"llm_error_rate"`
	MinBraidSize int `json:"min_braid_size"`
	MaxBraidSize int `json:"max_braid_size"`
	Resonance config.ResonanceConfig `json:"resonance"`
	WRes float64 `json:"w_res"`
}

// handleControlStatus handles GET /api/v1/control/status, reporting the
// live-tunable knobs' current values.
func (s *Server) handleControlStatus(w http.ResponseWriter, r *http.Request) {
	resp := controlStatusResponse{}
	if s.backpressure != nil {
		resp.LLMForcedOff = s.backpressure.ForceDegrade()
		resp.LLMErrorRate = s.backpressure.ErrorRate()
	}
	if s.learning != nil {
		resp.MinBraidSize, resp.MaxBraidSize = s.learning.BraidSizeBounds()
	}
	if s.resonance != nil {
		resp.Resonance, resp.WRes = s.resonance.Tunables()
	}
	s.respondJSON(w, resp, http.StatusOK)
}

type controlLLMRequest struct {
	Disabled bool `json:"disabled"`
}

// handleControlLLM handles POST /api/v1/control/llm, letting an operator
// force every component onto the code-only path regardless of the observed
// error rate.
func (s *Server) handleControlLLM(w http.ResponseWriter, r *http.Request) {
	if s.backpressure == nil {
		s.respondError(w, "backpressure controller not configured", http.StatusServiceUnavailable)
		return
	}
	var req controlLLMRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.backpressure.SetForceDegrade(req.Disabled)
	s.respondJSON(w, map[string]bool{"llm_forced_off": req.Disabled}, http.StatusOK)
}

type controlBraidSizeRequest struct {
	MinBraidSize *int `json:"min_braid_size"`
	MaxBraidSize *int `json:"max_braid_size"`
}

// handleControlBraidSize handles POST /api/v1/control/braid-size, tuning
// C7's min/max braid membership thresholds at runtime.
func (s *Server) handleControlBraidSize(w http.ResponseWriter, r *http.Request) {
	if s.learning == nil {
		s.respondError(w, "learning loop not configured", http.StatusServiceUnavailable)
		return
	}
	var req controlBraidSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MinBraidSize != nil {
		s.learning.SetMinBraidSize(*req.MinBraidSize)
	}
	if req.MaxBraidSize != nil {
		s.learning.SetMaxBraidSize(*req.MaxBraidSize)
	}
	min, max := s.learning.BraidSizeBounds()
	s.respondJSON(w, map[string]int{"min_braid_size": min, "max_braid_size": max}, http.StatusOK)
}

type controlResonanceRequest struct {
	Resonance config.ResonanceConfig `json:"resonance"`
	WRes float64 `json:"w_res"`
}

// handleControlResonanceTunables handles POST /api/v1/control/resonance,
// adjusting C9's resonance constants and w_res at runtime.
func (s *Server) handleControlResonanceTunables(w http.ResponseWriter, r *http.Request) {
	if s.resonance == nil {
		s.respondError(w, "resonance engine not configured", http.StatusServiceUnavailable)
		return
	}
	var req controlResonanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.resonance.SetTunables(req.Resonance, req.WRes)
	s.respondJSON(w, map[string]string{"status": "updated"}, http.StatusOK)
}

// handleControlResonanceSweep handles POST /api/v1/control/resonance/sweep,
// triggering an out-of-band resonance tick instead of waiting for the
// dispatcher's next scheduled sweep.
func (s *Server) handleControlResonanceSweep(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		s.respondError(w, "dispatcher not configured", http.StatusServiceUnavailable)
		return
	}
	s.dispatcher.ResonanceSweep(r.Context())
	s.respondJSON(w, map[string]string{"status": "swept"}, http.StatusOK)
}

// handleControlClusterSweep handles POST /api/v1/control/cluster/sweep,
// triggering an out-of-band cluster sweep.
func (s *Server) handleControlClusterSweep(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		s.respondError(w, "dispatcher not configured", http.StatusServiceUnavailable)
		return
	}
	s.dispatcher.ClusterSweep(r.Context())
	s.respondJSON(w, map[string]string{"status": "swept"}, http.StatusOK)
}
