package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/smilemakc/cil/internal/application/cil"
)

// ingestHandler exposes the group-assembly and prediction path (C2/C4) over
// HTTP: the leaf pattern detectors this core treats as external collaborators
// POST their freshly observed patterns here, one asset's cycle at a time,
// and get back the predictions the assembled groups produced.
type ingestHandler struct {
	assembler *cil.GroupAssembler
	prediction *cil.PredictionEngine
	log zerolog.Logger
}

func newIngestHandler(assembler *cil.GroupAssembler, prediction *cil.PredictionEngine, log zerolog.Logger) *ingestHandler {
	return &ingestHandler{assembler: assembler, prediction: prediction, log: log}
}

type ingestPatternsRequest struct {
	Asset string `json:"asset"`
	Patterns []cil.PatternObservation `json:"patterns"`
}

type ingestPredictionResult struct {
	GroupCode cil.GroupCode `json:"group_code"`
	StrandID string `json:"strand_id,omitempty"`
	Error string `json:"error,omitempty"`
}

type ingestPatternsResponse struct {
	Predictions []ingestPredictionResult `json:"predictions"`
}

// ServeHTTP handles POST /api/v1/ingest/patterns: assembles every group
// shape the asset's pattern set supports, then runs each through the
// prediction engine.
func (h *ingestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ingestPatternsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Asset == "" || len(req.Patterns) == 0 {
		http.Error(w, "asset and patterns are required", http.StatusBadRequest)
		return
	}

	groups := h.assembler.Assemble(req.Asset, req.Patterns)
	now := time.Now()

	resp := ingestPatternsResponse{Predictions: make([]ingestPredictionResult, 0, len(groups))}
	for _, g := range groups {
		strand, err := h.prediction.CreatePrediction(r.Context(), g, now)
		result := ingestPredictionResult{GroupCode: g.Code}
		if err != nil {
			h.log.Error().Err(err).Str("asset", req.Asset).Str("group_code", string(g.Code)).Msg("prediction failed")
			result.Error = err.Error()
		} else {
			result.StrandID = strand.ID().String()
		}
		resp.Predictions = append(resp.Predictions, result)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("failed to encode ingest response")
	}
}
