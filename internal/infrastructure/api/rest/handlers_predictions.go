package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/smilemakc/cil/internal/domain"
)

// handleListPredictions handles GET /api/v1/predictions?status=&symbol=&
// timeframe=&limit=, layering a tracking_status filter on top of the generic
// strand query since StrandStore.Query itself doesn't index on it (the
// filter set is kind/scope/time/tags/cluster_key only).
func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	filter := queryFilterFromRequest(r)
	filter.Kind = domain.KindPrediction

	predictions, err := s.store.Query(r.Context(), filter)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	status := domain.TrackingStatus(r.URL.Query().Get("status"))
	out := make([]strandResponse, 0, len(predictions))
	for _, p := range predictions {
		if status != "" && p.TrackingStatus() != status {
			continue
		}
		out = append(out, toStrandResponse(p))
	}
	s.respondJSON(w, out, http.StatusOK)
}

type cancelDerivedRequest struct {
	GroupSignature string `json:"group_signature"`
}

// handleCancelDerived handles POST /api/v1/predictions/cancel, propagating a
// group invalidation to every still-active prediction derived from it.
func (s *Server) handleCancelDerived(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		s.respondError(w, "dispatcher not configured", http.StatusServiceUnavailable)
		return
	}

	var req cancelDerivedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.GroupSignature == "" {
		s.respondError(w, "group_signature is required", http.StatusBadRequest)
		return
	}

	if err := s.dispatcher.CancelDerived(r.Context(), req.GroupSignature, time.Now()); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, map[string]string{"status": "cancelled"}, http.StatusOK)
}
