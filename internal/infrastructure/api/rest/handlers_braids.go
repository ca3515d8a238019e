package rest

import (
	"net/http"

	"github.com/smilemakc/cil/internal/domain"
)

// handleListBraids handles GET /api/v1/braids?cluster_type=&cluster_key=&
// braid_level=&limit=, the query-side view of C7's synthesized-braid output.
// A braid is a prediction_review one or more levels above the reviews it was
// synthesized from, so it shares Kind with level-1 reviews and is
// distinguished only by braid_level > 1.
func (s *Server) handleListBraids(w http.ResponseWriter, r *http.Request) {
	filter := queryFilterFromRequest(r)
	filter.Kind = domain.KindPredictionReview
	requestedLevel := filter.BraidLevel

	braids, err := s.store.Query(r.Context(), filter)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	out := make([]strandResponse, 0, len(braids))
	for _, b := range braids {
		if requestedLevel == 0 && b.BraidLevel() <= 1 {
			continue
		}
		out = append(out, toStrandResponse(b))
	}
	s.respondJSON(w, out, http.StatusOK)
}

// handleListPlans handles GET /api/v1/plans?symbol=&timeframe=&limit=, the
// query-side view of C10's conditional_plan output.
func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	filter := queryFilterFromRequest(r)
	filter.Kind = domain.KindConditionalPlan

	plans, err := s.store.Query(r.Context(), filter)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	out := make([]strandResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, toStrandResponse(p))
	}
	s.respondJSON(w, out, http.StatusOK)
}
