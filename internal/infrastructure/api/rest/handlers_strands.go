package rest

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/smilemakc/cil/internal/domain"
)

// strandResponse is the wire shape of a strand for the query surface: every
// field a dashboard or operator script needs, with Content passed through
// as-is since its shape is discriminated by Kind.
type strandResponse struct {
	ID string `json:"id"`
	Kind domain.Kind `json:"kind"`
	BraidLevel int `json:"braid_level"`
	Symbol string `json:"symbol,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	TrackingStatus domain.TrackingStatus `json:"tracking_status,omitempty"`
	Tags []string `json:"tags,omitempty"`
	ClusterKey domain.ClusterSlots `json:"cluster_key,omitempty"`
	Lesson string `json:"lesson,omitempty"`
	ResonanceState domain.ResonanceState `json:"resonance_state"`
	Telemetry domain.Telemetry `json:"telemetry"`
	Scores domain.Scores `json:"scores"`
	Content domain.Content `json:"content,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toStrandResponse(s *domain.Strand) strandResponse {
	return strandResponse{
		ID: s.ID().String(), Kind: s.Kind(), BraidLevel: s.BraidLevel(),
		Symbol: s.Symbol(), Timeframe: s.Timeframe(), TrackingStatus: s.TrackingStatus(),
		Tags: s.Tags(), ClusterKey: s.ClusterKey(), Lesson: s.Lesson(),
		ResonanceState: s.ResonanceState(), Telemetry: s.Telemetry(), Scores: s.Scores(),
		Content: s.Content(),
		CreatedAt: s.CreatedAt().Format("2006-01-02T15:04:05.000Z07:00"),
		UpdatedAt: s.UpdatedAt().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// queryFilterFromRequest builds a domain.QueryFilter from URL query
// parameters, the read-side counterpart of StrandStore.Query.
func queryFilterFromRequest(r *http.Request) domain.QueryFilter {
	q := r.URL.Query()
	filter := domain.QueryFilter{
		Kind: domain.Kind(q.Get("kind")),
		Symbol: q.Get("symbol"),
		Timeframe: q.Get("timeframe"),
		ClusterType: domain.ClusterType(q.Get("cluster_type")),
		ClusterKey: q.Get("cluster_key"),
	}
	if v, err := strconv.Atoi(q.Get("braid_level")); err == nil {
		filter.BraidLevel = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = v
	} else {
		filter.Limit = 100
	}
	if tags, ok := q["tag"]; ok {
		filter.Tags = tags
	}
	return filter
}

// handleListStrands handles GET /api/v1/strands?kind=&symbol=&timeframe=&
// braid_level=&cluster_type=&cluster_key=&tag=&limit=
func (s *Server) handleListStrands(w http.ResponseWriter, r *http.Request) {
	strands, err := s.store.Query(r.Context(), queryFilterFromRequest(r))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	out := make([]strandResponse, 0, len(strands))
	for _, st := range strands {
		out = append(out, toStrandResponse(st))
	}
	s.respondJSON(w, out, http.StatusOK)
}

// handleGetStrand handles GET /api/v1/strands/{id}
func (s *Server) handleGetStrand(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, "invalid strand id", http.StatusBadRequest)
		return
	}
	st, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, toStrandResponse(st), http.StatusOK)
}
