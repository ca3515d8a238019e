package rest

import (
	"encoding/json"
	"net/http"

	domerrors "github.com/smilemakc/cil/internal/domain/errors"
)

func (s *Server) respondJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, message string, status int) {
	s.respondJSON(w, map[string]string{"error": message}, status)
}

// respondDomainError maps a CILError code onto the HTTP status its error
// taxonomy implies, falling back to 500 for anything unrecognized.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
		case domerrors.Is(err, domerrors.CodeValidationFailure), domerrors.Is(err, domerrors.CodeImmutableField):
			status = http.StatusBadRequest
		case domerrors.Is(err, domerrors.CodeNotFound):
			status = http.StatusNotFound
		case domerrors.Transient(err):
			status = http.StatusServiceUnavailable
	}
	s.log.Error().Err(err).Msg("request failed")
	s.respondError(w, err.Error(), status)
}
