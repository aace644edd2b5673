package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/landerd/landerd/internal/experiment"
	"github.com/landerd/landerd/internal/store"
)

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondError writes a JSON error body.
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}

// respondServiceError maps domain errors onto HTTP status codes:
// validation failures are 400, unknown entities 404, illegal lifecycle
// transitions 409, everything else 500.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	var verr *experiment.ValidationError
	var terr *experiment.TransitionError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &terr):
		respondError(w, http.StatusConflict, terr.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
