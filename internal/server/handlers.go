package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dusklight/duskd/internal/schedule"
)

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetSchedule(w, r)
	case http.MethodPost:
		s.handlePostSchedule(w, r)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "Only GET and POST methods are allowed.")
	}
}

// handleGetSchedule serves the computed schedule. Reads are best-effort:
// upstream failures degrade inside the planner, and only a storage failure
// surfaces as an error.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	resp, err := s.planner.BuildSchedule(r.Context(), clientIP(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to build schedule")
		writeJSONError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handlePostSchedule persists a caller-supplied schedule. Writes are strict
// and fail closed: token first, then structural validation.
func (s *Server) handlePostSchedule(w http.ResponseWriter, r *http.Request) {
	if s.token == "" || r.Header.Get(authHeader) != s.token {
		log.Info().Msg("Denied unauthorized write request")
		writeJSONError(w, http.StatusForbidden, "Unauthorized")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	if err := s.planner.SaveSchedule(r.Context(), body); err != nil {
		var verr *schedule.ValidationError
		if errors.As(err, &verr) {
			log.Warn().Str("reason", verr.Reason).Msg("Rejected invalid schedule payload")
			writeJSONError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		log.Error().Err(err).Msg("Failed to save schedule")
		writeJSONError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Schedule saved."})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
