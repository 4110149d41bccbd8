package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"hideandseek-server/internal/game"
)

// Domain errors carry a "CODE: message" string. statusForCode maps the
// code to an HTTP status; unlisted codes are treated as internal errors.
var statusForCode = map[string]int{
	"GAME_NOT_FOUND":        http.StatusNotFound,
	"TEAM_NOT_FOUND":        http.StatusNotFound,
	"CHALLENGE_NOT_FOUND":   http.StatusNotFound,
	"CURSE_NOT_FOUND":       http.StatusNotFound,
	"CLUE_TYPE_NOT_FOUND":   http.StatusNotFound,
	"REQUEST_NOT_FOUND":     http.StatusNotFound,
	"INVALID_INPUT":         http.StatusBadRequest,
	"INVALID_STATE":         http.StatusBadRequest,
	"INVALID_ROLE":          http.StatusBadRequest,
	"GAME_NOT_ACTIVE":       http.StatusBadRequest,
	"CHALLENGE_IN_PROGRESS": http.StatusBadRequest,
	"NO_CARDS_AVAILABLE":    http.StatusBadRequest,
	"INSUFFICIENT_TOKENS":   http.StatusBadRequest,
	"NO_VALID_TARGETS":      http.StatusBadRequest,
	"NO_HIDERS_AVAILABLE":   http.StatusBadRequest,
	"LOCATION_UNKNOWN":      http.StatusBadRequest,
	"REQUEST_EXPIRED":       http.StatusBadRequest,
	"VETO_ACTIVE":           http.StatusTooManyRequests,
}

// splitErrorCode separates "CODE: message" into its parts. Errors that
// don't follow the convention come back with an empty code.
func splitErrorCode(err error) (code, message string) {
	text := err.Error()
	if idx := strings.Index(text, ": "); idx > 0 {
		candidate := text[:idx]
		if _, known := statusForCode[candidate]; known {
			return candidate, text[idx+2:]
		}
	}
	return "", text
}

// writeDomainError renders a domain failure with the mapped status. A
// veto rejection additionally carries the remaining cooldown so clients
// can count down.
func writeDomainError(w http.ResponseWriter, err error) {
	var vetoErr *game.VetoActiveError
	if errors.As(err, &vetoErr) {
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: APIError{
			Code:          "VETO_ACTIVE",
			Message:       err.Error(),
			RemainingTime: vetoErr.RemainingSeconds,
		}})
		return
	}

	code, message := splitErrorCode(err)
	if code == "" {
		log.Printf("Internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: APIError{
			Code:    "INTERNAL",
			Message: "Unexpected server error",
		}})
		return
	}

	writeJSON(w, statusForCode[code], ErrorResponse{Error: APIError{
		Code:    code,
		Message: message,
	}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// writeRawJSON writes pre-marshaled JSON (store snapshots).
func writeRawJSON(w http.ResponseWriter, status int, data json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}
