package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondUpstreamError maps a failed API call to a gateway error.
func respondUpstreamError(w http.ResponseWriter, err error, fallback string) {
	status, code := http.StatusBadGateway, "upstream_error"
	if isTimeout(err) {
		status, code = http.StatusGatewayTimeout, "timeout"
	}
	respondJSON(w, status, ErrorResponse{
		Error:   fallback,
		Code:    code,
		Details: err.Error(),
	})
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
