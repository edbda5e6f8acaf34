package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/navikt/roomswitch/internal/models"
	"github.com/navikt/roomswitch/internal/provisioning"
	"github.com/navikt/roomswitch/internal/relay"
	"github.com/navikt/roomswitch/internal/service"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an action error to its HTTP status code
func statusFor(err error) int {
	var (
		provErr  *provisioning.ProvisioningError
		relayErr *relay.RelayRequestError
	)

	switch {
	case errors.Is(err, service.ErrMissingRoom):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrSwitchInProgress),
		errors.Is(err, models.ErrPairIncomplete):
		return http.StatusConflict
	case errors.As(err, &provErr), errors.As(err, &relayErr):
		return http.StatusBadGateway
	default:
		// Includes *session.SwitchError
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, action string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("action failed", "action", action, "error", err)
	} else {
		slog.Info("action rejected", "action", action, "error", err)
	}
	writeJSON(w, code, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
