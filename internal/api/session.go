package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/navikt/roomswitch/internal/models"
)

// SwitchResponse is returned by a successful switch
type SwitchResponse struct {
	Target models.RoomID `json:"target"`
	Status models.Status `json:"status"`
}

// SessionHandler handles HTTP requests for the current session and media relay
type SessionHandler struct {
	service RoomServicer
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(svc RoomServicer) *SessionHandler {
	return &SessionHandler{
		service: svc,
	}
}

// ServeHTTP routes session and relay requests
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")

	if r.Method == http.MethodGet && path == "/api/status" {
		writeJSON(w, http.StatusOK, h.service.Status(r.Context()))
		return
	}
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	switch path {
	case "/api/session/switch":
		h.switchRoom(w, r)
	case "/api/session/leave":
		h.action(w, r, "leave", h.service.Leave)
	case "/api/session/mic":
		h.action(w, r, "toggle mic", h.service.ToggleMic)
	case "/api/session/webcam":
		h.action(w, r, "toggle webcam", h.service.ToggleWebcam)
	case "/api/relay/start":
		h.action(w, r, "start relay", h.service.StartRelay)
	case "/api/relay/stop":
		h.action(w, r, "stop relay", h.service.StopRelay)
	default:
		http.NotFound(w, r)
	}
}

// switchRoom handles POST /api/session/switch
func (h *SessionHandler) switchRoom(w http.ResponseWriter, r *http.Request) {
	target, err := h.service.SwitchRoom(actionContext(r))
	if err != nil {
		writeError(w, "switch", err)
		return
	}
	writeJSON(w, http.StatusOK, SwitchResponse{Target: target, Status: h.service.Status(r.Context())})
}

// action runs a body-less action and answers with the resulting status.
// Leave and relay actions answer 202 since they complete on a later transport event.
func (h *SessionHandler) action(w http.ResponseWriter, r *http.Request, name string, run func(context.Context) error) {
	if err := run(actionContext(r)); err != nil {
		writeError(w, name, err)
		return
	}

	code := http.StatusOK
	if strings.HasPrefix(r.URL.Path, "/api/relay/") || name == "leave" {
		code = http.StatusAccepted
	}
	writeJSON(w, code, h.service.Status(r.Context()))
}

// actionContext keeps the request's values but not its cancellation. A client
// that goes away must not abort a provisioning call, join, leave or relay
// request half way; each of those is bounded by its own timeout.
func actionContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
