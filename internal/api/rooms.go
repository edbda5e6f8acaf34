package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/navikt/roomswitch/internal/models"
	"github.com/navikt/roomswitch/internal/service"
)

// JoinRequest is the body of POST /api/rooms/join
type JoinRequest struct {
	MeetingID models.RoomID `json:"meetingId"`
}

// RoomResponse is returned by the room actions
type RoomResponse struct {
	Pair   models.RoomPair `json:"pair"`
	Status models.Status   `json:"status"`
}

// RoomHandler handles HTTP requests for room preparation and joining
type RoomHandler struct {
	service RoomServicer
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(svc RoomServicer) *RoomHandler {
	return &RoomHandler{
		service: svc,
	}
}

// ServeHTTP routes room requests
func (h *RoomHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")

	switch {
	case r.Method == http.MethodPost && path == "/api/rooms/prepare":
		h.prepare(w, r)
	case r.Method == http.MethodPost && path == "/api/rooms/join":
		h.joinByBody(w, r)
	case r.Method == http.MethodGet && path == "/join":
		h.joinByQuery(w, r)
	case r.Method == http.MethodDelete && path == "/api/rooms":
		h.clear(w, r)
	default:
		http.NotFound(w, r)
	}
}

// prepare handles POST /api/rooms/prepare: allocate a fresh pair and join its first room
func (h *RoomHandler) prepare(w http.ResponseWriter, r *http.Request) {
	pair, err := h.service.PrepareAndJoin(actionContext(r))
	if err != nil {
		writeError(w, "prepare", err)
		return
	}
	writeJSON(w, http.StatusCreated, RoomResponse{Pair: pair, Status: h.service.Status(r.Context())})
}

// joinByBody handles POST /api/rooms/join
func (h *RoomHandler) joinByBody(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	h.join(w, r, models.RoomID(strings.TrimSpace(string(req.MeetingID))))
}

// joinByQuery handles GET /join?room=ID, the shareable join link
func (h *RoomHandler) joinByQuery(w http.ResponseWriter, r *http.Request) {
	h.join(w, r, models.RoomID(strings.TrimSpace(r.URL.Query().Get("room"))))
}

func (h *RoomHandler) join(w http.ResponseWriter, r *http.Request, id models.RoomID) {
	if id == "" {
		writeError(w, "join", service.ErrMissingRoom)
		return
	}

	pair, err := h.service.JoinByID(actionContext(r), id)
	if err != nil {
		writeError(w, "join", err)
		return
	}
	writeJSON(w, http.StatusOK, RoomResponse{Pair: pair, Status: h.service.Status(r.Context())})
}

// clear handles DELETE /api/rooms: forget the stored pair
func (h *RoomHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearRooms(actionContext(r)); err != nil {
		writeError(w, "clear", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
