package api

import (
	"net/http"
)

// SetupRoutes configures the HTTP routes for the API.
// events and metrics are mounted when non-nil.
func SetupRoutes(svc RoomServicer, events http.Handler, metrics http.Handler, checks ...ReadinessCheck) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoints for Kubernetes
	mux.HandleFunc("/health/live", HealthLiveHandler)
	mux.HandleFunc("/health/ready", HealthReadyHandler(checks...))

	// Room preparation and joining, including the shareable ?room= link
	roomHandler := NewRoomHandler(svc)
	mux.Handle("/api/rooms", roomHandler)
	mux.Handle("/api/rooms/", roomHandler)
	mux.Handle("/join", roomHandler)

	// Session, relay and status
	sessionHandler := NewSessionHandler(svc)
	mux.Handle("/api/status", sessionHandler)
	mux.Handle("/api/session/", sessionHandler)
	mux.Handle("/api/relay/", sessionHandler)

	if events != nil {
		mux.Handle("/events", events)
	}
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	return mux
}
