// Package web streams status snapshots and notices to browsers over server-sent events
package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/navikt/roomswitch/internal/models"
	"github.com/r3labs/sse/v2"
)

// StatusStream is the SSE stream id carrying status snapshots and notices
const StatusStream = "status"

// Event names published on the status stream
const (
	EventStatus = "status"
	EventNotice = "notice"
)

// SSEManager publishes room status to connected browsers
type SSEManager struct {
	server  *sse.Server
	logger  *slog.Logger
	eventID atomic.Uint64
}

// NewSSEManager creates a manager with the status stream already open
func NewSSEManager(logger *slog.Logger) *SSEManager {
	if logger == nil {
		logger = slog.Default()
	}

	server := sse.New()
	server.AutoReplay = false
	server.Headers = map[string]string{
		"Access-Control-Allow-Origin": "*",
		"X-Accel-Buffering":           "no", // Disable nginx proxy buffering
	}
	server.CreateStream(StatusStream)

	return &SSEManager{
		server: server,
		logger: logger.With("component", "sse"),
	}
}

// ServeHTTP implements the http.Handler interface for SSE connections
func (sm *SSEManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Handle CORS preflight
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// The status stream is the default so /events works without a query
	if r.URL.Query().Get("stream") == "" {
		q := r.URL.Query()
		q.Set("stream", StatusStream)
		r.URL.RawQuery = q.Encode()
	}

	sm.logger.Debug("SSE client connected", "remote", r.RemoteAddr)
	sm.server.ServeHTTP(w, r)
	sm.logger.Debug("SSE client disconnected", "remote", r.RemoteAddr)
}

// NotifyStatus publishes a status snapshot
func (sm *SSEManager) NotifyStatus(status models.Status) {
	sm.publish(EventStatus, status)
}

// NotifyNotice publishes a user-visible notice
func (sm *SSEManager) NotifyNotice(notice models.Notice) {
	sm.publish(EventNotice, notice)
}

// Close ends every open stream
func (sm *SSEManager) Close() {
	sm.server.Close()
}

func (sm *SSEManager) publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		sm.logger.Error("failed to encode SSE event", "event", event, "error", err)
		return
	}

	sm.server.Publish(StatusStream, &sse.Event{
		ID:    []byte(fmt.Sprintf("%d", sm.eventID.Add(1))),
		Event: []byte(event),
		Data:  data,
	})
}
