package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/navikt/roomswitch/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, handler http.Handler, path string) (int, string) {
	t.Helper()
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var resp api.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return rr.Code, resp.Status
}

func TestHealthLive(t *testing.T) {
	code, status := probe(t, http.HandlerFunc(api.HealthLiveHandler), "/health/live")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "UP", status)
}

func TestHealthReady(t *testing.T) {
	alive := func(context.Context) error { return nil }
	disconnected := func(context.Context) error { return errors.New("transport not connected") }

	tests := []struct {
		name   string
		checks []api.ReadinessCheck
		code   int
		status string
	}{
		{"NoChecks", nil, http.StatusOK, "UP"},
		{"TransportAlive", []api.ReadinessCheck{alive}, http.StatusOK, "UP"},
		{"TransportDown", []api.ReadinessCheck{disconnected}, http.StatusServiceUnavailable, "DOWN"},
		{"AnyFailingCheck", []api.ReadinessCheck{alive, disconnected}, http.StatusServiceUnavailable, "DOWN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, status := probe(t, api.HealthReadyHandler(tc.checks...), "/health/ready")

			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.status, status)
		})
	}
}

func TestHealthReady_StopsAtFirstFailure(t *testing.T) {
	called := false
	handler := api.HealthReadyHandler(
		func(context.Context) error { return errors.New("transport closed") },
		func(context.Context) error { called = true; return nil },
	)

	code, _ := probe(t, handler, "/health/ready")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, called)
}

func TestHealthRoutes(t *testing.T) {
	mux := api.SetupRoutes(new(MockRoomService), nil, nil, func(context.Context) error {
		return errors.New("transport closed")
	})

	code, _ := probe(t, mux, "/health/live")
	assert.Equal(t, http.StatusOK, code)
	code, _ = probe(t, mux, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
