package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	hub := newTestHub()
	registry := NewSessionRegistry()
	history := NewHistoryStore(DefaultHistoryCapacity)
	metrics := NewMetrics()
	dispatcher := NewDispatcher(registry, history, NewRouter(hub), hub, metrics, zerolog.Nop())
	return NewServer(hub, dispatcher, metrics, nil, zerolog.Nop())
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer()
	recorder := httptest.NewRecorder()
	server.HandleHealth(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	hub := newTestHub()
	registry := NewSessionRegistry()
	history := NewHistoryStore(DefaultHistoryCapacity)
	metrics := NewMetrics()
	dispatcher := NewDispatcher(registry, history, NewRouter(hub), hub, metrics, zerolog.Nop())
	server := NewServer(hub, dispatcher, metrics, nil, zerolog.Nop())

	dispatcher.HandleConnect("c1")
	dispatcher.HandleEvent("c1", EventChatMessage, json.RawMessage(`{"text":"hi"}`), nil)
	dispatcher.HandleEvent("c1", EventChatMessage, json.RawMessage(`{"text":"   "}`), nil)

	recorder := httptest.NewRecorder()
	server.MetricsHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	var body map[string]float64
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["active_connections"])
	assert.Equal(t, float64(1), body["connections_total"])
	assert.Equal(t, float64(1), body["global_messages_total"])
	assert.Equal(t, float64(1), body["dropped_sends_total"])
	assert.Equal(t, float64(0), body["dm_messages_total"])
}

func TestOriginCheckerEmptyListAllowsAll(t *testing.T) {
	check := originChecker(nil)
	request := httptest.NewRequest(http.MethodGet, "/ws", nil)
	request.Header.Set("Origin", "https://anywhere.example")
	assert.True(t, check(request))
}

func TestOriginCheckerEnforcesAllowList(t *testing.T) {
	check := originChecker([]string{"https://chat.example", "https://Alt.Example/"})

	allowed := httptest.NewRequest(http.MethodGet, "/ws", nil)
	allowed.Header.Set("Origin", "https://chat.example")
	assert.True(t, check(allowed))

	// matching is case-insensitive and ignores a trailing slash
	alt := httptest.NewRequest(http.MethodGet, "/ws", nil)
	alt.Header.Set("Origin", "https://alt.example")
	assert.True(t, check(alt))

	denied := httptest.NewRequest(http.MethodGet, "/ws", nil)
	denied.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(denied))

	// non-browser clients send no origin header
	bare := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(bare))
}

func TestClientIP(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/ws", nil)
	request.RemoteAddr = "10.0.0.7:52114"
	assert.Equal(t, "10.0.0.7", clientIP(request))

	request.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(request))
}

func TestServeWSRateLimitsUpgrades(t *testing.T) {
	server := newTestServer()

	var lastCode int
	for i := 0; i < connectBurst+1; i++ {
		request := httptest.NewRequest(http.MethodGet, "/ws", nil)
		request.RemoteAddr = "10.0.0.7:52114"
		recorder := httptest.NewRecorder()
		server.ServeWS(recorder, request)
		lastCode = recorder.Code
	}
	// the request past the burst is rejected before the upgrade attempt
	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestAckFuncNilWithoutCorrelationID(t *testing.T) {
	server := newTestServer()
	assert.Nil(t, server.ackFunc("c1", 0))
	assert.NotNil(t, server.ackFunc("c1", 7))
}
