package internal

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics counts relay activity with atomic counters and serves them as a
// flat JSON document.
type Metrics struct {
	activeConns    atomic.Int64
	totalConns     atomic.Uint64
	globalMessages atomic.Uint64
	roomMessages   atomic.Uint64
	dmMessages     atomic.Uint64
	historyFetches atomic.Uint64
	droppedSends   atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncConn() {
	m.activeConns.Add(1)
	m.totalConns.Add(1)
}

func (m *Metrics) DecConn() {
	m.activeConns.Add(-1)
}

func (m *Metrics) IncMessage(scope string) {
	switch scope {
	case ScopeRoom:
		m.roomMessages.Add(1)
	case ScopeDM:
		m.dmMessages.Add(1)
	default:
		m.globalMessages.Add(1)
	}
}

func (m *Metrics) IncHistoryFetch() {
	m.historyFetches.Add(1)
}

func (m *Metrics) IncDroppedSend() {
	m.droppedSends.Add(1)
}

func (m *Metrics) ActiveConns() int64 {
	return m.activeConns.Load()
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"active_connections":    m.activeConns.Load(),
		"connections_total":     m.totalConns.Load(),
		"global_messages_total": m.globalMessages.Load(),
		"room_messages_total":   m.roomMessages.Load(),
		"dm_messages_total":     m.dmMessages.Load(),
		"history_fetches_total": m.historyFetches.Load(),
		"dropped_sends_total":   m.droppedSends.Load(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
