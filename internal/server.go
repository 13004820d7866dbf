package internal

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 20 // attachments ride inside the envelope as data URLs

	connectBurst  = 20
	connectWindow = 10 * time.Second
)

// Server owns the websocket upgrade path and the per-connection pumps. The
// core (dispatcher and friends) is injected; the server is only plumbing
// between HTTP and the dispatcher.
type Server struct {
	hub        *Hub
	dispatcher *Dispatcher
	metrics    *Metrics
	limiter    *RateLimiter
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

func NewServer(hub *Hub, dispatcher *Dispatcher, metrics *Metrics, allowedOrigins []string, logger zerolog.Logger) *Server {
	return &Server{
		hub:        hub,
		dispatcher: dispatcher,
		metrics:    metrics,
		limiter:    NewRateLimiter(connectBurst, connectWindow),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: logger,
	}
}

// originChecker builds the upgrade-time origin policy from the configured
// allow-list. An empty list allows everything for development.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(strings.ToLower(origin), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := strings.TrimRight(strings.ToLower(r.Header.Get("Origin")), "/")
		if origin == "" {
			// non-browser clients send no origin
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS upgrades the request, assigns a connection id, and starts the
// read/write pumps for the new client.
func (server *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !server.limiter.Allow(clientIP(r)) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	conn, err := server.upgrader.Upgrade(w, r, nil)
	if err != nil {
		server.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}
	client := newClient(uuid.NewString(), conn)
	server.hub.add(client)
	server.dispatcher.HandleConnect(client.id)

	go server.writePump(client)
	go server.readPump(client)
}

func (server *Server) readPump(client *Client) {
	defer func() {
		server.hub.remove(client)
		server.dispatcher.HandleDisconnect(client.id)
		_ = client.conn.Close()
	}()
	client.conn.SetReadLimit(maxMsgSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			// normal close or read error; the deferred cleanup runs either way
			server.log.Debug().Str("conn", client.id).Err(err).Msg("read closed")
			break
		}
		var envelope Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Event == "" {
			server.log.Debug().Str("conn", client.id).Msg("unreadable frame dropped")
			continue
		}
		server.dispatcher.HandleEvent(client.id, envelope.Event, envelope.Data, server.ackFunc(client.id, envelope.Ack))
	}
}

// ackFunc builds the reply callback for an inbound envelope, or nil when the
// sender did not supply a correlation id.
func (server *Server) ackFunc(connID string, ackID int64) AckFunc {
	if ackID == 0 {
		return nil
	}
	return func(payload any) {
		server.hub.sendTo(connID, outEnvelope{Event: EventAck, Ack: ackID, Data: payload})
	}
}

func (server *Server) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleHealth answers the liveness probe.
func (server *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// MetricsHandler exposes the relay counters.
func (server *Server) MetricsHandler() http.Handler {
	return server.metrics
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
