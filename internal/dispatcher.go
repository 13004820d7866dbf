package internal

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AckFunc delivers a reply to the event's sender when the inbound envelope
// carried a correlation id. A nil AckFunc means the sender did not ask.
type AckFunc func(payload any)

// Dispatcher is the per-connection state machine between the transport and
// the core. A connection is unidentified until its join event, active until
// disconnect, and closed after; a second disconnect signal is a no-op.
// All collaborators are injected so tests can run against fresh instances.
type Dispatcher struct {
	registry *SessionRegistry
	history  *HistoryStore
	router   *Router
	gateway  Gateway
	metrics  *Metrics
	ids      *IDGenerator
	log      zerolog.Logger
	clock    func() time.Time

	mu    sync.Mutex
	conns map[string]struct{}
}

func NewDispatcher(registry *SessionRegistry, history *HistoryStore, router *Router, gateway Gateway, metrics *Metrics, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		history:  history,
		router:   router,
		gateway:  gateway,
		metrics:  metrics,
		ids:      NewIDGenerator(),
		log:      logger,
		clock:    time.Now,
		conns:    make(map[string]struct{}),
	}
}

// HandleConnect marks a new connection as unidentified.
func (dispatcher *Dispatcher) HandleConnect(connID string) {
	dispatcher.mu.Lock()
	dispatcher.conns[connID] = struct{}{}
	dispatcher.mu.Unlock()
	dispatcher.metrics.IncConn()
	dispatcher.log.Info().Str("conn", connID).Msg("connected")
}

// HandleDisconnect closes the connection's session and broadcasts the
// updated presence list. Idempotent: late duplicate signals do nothing.
func (dispatcher *Dispatcher) HandleDisconnect(connID string) {
	dispatcher.mu.Lock()
	_, open := dispatcher.conns[connID]
	delete(dispatcher.conns, connID)
	dispatcher.mu.Unlock()
	if !open {
		return
	}
	name := dispatcher.registry.NameOf(connID)
	dispatcher.registry.Unregister(connID)
	dispatcher.metrics.DecConn()
	dispatcher.gateway.Broadcast(EventPresenceList, dispatcher.registry.Presence())
	dispatcher.log.Info().Str("conn", connID).Str("username", name).Msg("disconnected")
}

// HandleEvent validates and routes one inbound event. Malformed events are
// absorbed silently: the core never propagates a failure to the transport.
func (dispatcher *Dispatcher) HandleEvent(connID, event string, data json.RawMessage, ack AckFunc) {
	switch event {
	case EventJoin:
		dispatcher.handleJoin(connID, data)
	case EventChatMessage:
		dispatcher.handleGlobalSend(connID, data, ack)
	case EventRoomJoin:
		dispatcher.handleRoomJoin(connID, data)
	case EventRoomLeave:
		dispatcher.handleRoomLeave(connID, data)
	case EventRoomMessage:
		dispatcher.handleRoomSend(connID, data, ack)
	case EventDMSend:
		dispatcher.handleDMSend(connID, data, ack)
	case EventTyping:
		dispatcher.handleTyping(connID, data)
	case EventMessageRead:
		dispatcher.handleRead(connID, data)
	case EventMessageReact:
		dispatcher.handleReact(connID, data)
	case EventHistoryFetch:
		dispatcher.handleHistoryFetch(connID, data, ack)
	default:
		dispatcher.log.Debug().Str("conn", connID).Str("event", event).Msg("unknown event dropped")
	}
}

func (dispatcher *Dispatcher) handleJoin(connID string, data json.RawMessage) {
	var payload JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		dispatcher.log.Debug().Str("conn", connID).Err(err).Msg("bad join payload")
		return
	}
	name := dispatcher.registry.Register(connID, payload.Username)
	dispatcher.gateway.Broadcast(EventPresenceList, dispatcher.registry.Presence())
	dispatcher.gateway.ToConn(connID, EventWelcome, WelcomePayload{
		Message: "Welcome, " + name + "!",
		ID:      connID,
	})
	dispatcher.log.Info().Str("conn", connID).Str("username", name).Msg("joined")
}

func (dispatcher *Dispatcher) handleGlobalSend(connID string, data json.RawMessage, ack AckFunc) {
	var payload SendPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	msg, ok := dispatcher.buildMessage(ScopeGlobal, connID, payload.Text, payload.File)
	if !ok {
		return
	}
	dispatcher.history.Append(GlobalScopeKey, msg)
	dispatcher.router.DeliverMessage(msg)
	dispatcher.metrics.IncMessage(ScopeGlobal)
	dispatcher.acknowledge(ack, msg)
}

func (dispatcher *Dispatcher) handleRoomJoin(connID string, data json.RawMessage) {
	var payload RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	room := strings.TrimSpace(payload.Room)
	if room == "" {
		return
	}
	// join before the notice so the joiner hears it too
	dispatcher.gateway.JoinRoom(connID, room)
	dispatcher.router.DeliverRoomNotice(room, RoomNotice{
		Room: room,
		Text: dispatcher.registry.NameOf(connID) + " joined",
		Ts:   dispatcher.clock().UTC(),
	})
}

func (dispatcher *Dispatcher) handleRoomLeave(connID string, data json.RawMessage) {
	var payload RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	room := strings.TrimSpace(payload.Room)
	if room == "" {
		return
	}
	// leave first so the notice only reaches the remaining members
	dispatcher.gateway.LeaveRoom(connID, room)
	dispatcher.router.DeliverRoomNotice(room, RoomNotice{
		Room: room,
		Text: dispatcher.registry.NameOf(connID) + " left",
		Ts:   dispatcher.clock().UTC(),
	})
}

func (dispatcher *Dispatcher) handleRoomSend(connID string, data json.RawMessage, ack AckFunc) {
	var payload RoomSendPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	room := strings.TrimSpace(payload.Room)
	if room == "" {
		return
	}
	msg, ok := dispatcher.buildMessage(ScopeRoom, connID, payload.Text, payload.File)
	if !ok {
		return
	}
	msg.Room = room
	dispatcher.history.Append(room, msg)
	dispatcher.router.DeliverMessage(msg)
	dispatcher.metrics.IncMessage(ScopeRoom)
	dispatcher.acknowledge(ack, msg)
}

func (dispatcher *Dispatcher) handleDMSend(connID string, data json.RawMessage, ack AckFunc) {
	var payload DMSendPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	to := strings.TrimSpace(payload.To)
	if to == "" {
		return
	}
	msg, ok := dispatcher.buildMessage(ScopeDM, connID, payload.Text, payload.File)
	if !ok {
		return
	}
	msg.To = to
	dispatcher.history.Append(DMScopeKey(connID, to), msg)
	dispatcher.router.DeliverMessage(msg)
	dispatcher.metrics.IncMessage(ScopeDM)
	dispatcher.acknowledge(ack, msg)
}

func (dispatcher *Dispatcher) handleTyping(connID string, data json.RawMessage) {
	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	dispatcher.router.DeliverTyping(connID, TypingRelay{
		UserID:   connID,
		Username: dispatcher.registry.NameOf(connID),
		IsTyping: payload.IsTyping,
		Scope:    defaultScope(payload.Scope),
		Room:     payload.Room,
		To:       payload.To,
	})
}

func (dispatcher *Dispatcher) handleRead(connID string, data json.RawMessage) {
	var payload ReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	dispatcher.router.DeliverRead(connID, payload.OtherUserID, ReadRelay{
		MessageID: payload.MessageID,
		ReaderID:  connID,
		Scope:     defaultScope(payload.Scope),
		Room:      payload.Room,
	})
}

func (dispatcher *Dispatcher) handleReact(connID string, data json.RawMessage) {
	var payload ReactPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	dispatcher.router.DeliverReaction(connID, payload.OtherUserID, ReactRelay{
		MessageID: payload.MessageID,
		Reaction:  payload.Reaction,
		From:      connID,
		Username:  dispatcher.registry.NameOf(connID),
		Scope:     defaultScope(payload.Scope),
		Room:      payload.Room,
	})
}

func (dispatcher *Dispatcher) handleHistoryFetch(connID string, data json.RawMessage, ack AckFunc) {
	if ack == nil {
		// no reply channel, nothing to do
		return
	}
	empty := HistoryResult{Items: []Message{}}
	var payload HistoryFetchPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		ack(empty)
		return
	}
	var key string
	switch payload.Scope {
	case ScopeGlobal:
		key = GlobalScopeKey
	case ScopeRoom:
		if payload.Room == "" {
			ack(empty)
			return
		}
		key = payload.Room
	case ScopeDM:
		if payload.OtherUserID == "" {
			ack(empty)
			return
		}
		key = DMScopeKey(connID, payload.OtherUserID)
	default:
		ack(empty)
		return
	}
	var before time.Time
	if payload.Before != "" {
		parsed, err := time.Parse(time.RFC3339Nano, payload.Before)
		if err != nil {
			// an unreadable cursor reads as an empty page, not an error
			ack(empty)
			return
		}
		before = parsed
	}
	dispatcher.metrics.IncHistoryFetch()
	ack(HistoryResult{Items: dispatcher.history.Page(key, before, payload.Limit)})
}

// buildMessage assembles a new message, or reports false for an empty send
// (no trimmed text and no attachment), which is dropped without an ack.
func (dispatcher *Dispatcher) buildMessage(scope, connID, text string, file *Attachment) (Message, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" && file == nil {
		dispatcher.metrics.IncDroppedSend()
		return Message{}, false
	}
	ts := dispatcher.clock().UTC()
	return Message{
		ID:       dispatcher.ids.Next(ts),
		Scope:    scope,
		UserID:   connID,
		Username: dispatcher.registry.NameOf(connID),
		Text:     trimmed,
		File:     file,
		Ts:       ts,
	}, true
}

// acknowledge replies to the sender after emission when an ack was requested.
func (dispatcher *Dispatcher) acknowledge(ack AckFunc, msg Message) {
	if ack == nil {
		return
	}
	ack(SendAck{OK: true, ID: msg.ID, Ts: msg.Ts})
}

func defaultScope(scope string) string {
	if scope == "" {
		return ScopeGlobal
	}
	return scope
}
