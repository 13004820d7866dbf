package internal

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const sendBufferSize = 256

// Client wraps a single websocket connection and its buffered send queue.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	closed bool // guarded by the hub mutex
}

func newClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Hub is the connection gateway: it owns every live connection and the room
// membership groups the router addresses. Emission is fire-and-forget; a
// client whose send buffer is full is dropped to keep the relay healthy.
type Hub struct {
	mu    sync.Mutex
	conns map[string]*Client
	rooms map[string]map[string]*Client
	log   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		conns: make(map[string]*Client),
		rooms: make(map[string]map[string]*Client),
		log:   logger,
	}
}

func (hub *Hub) add(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.conns[client.id] = client
}

// remove detaches a client from the hub and all of its rooms. Idempotent:
// the send channel is closed at most once.
func (hub *Hub) remove(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	delete(hub.conns, client.id)
	hub.removeFromRoomsLocked(client.id)
	if !client.closed {
		client.closed = true
		close(client.send)
	}
}

// Size reports the number of live connections.
func (hub *Hub) Size() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.conns)
}

// RoomSize reports the membership count of one room.
func (hub *Hub) RoomSize(room string) int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.rooms[room])
}

// JoinRoom subscribes a connection to a room group, creating the group on
// first use. Unknown connections are ignored.
func (hub *Hub) JoinRoom(connID, room string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	client, ok := hub.conns[connID]
	if !ok {
		return
	}
	members, ok := hub.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		hub.rooms[room] = members
	}
	members[connID] = client
}

// LeaveRoom unsubscribes a connection, deleting the group once empty.
func (hub *Hub) LeaveRoom(connID, room string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.leaveRoomLocked(connID, room)
}

func (hub *Hub) leaveRoomLocked(connID, room string) {
	members, ok := hub.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(hub.rooms, room)
	}
}

func (hub *Hub) removeFromRoomsLocked(connID string) {
	for room := range hub.rooms {
		hub.leaveRoomLocked(connID, room)
	}
}

// Broadcast emits an event to every live connection.
func (hub *Hub) Broadcast(event string, payload any) {
	data, ok := hub.encode(outEnvelope{Event: event, Data: payload})
	if !ok {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for _, client := range hub.conns {
		hub.deliverLocked(client, data)
	}
}

// BroadcastExcept emits an event to everyone but exceptID.
func (hub *Hub) BroadcastExcept(exceptID, event string, payload any) {
	data, ok := hub.encode(outEnvelope{Event: event, Data: payload})
	if !ok {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for id, client := range hub.conns {
		if id == exceptID {
			continue
		}
		hub.deliverLocked(client, data)
	}
}

// ToConn emits an event to one connection. Unknown ids are silently ignored:
// dm targets may have disconnected moments earlier.
func (hub *Hub) ToConn(connID, event string, payload any) {
	hub.sendTo(connID, outEnvelope{Event: event, Data: payload})
}

// ToRoom emits an event to every member of a room.
func (hub *Hub) ToRoom(room, event string, payload any) {
	data, ok := hub.encode(outEnvelope{Event: event, Data: payload})
	if !ok {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for _, client := range hub.rooms[room] {
		hub.deliverLocked(client, data)
	}
}

// ToRoomExcept emits an event to every room member but exceptID.
func (hub *Hub) ToRoomExcept(room, exceptID, event string, payload any) {
	data, ok := hub.encode(outEnvelope{Event: event, Data: payload})
	if !ok {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for id, client := range hub.rooms[room] {
		if id == exceptID {
			continue
		}
		hub.deliverLocked(client, data)
	}
}

// sendTo delivers a prebuilt envelope (acks carry a correlation id) to one
// connection.
func (hub *Hub) sendTo(connID string, envelope outEnvelope) {
	data, ok := hub.encode(envelope)
	if !ok {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if client, exists := hub.conns[connID]; exists {
		hub.deliverLocked(client, data)
	}
}

func (hub *Hub) encode(envelope outEnvelope) ([]byte, bool) {
	data, err := json.Marshal(envelope)
	if err != nil {
		hub.log.Error().Err(err).Str("event", envelope.Event).Msg("encode envelope")
		return nil, false
	}
	return data, true
}

// deliverLocked queues data on the client's send channel. If the client is
// too slow to read we drop the connection rather than let its backlog block
// the relay; the write pump notices the closed channel and shuts down.
func (hub *Hub) deliverLocked(client *Client, data []byte) {
	if client.closed {
		return
	}
	select {
	case client.send <- data:
	default:
		client.closed = true
		close(client.send)
		delete(hub.conns, client.id)
		hub.removeFromRoomsLocked(client.id)
		hub.log.Warn().Str("conn", client.id).Msg("send buffer full, dropping connection")
	}
}
