package internal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatewayOp is one recorded emission or membership change, in call order.
type gatewayOp struct {
	op      string
	target  string
	event   string
	payload any
}

// fakeGateway records every gateway call so tests can assert on the exact
// delivery set and ordering.
type fakeGateway struct {
	ops []gatewayOp
}

func (g *fakeGateway) Broadcast(event string, payload any) {
	g.ops = append(g.ops, gatewayOp{op: "broadcast", event: event, payload: payload})
}

func (g *fakeGateway) BroadcastExcept(exceptID, event string, payload any) {
	g.ops = append(g.ops, gatewayOp{op: "broadcastExcept", target: exceptID, event: event, payload: payload})
}

func (g *fakeGateway) ToConn(connID, event string, payload any) {
	g.ops = append(g.ops, gatewayOp{op: "toConn", target: connID, event: event, payload: payload})
}

func (g *fakeGateway) ToRoom(room, event string, payload any) {
	g.ops = append(g.ops, gatewayOp{op: "toRoom", target: room, event: event, payload: payload})
}

func (g *fakeGateway) ToRoomExcept(room, exceptID, event string, payload any) {
	g.ops = append(g.ops, gatewayOp{op: "toRoomExcept", target: room + "/" + exceptID, event: event, payload: payload})
}

func (g *fakeGateway) JoinRoom(connID, room string) {
	g.ops = append(g.ops, gatewayOp{op: "joinRoom", target: fmt.Sprintf("%s@%s", connID, room)})
}

func (g *fakeGateway) LeaveRoom(connID, room string) {
	g.ops = append(g.ops, gatewayOp{op: "leaveRoom", target: fmt.Sprintf("%s@%s", connID, room)})
}

func (g *fakeGateway) reset() { g.ops = nil }

func TestDeliverMessageGlobal(t *testing.T) {
	gateway := &fakeGateway{}
	router := NewRouter(gateway)

	router.DeliverMessage(Message{Scope: ScopeGlobal, UserID: "c1", Text: "hi"})

	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "broadcast", gateway.ops[0].op)
	assert.Equal(t, EventChatMessage, gateway.ops[0].event)
}

func TestDeliverMessageRoom(t *testing.T) {
	gateway := &fakeGateway{}
	router := NewRouter(gateway)

	router.DeliverMessage(Message{Scope: ScopeRoom, Room: "go-club", UserID: "c1", Text: "hi"})

	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "toRoom", gateway.ops[0].op)
	assert.Equal(t, "go-club", gateway.ops[0].target)
	assert.Equal(t, EventRoomMessage, gateway.ops[0].event)
}

func TestDeliverMessageDMEchoesToSender(t *testing.T) {
	gateway := &fakeGateway{}
	router := NewRouter(gateway)

	msg := Message{Scope: ScopeDM, UserID: "c1", To: "c2", Text: "psst"}
	router.DeliverMessage(msg)

	require.Len(t, gateway.ops, 2)
	assert.Equal(t, "toConn", gateway.ops[0].op)
	assert.Equal(t, "c2", gateway.ops[0].target)
	assert.Equal(t, "toConn", gateway.ops[1].op)
	assert.Equal(t, "c1", gateway.ops[1].target)
	// both emissions carry the same message, same id included
	assert.Equal(t, gateway.ops[0].payload, gateway.ops[1].payload)
	assert.Equal(t, EventDMMessage, gateway.ops[0].event)
}

func TestDeliverMessageUnknownScopeFallsBackToGlobal(t *testing.T) {
	gateway := &fakeGateway{}
	router := NewRouter(gateway)

	router.DeliverMessage(Message{Scope: "carrier-pigeon", UserID: "c1", Text: "hi"})

	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "broadcast", gateway.ops[0].op)
}

func TestDeliverTypingNeverEchoes(t *testing.T) {
	gateway := &fakeGateway{}
	router := NewRouter(gateway)

	router.DeliverTyping("c1", TypingRelay{UserID: "c1", IsTyping: true, Scope: ScopeGlobal})
	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "broadcastExcept", gateway.ops[0].op)
	assert.Equal(t, "c1", gateway.ops[0].target)

	gateway.reset()
	router.DeliverTyping("c1", TypingRelay{UserID: "c1", IsTyping: true, Scope: ScopeRoom, Room: "go-club"})
	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "toRoomExcept", gateway.ops[0].op)
	assert.Equal(t, "go-club/c1", gateway.ops[0].target)

	gateway.reset()
	router.DeliverTyping("c1", TypingRelay{UserID: "c1", IsTyping: true, Scope: ScopeDM, To: "c2"})
	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "toConn", gateway.ops[0].op)
	assert.Equal(t, "c2", gateway.ops[0].target)
}

func TestDeliverTypingIncompleteAddressingDegradesToGlobal(t *testing.T) {
	gateway := &fakeGateway{}
	router := NewRouter(gateway)

	// dm scope without a target falls back to the global rule
	router.DeliverTyping("c1", TypingRelay{UserID: "c1", IsTyping: true, Scope: ScopeDM})
	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "broadcastExcept", gateway.ops[0].op)

	gateway.reset()
	router.DeliverTyping("c1", TypingRelay{UserID: "c1", IsTyping: true, Scope: ScopeRoom})
	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "broadcastExcept", gateway.ops[0].op)
}

func TestDeliverReadNeverEchoes(t *testing.T) {
	gateway := &fakeGateway{}
	router := NewRouter(gateway)

	router.DeliverRead("c1", "c2", ReadRelay{MessageID: "m1", ReaderID: "c1", Scope: ScopeDM})
	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "toConn", gateway.ops[0].op)
	assert.Equal(t, "c2", gateway.ops[0].target)
	assert.Equal(t, EventMessageRead, gateway.ops[0].event)

	gateway.reset()
	router.DeliverRead("c1", "", ReadRelay{MessageID: "m1", ReaderID: "c1", Scope: ScopeRoom, Room: "go-club"})
	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "toRoomExcept", gateway.ops[0].op)
	assert.Equal(t, "go-club/c1", gateway.ops[0].target)
}

func TestDeliverReactionEchoesToSender(t *testing.T) {
	gateway := &fakeGateway{}
	router := NewRouter(gateway)

	router.DeliverReaction("c1", "c2", ReactRelay{MessageID: "m1", Reaction: "🔥", From: "c1", Scope: ScopeDM})
	require.Len(t, gateway.ops, 2)
	assert.Equal(t, "c2", gateway.ops[0].target)
	assert.Equal(t, "c1", gateway.ops[1].target)

	gateway.reset()
	router.DeliverReaction("c1", "", ReactRelay{MessageID: "m1", Reaction: "🔥", From: "c1", Scope: ScopeRoom, Room: "go-club"})
	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "toRoom", gateway.ops[0].op)

	gateway.reset()
	router.DeliverReaction("c1", "", ReactRelay{MessageID: "m1", Reaction: "🔥", From: "c1", Scope: ScopeGlobal})
	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "broadcast", gateway.ops[0].op)
}

func TestDeliverRoomNotice(t *testing.T) {
	gateway := &fakeGateway{}
	router := NewRouter(gateway)

	router.DeliverRoomNotice("go-club", RoomNotice{Room: "go-club", Text: "alice joined"})

	require.Len(t, gateway.ops, 1)
	assert.Equal(t, "toRoom", gateway.ops[0].op)
	assert.Equal(t, EventRoomSystem, gateway.ops[0].event)
}
