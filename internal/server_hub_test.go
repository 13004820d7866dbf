package internal

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain pops everything currently queued for the client and decodes it.
func drain(t *testing.T, client *Client) []outEnvelopeWire {
	t.Helper()
	var envelopes []outEnvelopeWire
	for {
		select {
		case data := <-client.send:
			var envelope outEnvelopeWire
			require.NoError(t, json.Unmarshal(data, &envelope))
			envelopes = append(envelopes, envelope)
		default:
			return envelopes
		}
	}
}

// outEnvelopeWire mirrors the outbound frame for decoding in tests.
type outEnvelopeWire struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Ack   int64           `json:"ack"`
}

func newTestHub() *Hub {
	return NewHub(zerolog.Nop())
}

func TestBroadcastReachesEveryConnection(t *testing.T) {
	hub := newTestHub()
	a := newClient("a", nil)
	b := newClient("b", nil)
	hub.add(a)
	hub.add(b)

	hub.Broadcast(EventChatMessage, Message{Text: "hi"})

	require.Len(t, drain(t, a), 1)
	require.Len(t, drain(t, b), 1)
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	hub := newTestHub()
	a := newClient("a", nil)
	b := newClient("b", nil)
	hub.add(a)
	hub.add(b)

	hub.BroadcastExcept("a", EventTyping, TypingRelay{UserID: "a", IsTyping: true})

	assert.Empty(t, drain(t, a))
	require.Len(t, drain(t, b), 1)
}

func TestToConnIgnoresUnknownIDs(t *testing.T) {
	hub := newTestHub()
	a := newClient("a", nil)
	hub.add(a)

	hub.ToConn("ghost", EventDMMessage, Message{Text: "psst"})
	hub.ToConn("a", EventDMMessage, Message{Text: "psst"})

	envelopes := drain(t, a)
	require.Len(t, envelopes, 1)
	assert.Equal(t, EventDMMessage, envelopes[0].Event)
}

func TestRoomMembershipScopesDelivery(t *testing.T) {
	hub := newTestHub()
	a := newClient("a", nil)
	b := newClient("b", nil)
	c := newClient("c", nil)
	hub.add(a)
	hub.add(b)
	hub.add(c)

	hub.JoinRoom("a", "go-club")
	hub.JoinRoom("b", "go-club")
	assert.Equal(t, 2, hub.RoomSize("go-club"))

	hub.ToRoom("go-club", EventRoomMessage, Message{Text: "hi"})
	require.Len(t, drain(t, a), 1)
	require.Len(t, drain(t, b), 1)
	assert.Empty(t, drain(t, c))

	hub.ToRoomExcept("go-club", "a", EventTyping, TypingRelay{UserID: "a"})
	assert.Empty(t, drain(t, a))
	require.Len(t, drain(t, b), 1)
}

func TestLeaveRoomDeletesEmptyGroup(t *testing.T) {
	hub := newTestHub()
	a := newClient("a", nil)
	hub.add(a)
	hub.JoinRoom("a", "go-club")
	require.Equal(t, 1, hub.RoomSize("go-club"))

	hub.LeaveRoom("a", "go-club")
	assert.Equal(t, 0, hub.RoomSize("go-club"))
	assert.NotContains(t, hub.rooms, "go-club")
}

func TestJoinRoomIgnoresUnknownConnections(t *testing.T) {
	hub := newTestHub()
	hub.JoinRoom("ghost", "go-club")
	assert.Equal(t, 0, hub.RoomSize("go-club"))
}

func TestRemoveDetachesFromRooms(t *testing.T) {
	hub := newTestHub()
	a := newClient("a", nil)
	hub.add(a)
	hub.JoinRoom("a", "go-club")

	hub.remove(a)
	assert.Equal(t, 0, hub.Size())
	assert.Equal(t, 0, hub.RoomSize("go-club"))

	// a second remove must not close the channel twice
	hub.remove(a)
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := newTestHub()
	slow := newClient("slow", nil)
	hub.add(slow)
	hub.JoinRoom("slow", "go-club")

	// fill the buffer; the next emission overflows and drops the client
	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(EventChatMessage, Message{Text: "flood"})
	}
	require.Equal(t, 1, hub.Size())

	hub.Broadcast(EventChatMessage, Message{Text: "overflow"})
	assert.Equal(t, 0, hub.Size())
	assert.Equal(t, 0, hub.RoomSize("go-club"))
	assert.True(t, slow.closed)

	// further emissions to the dropped client are no-ops
	hub.ToConn("slow", EventChatMessage, Message{Text: "late"})
}

func TestSendToCarriesAckID(t *testing.T) {
	hub := newTestHub()
	a := newClient("a", nil)
	hub.add(a)

	hub.sendTo("a", outEnvelope{Event: EventAck, Ack: 42, Data: SendAck{OK: true, ID: "m1"}})

	envelopes := drain(t, a)
	require.Len(t, envelopes, 1)
	assert.Equal(t, EventAck, envelopes[0].Event)
	assert.Equal(t, int64(42), envelopes[0].Ack)

	var ack SendAck
	require.NoError(t, json.Unmarshal(envelopes[0].Data, &ack))
	assert.True(t, ack.OK)
	assert.Equal(t, "m1", ack.ID)
}
