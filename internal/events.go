package internal

import (
	"encoding/json"
	"time"
)

// event names exchanged between client and server. Inbound and outbound
// share a namespace: a chat:message in is relayed as a chat:message out.
const (
	EventJoin         = "user:join"
	EventChatMessage  = "chat:message"
	EventRoomJoin     = "room:join"
	EventRoomLeave    = "room:leave"
	EventRoomMessage  = "room:message"
	EventRoomSystem   = "room:system"
	EventDMSend       = "dm:send"
	EventDMMessage    = "dm:message"
	EventTyping       = "typing"
	EventMessageRead  = "message:read"
	EventMessageReact = "message:react"
	EventHistoryFetch = "history:fetch"
	EventPresenceList = "presence:list"
	EventWelcome      = "server:welcome"
	EventAck          = "ack"
)

// Envelope is the inbound wire frame. Ack is a positive client-chosen
// correlation id; zero means the sender does not want a reply.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   int64           `json:"ack,omitempty"`
}

// outEnvelope is the outbound wire frame, marshaled once per fan-out.
type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Ack   int64  `json:"ack,omitempty"`
}

// inbound payloads

type JoinPayload struct {
	Username string `json:"username"`
}

type SendPayload struct {
	Text string      `json:"text"`
	File *Attachment `json:"file"`
}

type RoomPayload struct {
	Room string `json:"room"`
}

type RoomSendPayload struct {
	Room string      `json:"room"`
	Text string      `json:"text"`
	File *Attachment `json:"file"`
}

type DMSendPayload struct {
	To   string      `json:"to"`
	Text string      `json:"text"`
	File *Attachment `json:"file"`
}

type TypingPayload struct {
	IsTyping bool   `json:"isTyping"`
	Scope    string `json:"scope"`
	Room     string `json:"room"`
	To       string `json:"to"`
}

type ReadPayload struct {
	MessageID   string `json:"messageId"`
	Scope       string `json:"scope"`
	Room        string `json:"room"`
	OtherUserID string `json:"otherUserId"`
}

type ReactPayload struct {
	MessageID   string `json:"messageId"`
	Reaction    string `json:"reaction"`
	Scope       string `json:"scope"`
	Room        string `json:"room"`
	OtherUserID string `json:"otherUserId"`
}

type HistoryFetchPayload struct {
	Scope       string `json:"scope"`
	Before      string `json:"before"`
	Limit       int    `json:"limit"`
	Room        string `json:"room"`
	OtherUserID string `json:"otherUserId"`
}

// outbound payloads

type WelcomePayload struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type RoomNotice struct {
	Room string    `json:"room"`
	Text string    `json:"text"`
	Ts   time.Time `json:"ts"`
}

type TypingRelay struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
	Scope    string `json:"scope"`
	Room     string `json:"room,omitempty"`
	To       string `json:"to,omitempty"`
}

type ReadRelay struct {
	MessageID string `json:"messageId"`
	ReaderID  string `json:"readerId"`
	Scope     string `json:"scope"`
	Room      string `json:"room,omitempty"`
}

type ReactRelay struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
	From      string `json:"from"`
	Username  string `json:"username"`
	Scope     string `json:"scope"`
	Room      string `json:"room,omitempty"`
}

// SendAck confirms a message send to its author. There is no negative
// acknowledgment: rejected sends are dropped without a reply.
type SendAck struct {
	OK bool      `json:"ok"`
	ID string    `json:"id"`
	Ts time.Time `json:"ts"`
}

// HistoryResult carries one backward page of history. An empty Items slice
// means "no more / no such history", never an error.
type HistoryResult struct {
	Items []Message `json:"items"`
}
