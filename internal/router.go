package internal

// Gateway is the transport's addressing capability. Rooms are the
// transport's groups: the router delegates "all members of room R" to the
// gateway and never tracks membership itself.
type Gateway interface {
	Broadcast(event string, payload any)
	BroadcastExcept(exceptID, event string, payload any)
	ToConn(connID, event string, payload any)
	ToRoom(room, event string, payload any)
	ToRoomExcept(room, exceptID, event string, payload any)
	JoinRoom(connID, room string)
	LeaveRoom(connID, room string)
}

// Router turns a scoped event into gateway emissions. Echo rules: messages
// echo to the sender in every scope (dm needs an explicit second emission,
// global and room reach the sender through the broadcast itself), reactions
// echo, typing and read receipts never do. Signals with an unknown scope or
// incomplete addressing degrade to the global rule.
type Router struct {
	gateway Gateway
}

func NewRouter(gateway Gateway) *Router {
	return &Router{gateway: gateway}
}

// DeliverMessage emits msg to its scope's delivery set.
func (router *Router) DeliverMessage(msg Message) {
	switch msg.Scope {
	case ScopeRoom:
		router.gateway.ToRoom(msg.Room, EventRoomMessage, msg)
	case ScopeDM:
		// recipient and sender are disjoint targets; echo explicitly
		router.gateway.ToConn(msg.To, EventDMMessage, msg)
		router.gateway.ToConn(msg.UserID, EventDMMessage, msg)
	default:
		router.gateway.Broadcast(EventChatMessage, msg)
	}
}

// DeliverRoomNotice emits a join/leave system notice to the room's current
// members.
func (router *Router) DeliverRoomNotice(room string, notice RoomNotice) {
	router.gateway.ToRoom(room, EventRoomSystem, notice)
}

// DeliverTyping relays a typing indicator, never echoing to the sender.
func (router *Router) DeliverTyping(senderID string, relay TypingRelay) {
	switch {
	case relay.Scope == ScopeDM && relay.To != "":
		router.gateway.ToConn(relay.To, EventTyping, relay)
	case relay.Scope == ScopeRoom && relay.Room != "":
		router.gateway.ToRoomExcept(relay.Room, senderID, EventTyping, relay)
	default:
		router.gateway.BroadcastExcept(senderID, EventTyping, relay)
	}
}

// DeliverRead relays a read receipt to everyone in scope but the reader.
func (router *Router) DeliverRead(senderID, otherID string, relay ReadRelay) {
	switch {
	case relay.Scope == ScopeDM && otherID != "":
		router.gateway.ToConn(otherID, EventMessageRead, relay)
	case relay.Scope == ScopeRoom && relay.Room != "":
		router.gateway.ToRoomExcept(relay.Room, senderID, EventMessageRead, relay)
	default:
		router.gateway.BroadcastExcept(senderID, EventMessageRead, relay)
	}
}

// DeliverReaction relays a reaction; the sender hears its own reaction in
// every scope (for dm via an explicit echo, otherwise via membership).
func (router *Router) DeliverReaction(senderID, otherID string, relay ReactRelay) {
	switch {
	case relay.Scope == ScopeDM && otherID != "":
		router.gateway.ToConn(otherID, EventMessageReact, relay)
		router.gateway.ToConn(senderID, EventMessageReact, relay)
	case relay.Scope == ScopeRoom && relay.Room != "":
		router.gateway.ToRoom(relay.Room, EventMessageReact, relay)
	default:
		router.gateway.Broadcast(EventMessageReact, relay)
	}
}
