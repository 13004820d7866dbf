package internal

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// this model holds the bubbletea state for the relay client: the input, the
// message log, the presence list, and the websocket connection.
type TUIModel struct {
	textInput     textinput.Model
	serverURL     string
	username      string
	mode          appMode
	websocketConn *websocket.Conn
	writeMutex    sync.Mutex
	isConnected   bool
	connectionErr error

	selfID     string
	scope      string
	room       string
	dmPeerID   string
	dmPeerName string

	presence   []PresenceEntry
	lines      []chatLine
	typingFrom string
	oldestTs   time.Time

	ackSeq         int64
	pendingHistory map[int64]bool
	wasTyping      bool
}

type appMode int

const (
	modeNamePrompt appMode = iota
	modeChat
)

type lineKind int

const (
	lineSystem lineKind = iota
	lineMessage
)

type chatLine struct {
	kind lineKind
	msg  Message
	text string
	ts   time.Time
}

func NewTUIModel(serverURL, username string) *TUIModel {
	input := textinput.New()
	input.CharLimit = 0
	input.Focus()

	model := &TUIModel{
		textInput:      input,
		serverURL:      serverURL,
		username:       strings.TrimSpace(username),
		scope:          ScopeGlobal,
		lines:          make([]chatLine, 0, 64),
		pendingHistory: make(map[int64]bool),
	}
	if model.username == "" {
		model.mode = modeNamePrompt
		model.textInput.Placeholder = "Enter display name…"
		model.textInput.Prompt = "name> "
	} else {
		model.mode = modeChat
		model.textInput.Placeholder = "Type a message…"
		model.textInput.Prompt = "> "
	}
	return model
}

// RunClient launches the Bubble Tea TUI against the given relay server.
func RunClient(serverURL, username string) error {
	program := tea.NewProgram(NewTUIModel(serverURL, username), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (model *TUIModel) Init() tea.Cmd {
	if model.mode == modeChat {
		return connectCmd(model.serverURL, 0)
	}
	return textinput.Blink
}

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		return model.handleKey(typedMessage)
	case connectedMsg:
		return model.handleConnected(typedMessage.conn)
	case connectFailedMsg:
		model.isConnected = false
		model.connectionErr = typedMessage.err
		return model, reconnectCmd(typedMessage.attempt + 1)
	case disconnectedMsg:
		model.isConnected = false
		model.websocketConn = nil
		model.connectionErr = typedMessage.err
		model.addSystemLine("connection lost, reconnecting…")
		return model, reconnectCmd(0)
	case retryMsg:
		return model, connectCmd(model.serverURL, typedMessage.attempt)
	case inboundMsg:
		return model.handleInbound(Envelope(typedMessage))
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(message)
	return model, cmd
}

func (model *TUIModel) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyCtrlC || key.Type == tea.KeyEsc {
		if model.websocketConn != nil {
			_ = model.websocketConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = model.websocketConn.Close()
		}
		return model, tea.Quit
	}

	if key.Type == tea.KeyEnter {
		value := strings.TrimSpace(model.textInput.Value())
		model.textInput.SetValue("")
		switch model.mode {
		case modeNamePrompt:
			if value == "" {
				return model, nil
			}
			model.username = value
			model.mode = modeChat
			model.textInput.Placeholder = "Type a message…"
			model.textInput.Prompt = "> "
			return model, connectCmd(model.serverURL, 0)
		default:
			return model.handleInput(value)
		}
	}

	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	if model.mode == modeChat {
		model.updateTypingState()
	}
	return model, cmd
}

// updateTypingState relays typing start/stop on input transitions.
func (model *TUIModel) updateTypingState() {
	hasText := strings.TrimSpace(model.textInput.Value()) != ""
	if hasText == model.wasTyping || !model.isConnected {
		return
	}
	model.wasTyping = hasText
	_ = model.sendEvent(EventTyping, TypingPayload{
		IsTyping: hasText,
		Scope:    model.scope,
		Room:     model.room,
		To:       model.dmPeerID,
	}, 0)
}

func (model *TUIModel) handleConnected(conn *websocket.Conn) (tea.Model, tea.Cmd) {
	model.websocketConn = conn
	model.isConnected = true
	model.connectionErr = nil
	_ = model.sendEvent(EventJoin, JoinPayload{Username: model.username}, 0)
	if model.room != "" {
		// re-announce room membership after a reconnect
		_ = model.sendEvent(EventRoomJoin, RoomPayload{Room: model.room}, 0)
	}
	model.fetchHistory(time.Time{})
	return model, readCmd(conn)
}

// fetchHistory asks for the page preceding `before` (zero time = latest) in
// the current scope. The reply arrives as an ack envelope.
func (model *TUIModel) fetchHistory(before time.Time) {
	payload := HistoryFetchPayload{Scope: model.scope}
	switch model.scope {
	case ScopeRoom:
		payload.Room = model.room
	case ScopeDM:
		payload.OtherUserID = model.dmPeerID
	}
	if !before.IsZero() {
		payload.Before = before.Format(time.RFC3339Nano)
	}
	model.ackSeq++
	model.pendingHistory[model.ackSeq] = true
	_ = model.sendEvent(EventHistoryFetch, payload, model.ackSeq)
}

func (model *TUIModel) handleInput(value string) (tea.Model, tea.Cmd) {
	if value == "" {
		return model, nil
	}
	if strings.HasPrefix(value, "/") {
		return model.handleCommand(value)
	}
	if !model.isConnected {
		model.addSystemLine("not connected yet")
		return model, nil
	}

	model.ackSeq++
	switch model.scope {
	case ScopeRoom:
		_ = model.sendEvent(EventRoomMessage, RoomSendPayload{Room: model.room, Text: value}, model.ackSeq)
	case ScopeDM:
		_ = model.sendEvent(EventDMSend, DMSendPayload{To: model.dmPeerID, Text: value}, model.ackSeq)
	default:
		_ = model.sendEvent(EventChatMessage, SendPayload{Text: value}, model.ackSeq)
	}
	if model.wasTyping {
		model.wasTyping = false
		_ = model.sendEvent(EventTyping, TypingPayload{IsTyping: false, Scope: model.scope, Room: model.room, To: model.dmPeerID}, 0)
	}
	return model, nil
}

func (model *TUIModel) handleCommand(value string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(value)
	command := fields[0]
	argument := ""
	if len(fields) > 1 {
		argument = strings.Join(fields[1:], " ")
	}

	switch command {
	case "/join":
		if argument == "" {
			model.addSystemLine("usage: /join <room>")
			return model, nil
		}
		if model.room != "" {
			_ = model.sendEvent(EventRoomLeave, RoomPayload{Room: model.room}, 0)
		}
		model.room = argument
		model.scope = ScopeRoom
		model.oldestTs = time.Time{}
		_ = model.sendEvent(EventRoomJoin, RoomPayload{Room: argument}, 0)
		model.fetchHistory(time.Time{})
	case "/leave":
		if model.room == "" {
			model.addSystemLine("not in a room")
			return model, nil
		}
		_ = model.sendEvent(EventRoomLeave, RoomPayload{Room: model.room}, 0)
		model.addSystemLine("left " + model.room)
		model.room = ""
		model.scope = ScopeGlobal
	case "/dm":
		peer, ok := model.findPeer(argument)
		if !ok {
			model.addSystemLine("no such user online: " + argument)
			return model, nil
		}
		model.dmPeerID = peer.ID
		model.dmPeerName = peer.Username
		model.scope = ScopeDM
		model.oldestTs = time.Time{}
		model.fetchHistory(time.Time{})
	case "/global":
		model.scope = ScopeGlobal
		model.oldestTs = time.Time{}
		model.fetchHistory(time.Time{})
	case "/more":
		if model.oldestTs.IsZero() {
			model.addSystemLine("no earlier history loaded")
			return model, nil
		}
		model.fetchHistory(model.oldestTs)
	case "/file":
		if argument == "" {
			model.addSystemLine("usage: /file <path>")
			return model, nil
		}
		if !model.isConnected {
			model.addSystemLine("not connected yet")
			return model, nil
		}
		file, err := loadAttachment(argument)
		if err != nil {
			model.addSystemLine("attach failed: " + err.Error())
			return model, nil
		}
		model.ackSeq++
		switch model.scope {
		case ScopeRoom:
			_ = model.sendEvent(EventRoomMessage, RoomSendPayload{Room: model.room, File: file}, model.ackSeq)
		case ScopeDM:
			_ = model.sendEvent(EventDMSend, DMSendPayload{To: model.dmPeerID, File: file}, model.ackSeq)
		default:
			_ = model.sendEvent(EventChatMessage, SendPayload{File: file}, model.ackSeq)
		}
	case "/who":
		model.addSystemLine("online: " + model.presenceNames())
	case "/quit":
		if model.websocketConn != nil {
			_ = model.websocketConn.Close()
		}
		return model, tea.Quit
	default:
		model.addSystemLine("commands: /join /leave /dm /global /more /file /who /quit")
	}
	return model, nil
}

func (model *TUIModel) findPeer(name string) (PresenceEntry, bool) {
	for _, entry := range model.presence {
		if strings.EqualFold(entry.Username, name) && entry.ID != model.selfID {
			return entry, true
		}
	}
	return PresenceEntry{}, false
}

func (model *TUIModel) presenceNames() string {
	names := make([]string, 0, len(model.presence))
	for _, entry := range model.presence {
		names = append(names, entry.Username)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (model *TUIModel) handleInbound(envelope Envelope) (tea.Model, tea.Cmd) {
	switch envelope.Event {
	case EventPresenceList:
		var entries []PresenceEntry
		if err := json.Unmarshal(envelope.Data, &entries); err == nil {
			model.presence = entries
		}
	case EventWelcome:
		var welcome WelcomePayload
		if err := json.Unmarshal(envelope.Data, &welcome); err == nil {
			model.selfID = welcome.ID
			model.addSystemLine(welcome.Message)
		}
	case EventChatMessage, EventRoomMessage, EventDMMessage:
		var msg Message
		if err := json.Unmarshal(envelope.Data, &msg); err == nil {
			model.addMessageLine(msg)
		}
	case EventRoomSystem:
		var notice RoomNotice
		if err := json.Unmarshal(envelope.Data, &notice); err == nil {
			model.addSystemLine("[" + notice.Room + "] " + notice.Text)
		}
	case EventTyping:
		var relay TypingRelay
		if err := json.Unmarshal(envelope.Data, &relay); err == nil {
			if relay.IsTyping {
				model.typingFrom = relay.Username
			} else {
				model.typingFrom = ""
			}
		}
	case EventMessageReact:
		var relay ReactRelay
		if err := json.Unmarshal(envelope.Data, &relay); err == nil {
			model.addSystemLine(relay.Username + " reacted " + relay.Reaction)
		}
	case EventAck:
		model.handleAck(envelope)
	}
	if model.websocketConn != nil {
		return model, readCmd(model.websocketConn)
	}
	return model, nil
}

func (model *TUIModel) handleAck(envelope Envelope) {
	if !model.pendingHistory[envelope.Ack] {
		// send acks need no handling; delivery already echoed the message
		return
	}
	delete(model.pendingHistory, envelope.Ack)
	var result HistoryResult
	if err := json.Unmarshal(envelope.Data, &result); err != nil {
		return
	}
	// history pages prepend in arrival order, oldest first
	prepended := make([]chatLine, 0, len(result.Items)+len(model.lines))
	for _, msg := range result.Items {
		prepended = append(prepended, chatLine{kind: lineMessage, msg: msg, ts: msg.Ts})
		if model.oldestTs.IsZero() || msg.Ts.Before(model.oldestTs) {
			model.oldestTs = msg.Ts
		}
	}
	model.lines = append(prepended, model.lines...)
}

func (model *TUIModel) addSystemLine(text string) {
	model.lines = append(model.lines, chatLine{kind: lineSystem, text: text, ts: time.Now()})
}

func (model *TUIModel) addMessageLine(msg Message) {
	model.typingFrom = ""
	model.lines = append(model.lines, chatLine{kind: lineMessage, msg: msg, ts: msg.Ts})
}
