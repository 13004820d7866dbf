package internal

import (
	"encoding/json"
	"math/rand"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// reconnect policy: 500ms base doubling to a 5s cap, with ±50% jitter so a
// restarting server is not stampeded by every client at once.
const (
	reconnectBase = 500 * time.Millisecond
	reconnectMax  = 5 * time.Second
)

// these bubbletea messages represent asynchronous transport events: dialing,
// inbound envelopes, and connection loss.
type (
	connectedMsg     struct{ conn *websocket.Conn }
	connectFailedMsg struct {
		attempt int
		err     error
	}
	retryMsg        struct{ attempt int }
	inboundMsg      Envelope
	disconnectedMsg struct{ err error }
)

// connectCmd dials the relay server in the background.
func connectCmd(serverURL string, attempt int) tea.Cmd {
	return func() tea.Msg {
		conn, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
		if err != nil {
			return connectFailedMsg{attempt: attempt, err: err}
		}
		return connectedMsg{conn: conn}
	}
}

// reconnectCmd schedules the next dial attempt after a backoff delay.
func reconnectCmd(attempt int) tea.Cmd {
	return tea.Tick(backoffDelay(attempt), func(time.Time) tea.Msg {
		return retryMsg{attempt: attempt}
	})
}

func backoffDelay(attempt int) time.Duration {
	delay := reconnectBase
	for i := 0; i < attempt && delay < reconnectMax; i++ {
		delay *= 2
	}
	if delay > reconnectMax {
		delay = reconnectMax
	}
	// jitter between 50% and 150% of the computed delay
	jittered := delay/2 + time.Duration(rand.Int63n(int64(delay)))
	return jittered
}

// readCmd blocks on the next inbound frame and hands it to the update loop.
func readCmd(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return disconnectedMsg{err: err}
		}
		var envelope Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Event == "" {
			// skip unreadable frames and keep reading
			return readCmd(conn)()
		}
		return inboundMsg(envelope)
	}
}

// sendEvent writes one envelope to the server. Safe to call from the update
// loop only; the model serializes writes through its mutex anyway.
func (model *TUIModel) sendEvent(event string, data any, ackID int64) error {
	model.writeMutex.Lock()
	defer model.writeMutex.Unlock()
	if model.websocketConn == nil {
		return websocket.ErrCloseSent
	}
	payload, err := json.Marshal(outEnvelope{Event: event, Data: data, Ack: ackID})
	if err != nil {
		return err
	}
	_ = model.websocketConn.SetWriteDeadline(time.Now().Add(writeWait))
	return model.websocketConn.WriteMessage(websocket.TextMessage, payload)
}
