package internal

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// message scopes
const (
	ScopeGlobal = "global"
	ScopeRoom   = "room"
	ScopeDM     = "dm"
)

// Attachment is an opaque file descriptor relayed between clients as-is.
// The server never decodes or validates the payload.
type Attachment struct {
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
	DataURL string `json:"dataUrl,omitempty"`
	Size    int64  `json:"size,omitempty"`
}

// Message is a single relayed chat message. Immutable once built: the
// username is a snapshot taken at send time, so a later rename never
// rewrites history.
type Message struct {
	ID       string      `json:"id"`
	Scope    string      `json:"scope"`
	Room     string      `json:"room,omitempty"`
	To       string      `json:"to,omitempty"`
	UserID   string      `json:"userId"`
	Username string      `json:"username"`
	Text     string      `json:"text,omitempty"`
	File     *Attachment `json:"file,omitempty"`
	Ts       time.Time   `json:"ts"`
}

// IDGenerator hands out ULIDs from a single monotonic entropy source, so
// ids minted within the same millisecond still sort in creation order.
type IDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next mints a message id for the given creation time.
func (generator *IDGenerator) Next(ts time.Time) string {
	generator.mu.Lock()
	defer generator.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(ts), generator.entropy).String()
}
