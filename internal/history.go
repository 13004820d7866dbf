package internal

import (
	"sync"
	"time"
)

const (
	// DefaultHistoryCapacity bounds each scope buffer; the oldest entry is
	// evicted first once a buffer is full.
	DefaultHistoryCapacity = 500
	// DefaultPageLimit applies when a history fetch does not name a limit.
	DefaultPageLimit = 25
	// GlobalScopeKey selects the single global buffer. Room buffers are keyed
	// by the room name verbatim, dm buffers by DMScopeKey.
	GlobalScopeKey = "global"
)

// DMScopeKey derives the shared buffer key for a participant pair. The ids
// are sorted first so (a,b) and (b,a) address the same buffer.
func DMScopeKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// HistoryStore keeps a bounded append-only buffer of messages per scope key.
// Buffers hold arrival order, which is not necessarily timestamp order.
type HistoryStore struct {
	mu       sync.RWMutex
	capacity int
	buffers  map[string][]Message
}

func NewHistoryStore(capacity int) *HistoryStore {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &HistoryStore{
		capacity: capacity,
		buffers:  make(map[string][]Message),
	}
}

// Capacity returns the fixed per-buffer bound.
func (store *HistoryStore) Capacity() int {
	return store.capacity
}

// Append inserts msg at the tail of the buffer for key, creating the buffer
// on first use and evicting the head once length exceeds capacity.
func (store *HistoryStore) Append(key string, msg Message) {
	store.mu.Lock()
	defer store.mu.Unlock()
	buffer := append(store.buffers[key], msg)
	if len(buffer) > store.capacity {
		buffer = buffer[1:]
	}
	store.buffers[key] = buffer
}

// Page returns up to limit messages whose timestamp is strictly earlier than
// before (the zero time means no cursor), selecting the latest qualifying
// entries and returning them in ascending arrival order. A key with no
// buffer yields an empty page; that is not an error.
func (store *HistoryStore) Page(key string, before time.Time, limit int) []Message {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	store.mu.RLock()
	defer store.mu.RUnlock()
	buffer := store.buffers[key]
	filtered := make([]Message, 0, len(buffer))
	for _, msg := range buffer {
		if before.IsZero() || msg.Ts.Before(before) {
			filtered = append(filtered, msg)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}

// Len reports the current length of the buffer for key.
func (store *HistoryStore) Len(key string) int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.buffers[key])
}
