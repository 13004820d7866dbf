package internal

import (
	"strings"
	"sync"

	"github.com/samber/lo"
)

// AnonymousName replaces empty or whitespace-only display names.
const AnonymousName = "Anonymous"

// PresenceEntry is one row of the presence list broadcast to every client.
type PresenceEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// SessionRegistry maps live connection ids to display names. It is the
// source of truth for who is online. The registry is a pure data structure:
// presence broadcasts are the dispatcher's job.
type SessionRegistry struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{names: make(map[string]string)}
}

// Register normalizes rawName (trimmed, empty falls back to the placeholder)
// and stores it against connID, overwriting any prior entry. It returns the
// normalized name and never fails.
func (registry *SessionRegistry) Register(connID, rawName string) string {
	name := strings.TrimSpace(rawName)
	if name == "" {
		name = AnonymousName
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.names[connID] = name
	return name
}

// Unregister removes the entry for connID and reports whether one was
// present. Duplicate disconnect signals land here as harmless no-ops.
func (registry *SessionRegistry) Unregister(connID string) bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, ok := registry.names[connID]; !ok {
		return false
	}
	delete(registry.names, connID)
	return true
}

// NameOf returns the registered display name, or the placeholder for ids the
// registry does not know. Events racing a disconnect must not crash routing.
func (registry *SessionRegistry) NameOf(connID string) string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	if name, ok := registry.names[connID]; ok {
		return name
	}
	return AnonymousName
}

// Presence returns a snapshot of everyone online. Order is arbitrary but the
// snapshot is consistent: it is built under one lock acquisition.
func (registry *SessionRegistry) Presence() []PresenceEntry {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return lo.MapToSlice(registry.names, func(id, name string) PresenceEntry {
		return PresenceEntry{ID: id, Username: name}
	})
}

// Count reports how many sessions are registered.
func (registry *SessionRegistry) Count() int {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return len(registry.names)
}
