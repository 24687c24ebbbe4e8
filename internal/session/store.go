// Package session provides the server-side state behind sticky assignments.
//
// The visitor only ever holds an opaque session id. The variant itself lives
// here, so editing a cookie cannot forge an assignment.
package session

import (
	"context"
	"sync"
)

// Store is session-scoped key/value state.
// A Store is bound to one visitor session; keys are experiment ids.
type Store interface {
	// Get returns the stored value and whether it was found.
	Get(key string) (string, bool)

	// Set stores value under key for the lifetime of the session.
	Set(key, value string)
}

// Backend hands out the Store of a session id.
type Backend interface {
	Session(ctx context.Context, id string) Store
}

// Compile-time checks.
var (
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*RedisBackend)(nil)

	_ Store = (*Map)(nil)
	_ Store = (*memorySession)(nil)
	_ Store = (*redisSession)(nil)
)

// Map is a Store backed by a plain map. It is safe for concurrent use.
// Useful when the host application already scopes state per request.
type Map struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[string]string)}
}

func (m *Map) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// compositeKey namespaces a key inside a session.
func compositeKey(sessionID, key string) string {
	return sessionID + ":" + key
}
