package session

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/valkyrie/internal/observability"
)

const backendMemory = "memory"

// MemoryBackend keeps session state in process using the S3-FIFO cache
// provided by 'otter'. Entries expire after the configured TTL and the
// capacity is a hard cap, so abandoned sessions cannot exhaust memory.
type MemoryBackend struct {
	store otter.Cache[string, string]
}

// NewMemoryBackend initializes the in-memory backend with strict limits.
// capacity: Max number of (session, key) entries.
// ttl: Lifetime of an entry, measured from its last write.
func NewMemoryBackend(capacity int, ttl time.Duration) (*MemoryBackend, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("session: capacity must be positive, got %d", capacity)
	}

	cache, err := otter.MustBuilder[string, string](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("session: failed to build memory backend: %w", err)
	}

	return &MemoryBackend{store: cache}, nil
}

// Session returns the Store for one visitor session.
func (b *MemoryBackend) Session(_ context.Context, id string) Store {
	return &memorySession{backend: b, id: id}
}

// Size returns the number of live entries.
func (b *MemoryBackend) Size() int {
	return b.store.Size()
}

// RunMetricsCollector periodically publishes the entry count until ctx is done.
func (b *MemoryBackend) RunMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.SessionItems.Set(float64(b.store.Size()))
		}
	}
}

// Close shuts down the cache and its background cleanup goroutines.
func (b *MemoryBackend) Close() {
	b.store.Close()
}

type memorySession struct {
	backend *MemoryBackend
	id      string
}

func (s *memorySession) Get(key string) (string, bool) {
	v, ok := s.backend.store.Get(compositeKey(s.id, key))
	if ok {
		observability.SessionHits.WithLabelValues(backendMemory).Inc()
	} else {
		observability.SessionMisses.WithLabelValues(backendMemory).Inc()
	}
	return v, ok
}

func (s *memorySession) Set(key, value string) {
	if !s.backend.store.Set(compositeKey(s.id, key), value) {
		observability.SessionBackendErrors.WithLabelValues(backendMemory, "set").Inc()
	}
}
