//go:build integration

package session_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/session"
	"github.com/rafaeljc/valkyrie/internal/testsupport"
)

func TestRedisBackend_Integration(t *testing.T) {
	// 1. Infrastructure Setup
	ctx := context.Background()

	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisCtr.Terminate(ctx)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := session.NewRedisBackend(redisCtr.Client, 5*time.Minute, log)

	// Spy client for side-channel verification of the stored layout.
	spy := redis.NewClient(&redis.Options{Addr: redisCtr.Endpoint})
	defer spy.Close()

	t.Run("Should store values in a per-session hash with a TTL", func(t *testing.T) {
		s := backend.Session(ctx, "sess-1")
		s.Set("hero", "bold")

		v, ok := s.Get("hero")
		require.True(t, ok)
		assert.Equal(t, "bold", v)

		raw, err := spy.HGet(ctx, session.KeyPrefix+":sess-1", "hero").Result()
		require.NoError(t, err)
		assert.Equal(t, "bold", raw)

		ttl, err := spy.TTL(ctx, session.KeyPrefix+":sess-1").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("Should report a miss for unknown sessions", func(t *testing.T) {
		require.NoError(t, redisCtr.Reset(ctx))
		_, ok := backend.Session(ctx, "sess-unknown").Get("hero")
		assert.False(t, ok)
	})

	t.Run("Should degrade to a miss when Redis is unreachable", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		labels := map[string]string{"backend": "redis", "op": "get"}
		testsupport.AssertMetricDelta(t, "valkyrie_session_backend_errors_total", labels, 1, func() {
			_, ok := backend.Session(cancelled, "sess-1").Get("hero")
			assert.False(t, ok)
		})
	})

	t.Run("Should pass the readiness check", func(t *testing.T) {
		checker := session.NewRedisChecker(redisCtr.Client)
		assert.Equal(t, "redis", checker.Name())
		assert.NoError(t, checker.Check(ctx))
	})
}
