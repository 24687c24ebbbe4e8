package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/valkyrie/internal/observability"
)

const (
	backendRedis = "redis"

	// KeyPrefix is the namespace used for all session hashes in Redis.
	// Example: "valkyrie:session:2f1c..." with one field per experiment id.
	KeyPrefix = "valkyrie:session"
)

// RedisBackend keeps session state in Redis, one hash per session.
// The TTL is refreshed on every write.
//
// Redis failures never propagate to the assignment path: a failed read is a
// miss and a failed write is dropped (and logged), so the worst case is a
// visitor being reassigned on the next request.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisBackend wraps an already connected client.
func NewRedisBackend(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisBackend {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBackend{client: client, ttl: ttl, logger: logger}
}

// Session returns the Store for one visitor session.
// ctx bounds every Redis call made through the returned Store, so it should be
// the request context.
func (b *RedisBackend) Session(ctx context.Context, id string) Store {
	return &redisSession{ctx: ctx, backend: b, key: compositeKey(KeyPrefix, id)}
}

type redisSession struct {
	ctx     context.Context
	backend *RedisBackend
	key     string
}

func (s *redisSession) Get(field string) (string, bool) {
	v, err := s.backend.client.HGet(s.ctx, s.key, field).Result()
	if errors.Is(err, redis.Nil) {
		observability.SessionMisses.WithLabelValues(backendRedis).Inc()
		return "", false
	}
	if err != nil {
		observability.SessionBackendErrors.WithLabelValues(backendRedis, "get").Inc()
		s.backend.logger.Warn("session read failed, treating as miss",
			slog.String("key", s.key),
			slog.String("field", field),
			slog.String("error", err.Error()),
		)
		return "", false
	}
	observability.SessionHits.WithLabelValues(backendRedis).Inc()
	return v, true
}

func (s *redisSession) Set(field, value string) {
	pipe := s.backend.client.TxPipeline()
	pipe.HSet(s.ctx, s.key, field, value)
	pipe.Expire(s.ctx, s.key, s.backend.ttl)

	if _, err := pipe.Exec(s.ctx); err != nil {
		observability.SessionBackendErrors.WithLabelValues(backendRedis, "set").Inc()
		s.backend.logger.Warn("session write failed, assignment will not stick",
			slog.String("key", s.key),
			slog.String("field", field),
			slog.String("error", err.Error()),
		)
	}
}
