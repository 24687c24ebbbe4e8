package config

import (
	"fmt"
	"time"
)

const (
	// BackendMemory keeps state inside the process.
	BackendMemory = "memory"
	// BackendPostgres persists experiment definitions in PostgreSQL.
	BackendPostgres = "postgres"
	// BackendRedis keeps visitor sessions in Redis.
	BackendRedis = "redis"
)

// RegistryConfig selects where experiment definitions are stored.
type RegistryConfig struct {
	Backend string `envconfig:"BACKEND" default:"memory" validate:"oneof=memory postgres"`
}

// UsesPostgres reports whether the registry requires a database connection.
func (c *RegistryConfig) UsesPostgres() bool {
	return c.Backend == BackendPostgres
}

// SessionConfig configures the server-side session state used by sticky assignments.
// The client only ever receives an opaque session id in CookieName.
type SessionConfig struct {
	Backend      string        `envconfig:"BACKEND" default:"memory" validate:"oneof=memory redis"`
	TTL          time.Duration `envconfig:"TTL" default:"30m"`
	Capacity     int           `envconfig:"CAPACITY" default:"100000" validate:"min=1"`
	CookieName   string        `envconfig:"COOKIE_NAME" default:"valkyrie_session"`
	CookieSecure bool          `envconfig:"COOKIE_SECURE" default:"false"`
}

// UsesRedis reports whether sessions require a Redis connection.
func (c *SessionConfig) UsesRedis() bool {
	return c.Backend == BackendRedis
}

// Validate checks SessionConfig fields for correctness.
func (c *SessionConfig) Validate() error {
	if c.TTL < time.Minute {
		return fmt.Errorf("session TTL must be at least 1m, got %s", c.TTL)
	}
	if err := validateNoWhitespace(c.CookieName, "session cookie name"); err != nil {
		return err
	}
	return nil
}
