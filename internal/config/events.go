package config

import (
	"fmt"
	"os"
	"time"
)

// EventStoreConfig configures the append-only day-file event log.
type EventStoreConfig struct {
	// Dir holds one JSON array file per UTC day.
	Dir string `envconfig:"DIR" default:"./data/events"`

	// Workers is the number of writer goroutines. Each one owns a subset of day-files.
	Workers int `envconfig:"WORKERS" default:"4" validate:"min=1,max=64"`

	// QueueSize bounds the per-worker queue. Producers block when it is full.
	QueueSize int `envconfig:"QUEUE_SIZE" default:"1024" validate:"min=1"`

	// BatchSize triggers a write once a worker has buffered this many events.
	BatchSize int `envconfig:"BATCH_SIZE" default:"256" validate:"min=1"`

	// FlushInterval drives the background flusher.
	FlushInterval time.Duration `envconfig:"FLUSH_INTERVAL" default:"2s"`

	FileMode os.FileMode `envconfig:"FILE_MODE" default:"0644"`
}

// Validate checks EventStoreConfig fields for correctness.
func (c *EventStoreConfig) Validate() error {
	if err := validateNoWhitespace(c.Dir, "events dir"); err != nil {
		return err
	}
	if c.FlushInterval < 100*time.Millisecond {
		return fmt.Errorf("events flush interval must be at least 100ms, got %s", c.FlushInterval)
	}
	return nil
}

// ReportConfig bounds report generation.
type ReportConfig struct {
	// DefaultWindow applies when a caller omits either range bound.
	DefaultWindow time.Duration `envconfig:"DEFAULT_WINDOW" default:"720h"`

	// MaxRange rejects wider requests. It bounds the number of day-files one
	// report can scan, so it must be positive.
	MaxRange time.Duration `envconfig:"MAX_RANGE" default:"8784h"`
}

// Validate checks ReportConfig fields for correctness.
func (c *ReportConfig) Validate() error {
	if c.DefaultWindow <= 0 {
		return fmt.Errorf("report default window must be positive, got %s", c.DefaultWindow)
	}
	if c.MaxRange <= 0 {
		return fmt.Errorf("report max range must be positive, got %s", c.MaxRange)
	}
	if c.DefaultWindow > c.MaxRange {
		return fmt.Errorf("report default window (%s) cannot exceed max range (%s)", c.DefaultWindow, c.MaxRange)
	}
	return nil
}
