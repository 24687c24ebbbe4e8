package config

import (
	"fmt"
	"strings"
	"time"
)

// ObservabilityConfig configures the side server that exposes Prometheus
// metrics and the liveness and readiness endpoints.
type ObservabilityConfig struct {
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout bounds reads, writes and graceful shutdown of the side server.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics"`
}

// Validate checks the port and that the three paths are absolute and distinct.
func (o *ObservabilityConfig) Validate() error {
	if err := validatePort(o.Port, "observability"); err != nil {
		return err
	}

	seen := make(map[string]string, 3)
	for name, p := range map[string]string{
		"liveness":  o.LivenessPath,
		"readiness": o.ReadinessPath,
		"metrics":   o.MetricsPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("observability %s path must start with '/', got %q", name, p)
		}
		if other, dup := seen[p]; dup {
			return fmt.Errorf("observability %s and %s paths collide on %q", other, name, p)
		}
		seen[p] = name
	}
	return nil
}
