package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/observability"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                  { return s.name }
func (s stubChecker) Check(_ context.Context) error { return s.err }

func testConfig() *config.ObservabilityConfig {
	return &config.ObservabilityConfig{
		Port:          "0",
		Timeout:       time.Second,
		LivenessPath:  "/alive",
		ReadinessPath: "/check-deps",
		MetricsPath:   "/telemetry",
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestServer_HealthEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("Liveness should return 200 OK on the configured path", func(t *testing.T) {
		srv := observability.NewServer(nil, testConfig())
		rr := get(t, srv.Handler(), "/alive")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ok", rr.Body.String())
	})

	t.Run("Readiness should report every checker", func(t *testing.T) {
		srv := observability.NewServer(nil, testConfig(),
			stubChecker{name: "eventstore"},
			stubChecker{name: "redis"},
		)
		rr := get(t, srv.Handler(), "/check-deps")
		require.Equal(t, http.StatusOK, rr.Code)

		var body struct {
			Status map[string]string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, map[string]string{"eventstore": "up", "redis": "up"}, body.Status)
	})

	t.Run("Readiness should return 503 when any checker fails", func(t *testing.T) {
		srv := observability.NewServer(nil, testConfig(),
			stubChecker{name: "eventstore"},
			stubChecker{name: "redis", err: errors.New("connection refused")},
		)
		rr := get(t, srv.Handler(), "/check-deps")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "down: connection refused")
	})

	t.Run("Metrics should be exposed on the configured path", func(t *testing.T) {
		// Touch a vector so that it has at least one child to export.
		observability.AssignmentsTotal.WithLabelValues("hash", "computed").Add(0)

		srv := observability.NewServer(nil, testConfig())
		rr := get(t, srv.Handler(), "/telemetry")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "go_goroutines")
		assert.Contains(t, rr.Body.String(), "valkyrie_")
	})
}

func TestServer_Run(t *testing.T) {
	t.Parallel()

	srv := observability.NewServer(nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	// Give ListenAndServe a moment to bind before stopping.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
