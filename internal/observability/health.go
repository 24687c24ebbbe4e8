package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// readinessResponse is the body of the readiness endpoint. It is meant for
// humans; orchestrators only look at the status code.
type readinessResponse struct {
	Ready  bool              `json:"ready"`
	Status map[string]string `json:"status"`
}

// liveness responds with 200 OK while the process can serve HTTP.
func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every checker in parallel under the configured timeout and
// answers 200 only if all of them pass.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	resp := readinessResponse{Ready: true, Status: make(map[string]string, len(s.checkers))}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, checker := range s.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()

			start := time.Now()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				// WARN rather than ERROR: the orchestrator retries readiness.
				s.logger.Warn("health check failed",
					slog.String("component", c.Name()),
					slog.String("duration", time.Since(start).String()),
					slog.String("error", err.Error()),
				)
				resp.Status[c.Name()] = fmt.Sprintf("down: %v", err)
				resp.Ready = false
				return
			}
			resp.Status[c.Name()] = "up"
		}(checker)
	}

	wg.Wait()

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	// The status code has already been written; an encoding error changes nothing.
	_ = json.NewEncoder(w).Encode(resp)
}
