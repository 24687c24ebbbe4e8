package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext(t *testing.T) {
	t.Parallel()

	t.Run("Should return the injected logger instance when present", func(t *testing.T) {
		expectedLogger := slog.New(slog.NewJSONHandler(io.Discard, nil))
		ctx := WithContext(context.Background(), expectedLogger)

		assert.Same(t, expectedLogger, FromContext(ctx))
	})

	t.Run("Should return the global default logger when context is empty", func(t *testing.T) {
		assert.Same(t, slog.Default(), FromContext(context.Background()))
	})

	t.Run("Should fall back to the default logger when a nil logger was stored", func(t *testing.T) {
		ctx := WithContext(context.Background(), nil)
		assert.Same(t, slog.Default(), FromContext(ctx))
	})
}

func TestWith(t *testing.T) {
	t.Parallel()

	t.Run("Should carry the parent attributes and the new ones", func(t *testing.T) {
		var buf bytes.Buffer
		base := slog.New(slog.NewJSONHandler(&buf, nil)).With(slog.String("request_id", "r-1"))
		ctx := WithContext(context.Background(), base)

		ctx, log := With(ctx, slog.String("experiment_id", "exp-1"))
		log.Info("hello")

		assert.Same(t, log, FromContext(ctx))
		assert.Contains(t, buf.String(), `"request_id":"r-1"`)
		assert.Contains(t, buf.String(), `"experiment_id":"exp-1"`)
	})
}
