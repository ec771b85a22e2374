package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsmart/authcore/pkg/logger"
)

type ctxKey struct{}

func TestNew_JSONWithExtractors(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	log := logger.New(
		logger.WithOutput(buf),
		logger.WithAttr(slog.String("service", "authcore")),
		logger.WithContextExtractors(logger.ContextValue("request_id", func(ctx context.Context) string {
			v, _ := ctx.Value(ctxKey{}).(string)
			return v
		})),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	log.InfoContext(ctx, "hello", logger.UserID("u1"), logger.Error(errors.New("boom")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "authcore", entry["service"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "boom", entry["error"])
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	t.Run("development is debug text", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("dev", "svc"))
		log.Debug("dbg")
		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "env=development")
	})

	t.Run("production is info json", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("production", "svc"))
		log.Debug("hidden")
		assert.Empty(t, buf.String())
		log.Info("shown")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "production", entry["env"])
		assert.Equal(t, "svc", entry["service"])
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	_, err := logger.NewFromConfig(logger.Config{Env: "production", Level: "loud"})
	assert.Error(t, err)

	buf := &bytes.Buffer{}
	log, err := logger.NewFromConfig(logger.Config{Env: "production", Level: "warn"}, logger.WithOutput(buf))
	require.NoError(t, err)
	log.Info("hidden")
	assert.Empty(t, buf.String())
	log.Warn("shown")
	assert.NotEmpty(t, buf.String())
}

func TestWithFormat_PanicsOnInvalid(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
}

func TestOrDefault(t *testing.T) {
	t.Parallel()
	assert.Same(t, slog.Default(), logger.OrDefault(nil))
	l := logger.Nop()
	assert.Same(t, l, logger.OrDefault(l))
}

func TestNew_RedactsSecrets(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf))
	log.Info("login", slog.String("password", "hunter2"), slog.String("Token", "abc"), logger.Email("a@b.c"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[REDACTED]", entry["password"])
	assert.Equal(t, "[REDACTED]", entry["Token"])
	assert.Equal(t, "a@b.c", entry["email"])
}
