package audit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsmart/authcore/pkg/audit"
)

type memoryStorage struct {
	mu      sync.Mutex
	events  []audit.Event
	batches int
	block   chan struct{}
	err     error
}

func (m *memoryStorage) StoreBatch(ctx context.Context, events []audit.Event) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *memoryStorage) snapshot() []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Event(nil), m.events...)
}

func TestLogger_FlushOnClose(t *testing.T) {
	t.Parallel()

	store := &memoryStorage{}
	l := audit.NewLogger(store,
		audit.WithOptions(audit.Options{BatchTimeout: time.Hour}),
		audit.WithRequestIDExtractor(func(context.Context) string { return "req-1" }),
	)

	l.Log(context.Background(), audit.ActionLogin, audit.WithUserID("u1"))
	l.LogFailure(context.Background(), audit.ActionLogin, errors.New("invalid credentials"),
		audit.WithMetadata("email", "ann@example.com"),
		audit.WithMetadata("password", "secret"),
	)
	require.NoError(t, l.Close(context.Background()))

	events := store.snapshot()
	require.Len(t, events, 2)

	assert.Equal(t, audit.ResultSuccess, events[0].Result)
	assert.Equal(t, "u1", events[0].UserID)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.NotEmpty(t, events[0].ID)

	assert.Equal(t, audit.ResultFailure, events[1].Result)
	assert.Equal(t, "invalid credentials", events[1].Error)
	assert.Equal(t, "a**@example.com", events[1].Metadata["email"])
	assert.NotContains(t, events[1].Metadata, "password")
}

func TestLogger_BatchSize(t *testing.T) {
	t.Parallel()

	store := &memoryStorage{}
	l := audit.NewLogger(store, audit.WithOptions(audit.Options{BatchSize: 2, BatchTimeout: time.Hour}))
	for range 4 {
		l.Log(context.Background(), audit.ActionRegister)
	}

	assert.Eventually(t, func() bool { return len(store.snapshot()) == 4 }, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Close(context.Background()))
}

func TestLogger_DropsWhenFull(t *testing.T) {
	t.Parallel()

	store := &memoryStorage{block: make(chan struct{})}
	var buf bytes.Buffer
	var bufMu sync.Mutex
	log := slog.New(slog.NewTextHandler(&lockedWriter{w: &buf, mu: &bufMu}, nil))

	l := audit.NewLogger(store,
		audit.WithLogger(log),
		audit.WithOptions(audit.Options{BufferSize: 1, BatchSize: 1, BatchTimeout: time.Hour}),
	)

	start := time.Now()
	for range 50 {
		l.Log(context.Background(), audit.ActionPasskeyLogin)
	}
	assert.Less(t, time.Since(start), time.Second, "Log must not block")

	close(store.block)
	require.NoError(t, l.Close(context.Background()))

	assert.Less(t, len(store.snapshot()), 50)
	bufMu.Lock()
	assert.Contains(t, buf.String(), "audit event dropped")
	bufMu.Unlock()
}

func TestLogger_AfterClose(t *testing.T) {
	t.Parallel()

	store := &memoryStorage{}
	l := audit.NewLogger(store)
	require.NoError(t, l.Close(context.Background()))
	require.NoError(t, l.Close(context.Background()))

	assert.NotPanics(t, func() { l.Log(context.Background(), audit.ActionLogin) })
	assert.Empty(t, store.snapshot())
}

func TestLogger_InvalidEventIgnored(t *testing.T) {
	t.Parallel()

	store := &memoryStorage{}
	l := audit.NewLogger(store)
	l.Log(context.Background(), "")
	require.NoError(t, l.Close(context.Background()))
	assert.Empty(t, store.snapshot())
}

func TestLogger_StorageErrorDoesNotStopWorker(t *testing.T) {
	t.Parallel()

	store := &memoryStorage{err: errors.New("db down")}
	l := audit.NewLogger(store, audit.WithOptions(audit.Options{BatchSize: 1}))
	l.Log(context.Background(), audit.ActionLogin)
	l.Log(context.Background(), audit.ActionLogin)
	require.NoError(t, l.Close(context.Background()))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 2, store.batches)
}

func TestMetadataFilter(t *testing.T) {
	t.Parallel()

	f := audit.NewMetadataFilter(audit.WithField("provider", audit.FilterActionHash))
	out := f.Filter(map[string]any{
		"email":      "x@example.com",
		"link_token": "abc",
		"provider":   "google",
		"name":       "laptop",
	})

	assert.Equal(t, "x@example.com", out["email"], "single-char local part stays as is")
	assert.NotContains(t, out, "link_token")
	assert.Len(t, out["provider"], 64)
	assert.Equal(t, "laptop", out["name"])
	assert.Nil(t, f.Filter(nil))
}

func TestSlogStorage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := audit.NewSlogStorage(slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, s.StoreBatch(context.Background(), []audit.Event{{
		ID: "1", Action: audit.ActionOAuthLogin, Result: audit.ResultSuccess, UserID: "u1",
	}}))
	assert.Contains(t, buf.String(), `"event":"auth.oauth.login"`)
	assert.Contains(t, buf.String(), `"user_id":"u1"`)
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
