package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/logsmart/authcore/pkg/audit"
	"github.com/logsmart/authcore/pkg/ephemeral"
	"github.com/logsmart/authcore/pkg/jwt"
	"github.com/logsmart/authcore/svc/auth/authtest"
)

type memStore = authtest.MemStore

func newMemStore() *memStore { return authtest.NewMemStore() }

// recordingAuditor captures emitted actions.
type recordingAuditor struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	action  string
	success bool
	event   audit.Event
}

func (a *recordingAuditor) Log(_ context.Context, action string, opts ...audit.EventOption) {
	a.record(action, true, opts)
}

func (a *recordingAuditor) LogFailure(_ context.Context, action string, _ error, opts ...audit.EventOption) {
	a.record(action, false, opts)
}

func (a *recordingAuditor) record(action string, success bool, opts []audit.EventOption) {
	var e audit.Event
	for _, opt := range opts {
		opt(&e)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, recordedEvent{action: action, success: success, event: e})
}

func (a *recordingAuditor) last() recordedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return recordedEvent{}
	}
	return a.events[len(a.events)-1]
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *recordingInvalidator) Invalidate(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *recordingInvalidator) invalidated() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.ids...)
}

func newTokens(t *testing.T) *jwt.Service {
	t.Helper()
	tokens, err := jwt.New([]byte("test-signing-key-0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	return tokens
}

func newState(t *testing.T) *ephemeral.MemoryStore {
	t.Helper()
	store := ephemeral.NewMemoryStore()
	t.Cleanup(store.Close)
	return store
}
