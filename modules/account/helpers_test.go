package account_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/logsmart/authcore/modules/account"
	"github.com/logsmart/authcore/pkg/ephemeral"
	"github.com/logsmart/authcore/pkg/jwt"
	"github.com/logsmart/authcore/pkg/logger"
	"github.com/logsmart/authcore/pkg/ratelimiter"
	"github.com/logsmart/authcore/svc/auth"
	"github.com/logsmart/authcore/svc/auth/authtest"
)

const (
	strongPassword = "Str0ng!Pass"
	frontendURL    = "https://app.example.com"
)

// captureMailer remembers the last reset token it was asked to send.
type captureMailer struct {
	mu    sync.Mutex
	token string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, _, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *captureMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// fakeProvider answers each code with a fixed profile.
type fakeProvider struct {
	profiles map[string]auth.OAuthUserInfo
}

func (p *fakeProvider) Name() string { return auth.ProviderGoogle }

func (p *fakeProvider) AuthCodeURL(state, nonce string) string {
	return "https://idp.test/authorize?" + url.Values{"state": {state}, "nonce": {nonce}}.Encode()
}

func (p *fakeProvider) Exchange(_ context.Context, code, _ string) (*auth.OAuthUserInfo, error) {
	info, ok := p.profiles[code]
	if !ok {
		return nil, auth.ErrInvalidCode
	}
	return &info, nil
}

type fixture struct {
	store   *authtest.MemStore
	tokens  *jwt.Service
	mailer  *captureMailer
	handler http.Handler
}

type fixtureOption func(*account.Deps)

func withLimiter(t *testing.T) fixtureOption {
	return func(d *account.Deps) {
		store := ratelimiter.NewMemoryStore()
		t.Cleanup(store.Close)
		l, err := ratelimiter.New(store, ratelimiter.WithLogger(logger.Nop()))
		require.NoError(t, err)
		d.Limiter = l
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{store: authtest.NewMemStore(), mailer: &captureMailer{}}
	tokens, err := jwt.New([]byte("test-signing-key-0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	f.tokens = tokens

	state := ephemeral.NewMemoryStore()
	t.Cleanup(state.Close)

	gate := auth.NewGate(tokens, f.store,
		auth.WithErrorHandler(account.ErrorHandler(logger.Nop())),
		auth.WithGateLogger(logger.Nop()))

	passwords, err := auth.NewService(f.store, authtest.FakeHasher{Prefix: "v1:"}, tokens, state,
		auth.WithMailer(f.mailer),
		auth.WithInvalidator(gate),
		auth.WithServiceLogger(logger.Nop()))
	require.NoError(t, err)

	provider := &fakeProvider{profiles: map[string]auth.OAuthUserInfo{
		"code-ada": {Subject: "g-ada", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"},
		"code-new": {Subject: "g-new", Email: "new@example.com", FirstName: "New", LastName: "Comer"},
	}}
	oauth, err := auth.NewOAuthService(provider, f.store, tokens, state,
		auth.WithOAuthInvalidator(gate),
		auth.WithOAuthLogger(logger.Nop()))
	require.NoError(t, err)

	rp, err := auth.NewRelyingParty(auth.PasskeyConfig{
		RPID:      "localhost",
		RPOrigins: []string{"http://localhost:5173"},
		RPName:    "LogSmart",
	})
	require.NoError(t, err)
	passkeys, err := auth.NewPasskeyService(rp, f.store, f.store, tokens, state,
		auth.WithPasskeyLogger(logger.Nop()))
	require.NoError(t, err)

	deps := account.Deps{
		Config: account.Config{FrontendURL: frontendURL},
		Gate:   gate,
		Logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	f.handler = account.Router(account.RouterOptions{
		Password: account.NewPasswordHandler(passwords, deps),
		Google:   account.NewGoogleHandler(oauth, deps),
		Passkey:  account.NewPasskeyHandler(passkeys, deps),
		Operator: account.NewOperatorHandler(deps,
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("authcore_up 1\n"))
			}),
			func() account.PoolStats { return account.PoolStats{TotalConns: 4, IdleConns: 3, AcquiredConns: 1, MaxConns: 10} }),
	})
	return f
}

// token issues a session for an existing user.
func (f *fixture) token(t *testing.T, u *auth.User) string {
	t.Helper()
	tok, err := f.tokens.Issue(u.ID.String())
	require.NoError(t, err)
	return tok
}

type request struct {
	method  string
	path    string
	body    any
	token   string
	cookies []*http.Cookie
}

func (f *fixture) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if req.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(req.body))
	}
	r := httptest.NewRequest(req.method, req.path, &body)
	r.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
