package ratelimiter_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsmart/authcore/pkg/ratelimiter"
)

func echoBody(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		_, _ = w.Write(body)
	})
}

func post(ip, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	r.RemoteAddr = ip + ":1234"
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestMiddleware_LoginByIP(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := newLimiter(t, clock)
	h := ratelimiter.Middleware(l, ratelimiter.ClassLogin, ratelimiter.WithMiddlewareClock(clock.Now))(echoBody(t))

	body := `{"email":"user@example.com","password":"x"}`
	for range 5 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, post("198.51.100.1", body))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, body, w.Body.String(), "body restored for handler")
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	}

	clock.Advance(18 * time.Second)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, post("198.51.100.1", body))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ratelimiter.MessageIPExceeded, resp["error"])
	assert.Equal(t, "42", resp["retry_after"])
}

func TestMiddleware_LoginByEmail(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()

	body := `{"email":"Target@Example.com","password":"x"}`

	l := newLimiter(t, clock)
	h := ratelimiter.Middleware(l, ratelimiter.ClassLogin, ratelimiter.WithMiddlewareClock(clock.Now))(echoBody(t))
	ips := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.6", "10.0.0.7", "10.0.0.8", "10.0.0.9", "10.0.0.10"}
	for _, ip := range ips {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, post(ip, body))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, post("10.0.0.11", body))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ratelimiter.MessageEmailExceeded, resp["error"])
	assert.Equal(t, "60", resp["retry_after"])
}

func TestMiddleware_GeneralIgnoresEmail(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := newLimiter(t, clock)
	h := ratelimiter.Middleware(l, ratelimiter.ClassGeneral)(echoBody(t))

	// non-JSON bodies pass through untouched
	w := httptest.NewRecorder()
	h.ServeHTTP(w, post("198.51.100.1", "not json"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not json", w.Body.String())
}

func TestMiddleware_Disabled(t *testing.T) {
	t.Parallel()
	l := newLimiter(t, newFakeClock(), ratelimiter.WithDisabled(true))
	h := ratelimiter.Middleware(l, ratelimiter.ClassRegister)(echoBody(t))

	for range 10 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, post("198.51.100.1", `{"email":"a@example.com"}`))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestEmailFromJSONBody(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@example.com","other":1}`))
	assert.Equal(t, "a@example.com", ratelimiter.EmailFromJSONBody(r))
	rest, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@example.com","other":1}`, string(rest))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ratelimiter.EmailFromJSONBody(r))
}
