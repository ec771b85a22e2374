package ratelimiter

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/logsmart/authcore/pkg/clientip"
)

// maxEmailPeek bounds how much of a request body is buffered to find the
// email field.
const maxEmailPeek = 64 << 10

// Rejection messages per dimension.
const (
	MessageIPExceeded    = "Rate limit exceeded for your IP address. Please try again later."
	MessageEmailExceeded = "Rate limit exceeded for this email address. Please try again later."
)

// KeyFunc extracts a rate limit key from the request.
type KeyFunc func(r *http.Request) string

type middlewareConfig struct {
	ipKey    KeyFunc
	emailKey KeyFunc
	now      func() time.Time
	logger   *slog.Logger
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithIPKey overrides how the client address is resolved.
func WithIPKey(fn KeyFunc) MiddlewareOption {
	return func(c *middlewareConfig) { c.ipKey = fn }
}

// WithEmailKey overrides how the email identifier is extracted.
func WithEmailKey(fn KeyFunc) MiddlewareOption {
	return func(c *middlewareConfig) { c.emailKey = fn }
}

// WithMiddlewareClock overrides the clock used for Retry-After.
func WithMiddlewareClock(now func() time.Time) MiddlewareOption {
	return func(c *middlewareConfig) { c.now = now }
}

// Middleware enforces the quotas of class. The client IP is always checked;
// the "email" field of a JSON body is checked as well when the class has an
// email quota. The body is restored for the next handler.
func Middleware(l *Limiter, class Class, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{
		ipKey:    clientip.FromRequest,
		emailKey: EmailFromJSONBody,
		now:      time.Now,
		logger:   l.logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	limitsEmail := l.policies[class].Email != nil

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.disabled {
				next.ServeHTTP(w, r)
				return
			}

			var email string
			if limitsEmail {
				email = cfg.emailKey(r)
			}

			decision, err := l.Allow(r.Context(), class, cfg.ipKey(r), email)
			if err != nil {
				cfg.logger.ErrorContext(r.Context(), "rate limiter failure",
					slog.String("class", string(class)),
					slog.String("error", err.Error()))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
				return
			}

			if res := decision.Result; res != nil && res.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			}

			if !decision.Allowed {
				retryAfter := strconv.Itoa(int(decision.Result.RetryAfter(cfg.now()).Seconds()))
				msg := MessageIPExceeded
				if decision.Dimension == DimensionEmail {
					msg = MessageEmailExceeded
				}
				w.Header().Set("Retry-After", retryAfter)
				writeJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":       msg,
					"retry_after": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// EmailFromJSONBody reads the top-level "email" string from a JSON body and
// puts the consumed bytes back in front of the remaining stream.
func EmailFromJSONBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, maxEmailPeek))
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	if err != nil {
		return ""
	}

	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(buf, &payload) != nil {
		return ""
	}
	return payload.Email
}

type readCloser struct {
	io.Reader
	io.Closer
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
