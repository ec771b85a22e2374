package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/logsmart/authcore/pkg/cache"
	"github.com/logsmart/authcore/pkg/cookie"
	"github.com/logsmart/authcore/pkg/jwt"
	"github.com/logsmart/authcore/pkg/logger"
	"github.com/logsmart/authcore/pkg/rbac"
)

// Default user cache sizing.
const (
	DefaultCacheShards   = 16
	DefaultCacheCapacity = 10000
	DefaultCacheTTL      = 5 * time.Minute
)

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Gate authenticates requests by session token and authorizes them by
// capability. Users are resolved through a sharded TTL cache in front of
// the UserStore.
type Gate struct {
	tokens  *jwt.Service
	users   UserStore
	cache   *cache.Sharded[CachedUser]
	group   singleflight.Group
	extract jwt.TokenExtractorFunc
	onError ErrorHandler
	log     *slog.Logger

	shards   int
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateCache overrides the user cache sizing.
func WithGateCache(shards, capacity int, ttl time.Duration) GateOption {
	return func(g *Gate) {
		g.shards, g.capacity, g.ttl = shards, capacity, ttl
	}
}

// WithTokenExtractor replaces the bearer-then-cookie extractor.
func WithTokenExtractor(fn jwt.TokenExtractorFunc) GateOption {
	return func(g *Gate) { g.extract = fn }
}

func WithErrorHandler(h ErrorHandler) GateOption {
	return func(g *Gate) { g.onError = h }
}

func WithGateLogger(log *slog.Logger) GateOption {
	return func(g *Gate) { g.log = log }
}

func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// NewGate creates an access gate.
func NewGate(tokens *jwt.Service, users UserStore, opts ...GateOption) *Gate {
	g := &Gate{
		tokens:   tokens,
		users:    users,
		extract:  jwt.ChainExtractors(jwt.BearerTokenExtractor, jwt.CookieTokenExtractor(cookie.SessionName)),
		onError:  defaultErrorHandler,
		shards:   DefaultCacheShards,
		capacity: DefaultCacheCapacity,
		ttl:      DefaultCacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = logger.OrDefault(g.log).With(logger.Component("gate"))
	g.cache = cache.NewSharded[CachedUser](g.shards, g.capacity, g.ttl, g.now)
	return g
}

// Resolve validates token and returns the user it belongs to. Tokens of
// unknown users are rejected with jwt.ErrInvalidToken.
func (g *Gate) Resolve(ctx context.Context, token string) (*CachedUser, *jwt.Claims, error) {
	claims, err := g.tokens.Validate(token)
	if err != nil {
		return nil, nil, err
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, nil, jwt.ErrInvalidToken
	}

	key := id.String()
	if u, ok := g.cache.Get(key); ok {
		gateLookups.WithLabelValues("hit").Inc()
		return &u, claims, nil
	}
	gateLookups.WithLabelValues("miss").Inc()

	v, err, _ := g.group.Do(key, func() (any, error) {
		user, err := g.users.GetByID(context.WithoutCancel(ctx), id)
		if err != nil {
			return nil, err
		}
		cached := user.Cached()
		g.cache.Put(key, cached)
		return cached, nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, jwt.ErrInvalidToken
		}
		return nil, nil, persistence(err)
	}
	u := v.(CachedUser)
	return &u, claims, nil
}

// Invalidate drops the cached projection of userID.
func (g *Gate) Invalidate(userID uuid.UUID) {
	g.cache.Remove(userID.String())
}

// Authenticate requires a valid session token and stores the user, role,
// token and claims in the request context. No capability is checked.
func (g *Gate) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := g.extract(r)
			if err != nil {
				g.onError(w, r, err)
				return
			}
			user, claims, err := g.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrPersistence) {
					g.log.ErrorContext(r.Context(), "user lookup failed", logger.Error(err))
				}
				g.onError(w, r, err)
				return
			}

			ctx := SetUserToContext(r.Context(), user)
			ctx = rbac.WithRole(ctx, user.Role)
			ctx = jwt.SetToken(ctx, token)
			ctx = jwt.SetClaims(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require authenticates the request and rejects it with
// ErrInsufficientPermissions unless the user's role holds c.
func (g *Gate) Require(c rbac.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.Authenticate()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r.Context())
			if err := c.Check(user.Role); err != nil {
				g.log.WarnContext(r.Context(), "access denied",
					logger.UserID(user.ID.String()),
					slog.String("capability", c.String()))
				g.onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status, msg := http.StatusUnauthorized, "Unauthorized"
	switch {
	case errors.Is(err, ErrInsufficientPermissions):
		status, msg = http.StatusForbidden, "Insufficient permissions"
	case errors.Is(err, ErrPersistence):
		status, msg = http.StatusInternalServerError, "Internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
