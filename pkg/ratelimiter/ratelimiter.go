package ratelimiter

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"strings"
)

// maxKeyLength bounds storage key size; longer identifiers are hashed.
const maxKeyLength = 64

// Limiter enforces per-class quotas across the IP and email keyspaces.
type Limiter struct {
	store    Store
	policies map[Class]Policy
	disabled bool
	logger   *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithPolicies replaces the default class policies.
func WithPolicies(p map[Class]Policy) Option {
	return func(l *Limiter) { l.policies = p }
}

// WithDisabled turns every check into an allow.
func WithDisabled(disabled bool) Option {
	return func(l *Limiter) { l.disabled = disabled }
}

// WithLogger sets the logger used for rejections.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New creates a Limiter backed by store.
func New(store Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}

	l := &Limiter{
		store:    store,
		policies: DefaultPolicies(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	for class, p := range l.policies {
		for _, q := range []*Quota{p.IP, p.Email} {
			if q == nil {
				continue
			}
			if err := q.validate(); err != nil {
				return nil, fmt.Errorf("class %s: %w", class, err)
			}
		}
	}

	if l.disabled {
		l.logger.Warn("rate limiting is disabled")
	}
	return l, nil
}

// Disabled reports whether checks are bypassed.
func (l *Limiter) Disabled() bool { return l.disabled }

// Check atomically tests and decrements the bucket for key in one dimension
// of class. A dimension without a quota always allows.
func (l *Limiter) Check(ctx context.Context, class Class, dim Dimension, key string) (*Result, error) {
	policy, ok := l.policies[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}

	quota := policy.quota(dim)
	if l.disabled || quota == nil {
		return &Result{Allowed: true}, nil
	}

	if dim == DimensionEmail {
		key = strings.ToLower(strings.TrimSpace(key))
	}

	res, err := l.store.Take(ctx, storageKey(class, dim, key), 1, *quota)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		rejections.WithLabelValues(string(class), string(dim)).Inc()
	}
	return &res, nil
}

// Allow checks the IP dimension and then, when email is non-empty and the
// class limits emails, the email dimension. The first rejection wins and
// later dimensions are not consumed.
func (l *Limiter) Allow(ctx context.Context, class Class, ip, email string) (*Decision, error) {
	res, err := l.Check(ctx, class, DimensionIP, ip)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		l.logger.WarnContext(ctx, "rate limit exceeded",
			slog.String("class", string(class)),
			slog.String("dimension", string(DimensionIP)),
			slog.String("ip", ip))
		return &Decision{Dimension: DimensionIP, Result: res}, nil
	}

	if email == "" {
		return &Decision{Allowed: true, Result: res}, nil
	}

	res, err = l.Check(ctx, class, DimensionEmail, email)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		l.logger.WarnContext(ctx, "rate limit exceeded",
			slog.String("class", string(class)),
			slog.String("dimension", string(DimensionEmail)))
		return &Decision{Dimension: DimensionEmail, Result: res}, nil
	}
	return &Decision{Allowed: true, Result: res}, nil
}

// Reset clears one bucket.
func (l *Limiter) Reset(ctx context.Context, class Class, dim Dimension, key string) error {
	if dim == DimensionEmail {
		key = strings.ToLower(strings.TrimSpace(key))
	}
	return l.store.Reset(ctx, storageKey(class, dim, key))
}

// storageKey namespaces a key by class and dimension. Identifiers longer
// than maxKeyLength are replaced by their FNV-1a hash.
func storageKey(class Class, dim Dimension, key string) string {
	if len(key) > maxKeyLength {
		h := fnv.New64a()
		h.Write([]byte(key))
		key = "h" + strconv.FormatUint(h.Sum64(), 36)
	}
	return string(class) + ":" + string(dim) + ":" + key
}

func (q Quota) validate() error {
	if q.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, q.Capacity)
	}
	if q.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, q.RefillRate)
	}
	if q.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, q.RefillInterval)
	}
	return nil
}
