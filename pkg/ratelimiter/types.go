package ratelimiter

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	ErrInvalidConfig     = errors.New("ratelimiter: invalid configuration")
	ErrInvalidTokenCount = errors.New("ratelimiter: invalid token count")
	ErrUnknownClass      = errors.New("ratelimiter: unknown quota class")
	ErrStoreUnavailable  = errors.New("ratelimiter: store unavailable")
)

// Store holds token buckets by key.
type Store interface {
	// Take refills the bucket for key and removes n tokens when enough are
	// available, as one atomic step. A denied take leaves the bucket as is.
	Take(ctx context.Context, key string, n int, quota Quota) (Result, error)
	Reset(ctx context.Context, key string) error
}

// Result contains the outcome of a single bucket check.
type Result struct {
	Allowed   bool
	Limit     int       // bucket capacity
	Remaining int       // tokens left after this check, never negative
	ResetAt   time.Time // next refill
}

// RetryAfter returns how long to wait before retrying, rounded up to whole
// seconds and at least one second for a denied request.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}
	secs := math.Ceil(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

// Quota defines a token bucket.
type Quota struct {
	Capacity       int           // maximum tokens (burst)
	RefillRate     int           // tokens added per refill interval
	RefillInterval time.Duration // how often tokens are added
}

// PerMinute is a bucket of n tokens refilled in full every minute.
func PerMinute(n int) Quota {
	return Quota{Capacity: n, RefillRate: n, RefillInterval: time.Minute}
}

// PerHour is a bucket of n tokens refilled in full every hour.
func PerHour(n int) Quota {
	return Quota{Capacity: n, RefillRate: n, RefillInterval: time.Hour}
}

// idleTTL is how long a bucket must sit untouched before it is
// indistinguishable from a fresh one.
func (q Quota) idleTTL() time.Duration {
	intervals := (q.Capacity + q.RefillRate - 1) / q.RefillRate
	return time.Duration(intervals) * q.RefillInterval
}

// Class is a named group of endpoints sharing quotas.
type Class string

const (
	ClassLogin    Class = "login"
	ClassRegister Class = "register"
	ClassOAuth    Class = "oauth"
	ClassGeneral  Class = "general"
)

// Dimension is an independent keyspace.
type Dimension string

const (
	DimensionIP    Dimension = "ip"
	DimensionEmail Dimension = "email"
)

// Policy holds the per-dimension quotas of a class. A nil quota means the
// class is not limited along that dimension.
type Policy struct {
	IP    *Quota
	Email *Quota
}

func (p Policy) quota(d Dimension) *Quota {
	switch d {
	case DimensionIP:
		return p.IP
	case DimensionEmail:
		return p.Email
	default:
		return nil
	}
}

func ptr(q Quota) *Quota { return &q }

// DefaultPolicies are the authentication endpoint quotas.
func DefaultPolicies() map[Class]Policy {
	return map[Class]Policy{
		ClassLogin:    {IP: ptr(PerMinute(5)), Email: ptr(PerMinute(10))},
		ClassRegister: {IP: ptr(PerHour(3)), Email: ptr(PerHour(5))},
		ClassOAuth:    {IP: ptr(PerMinute(10))},
		ClassGeneral:  {IP: ptr(PerMinute(60))},
	}
}

// Decision is the combined outcome of checking every dimension of a class.
type Decision struct {
	Allowed bool
	// Dimension that rejected the request; empty when allowed.
	Dimension Dimension
	// Result of the rejecting check, or of the last check when allowed.
	// Nil when nothing was checked.
	Result *Result
}
