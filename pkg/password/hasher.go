package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/logsmart/authcore/pkg/async"
)

var b64 = base64.RawStdEncoding

// Hasher produces and verifies argon2id hashes in PHC string format.
// At most pool-size hashes run at once so that concurrent logins cannot
// saturate every CPU at once.
type Hasher struct {
	params Params
	pool   *async.Pool
	owned  bool
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithParams overrides the argon2id cost parameters.
func WithParams(p Params) Option {
	return func(h *Hasher) { h.params = p }
}

// WithPool runs hashing on an existing pool instead of a private one.
func WithPool(p *async.Pool) Option {
	return func(h *Hasher) { h.pool = p }
}

// New creates a Hasher. Without WithPool it owns a pool sized to GOMAXPROCS
// which Close releases.
func New(opts ...Option) (*Hasher, error) {
	h := &Hasher{params: DefaultParams}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.params.validate(); err != nil {
		return nil, err
	}
	if h.pool == nil {
		h.pool = async.NewPool(0)
		h.owned = true
	}
	return h, nil
}

// Close closes the private pool, if any.
func (h *Hasher) Close() {
	if h.owned {
		h.pool.Close()
	}
}

// Hash derives a new salted hash of password. Any string, including the
// empty one, is accepted; policy checks belong to ValidatePolicy.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	return async.Run(ctx, h.pool, func(context.Context) (string, error) {
		start := time.Now()
		defer func() { hashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds()) }()
		return HashWithParams(password, h.params)
	})
}

// Verify reports whether password matches encoded. A malformed encoding
// returns ErrMalformedHash rather than false.
func (h *Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	d, err := decode(encoded)
	if err != nil {
		return false, err
	}
	return async.Run(ctx, h.pool, func(context.Context) (bool, error) {
		start := time.Now()
		defer func() { hashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds()) }()
		return d.matches(password), nil
	})
}

// NeedsRehash reports whether encoded was produced with parameters other
// than the hasher's current ones.
func (h *Hasher) NeedsRehash(encoded string) bool {
	d, err := decode(encoded)
	if err != nil {
		return true
	}
	return d.params != h.params
}

// HashWithParams hashes synchronously on the calling goroutine.
func HashWithParams(password string, p Params) (string, error) {
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

func (d *decoded) matches(password string) bool {
	key := argon2.IDKey([]byte(password), d.salt, d.params.Time, d.params.Memory, d.params.Threads, d.params.KeyLen)
	return subtle.ConstantTimeCompare(key, d.key) == 1
}
