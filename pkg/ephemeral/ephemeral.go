package ephemeral

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Purpose namespaces entries so that a token issued for one flow can never
// be consumed by another.
type Purpose string

const (
	PurposeState          Purpose = "state" // OAuth CSRF state
	PurposeLink           Purpose = "link"  // pending OAuth account link
	PurposeRegistration   Purpose = "reg"   // passkey registration ceremony
	PurposeAuthentication Purpose = "auth"  // passkey authentication ceremony
	PurposeReset          Purpose = "reset" // password reset token
)

// Default lifetimes per purpose.
const (
	StateTTL   = 10 * time.Minute
	LinkTTL    = 5 * time.Minute
	PasskeyTTL = 5 * time.Minute
	ResetTTL   = 24 * time.Hour
)

// Store holds short-lived single-use entries.
type Store interface {
	// Put stores payload under key for ttl, replacing any previous entry.
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	// Take atomically returns and removes the entry. Absent, expired and
	// already taken entries all yield ErrNotFound.
	Take(ctx context.Context, key string) ([]byte, error)
}

// Key builds the storage key for token under purpose.
func Key(p Purpose, token string) string {
	return string(p) + ":" + token
}

// Typed stores JSON encoded values of T under one purpose.
type Typed[T any] struct {
	store   Store
	purpose Purpose
	ttl     time.Duration
}

// NewTyped binds a store to a purpose and lifetime.
func NewTyped[T any](store Store, purpose Purpose, ttl time.Duration) *Typed[T] {
	return &Typed[T]{store: store, purpose: purpose, ttl: ttl}
}

// TTL returns the entry lifetime.
func (t *Typed[T]) TTL() time.Duration { return t.ttl }

// Put encodes v and stores it under token.
func (t *Typed[T]) Put(ctx context.Context, token string, v T) error {
	if token == "" {
		return ErrEmptyKey
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ephemeral: encode %s entry: %w", t.purpose, err)
	}
	return t.store.Put(ctx, Key(t.purpose, token), payload, t.ttl)
}

// Take consumes the entry under token and decodes it.
func (t *Typed[T]) Take(ctx context.Context, token string) (T, error) {
	var v T
	if token == "" {
		return v, ErrNotFound
	}
	payload, err := t.store.Take(ctx, Key(t.purpose, token))
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, errors.Join(ErrCorruptEntry, err)
	}
	return v, nil
}

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewToken returns n random alphanumeric characters drawn without modulo bias.
func NewToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("ephemeral: token length must be positive, got %d", n)
	}

	out := make([]byte, 0, n)
	buf := make([]byte, n+n/4)
	// 248 is the largest multiple of 62 below 256.
	const limit = 256 - 256%len(tokenAlphabet)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("ephemeral: generate token: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
