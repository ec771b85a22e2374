// Package pgstore implements the authentication stores on PostgreSQL.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/logsmart/authcore/pkg/pg"
	"github.com/logsmart/authcore/svc/auth"
)

const (
	constraintUsersEmail      = "users_email_key"
	constraintIdentityPK      = "oauth_identities_pkey"
	constraintIdentityPerUser = "oauth_identities_user_provider_key"
)

// Store implements auth.UserStore and auth.PasskeyStore.
type Store struct {
	db  pg.DB
	now func() time.Time
}

var (
	_ auth.UserStore    = (*Store)(nil)
	_ auth.PasskeyStore = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source for created and updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store on db, usually a *pgxpool.Pool.
func New(db pg.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) timestamp() time.Time { return s.now().UTC() }

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", auth.ErrPersistence, op, err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
