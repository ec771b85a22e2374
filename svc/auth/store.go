package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore is the persistence contract of the authentication core.
// Lookups return ErrUserNotFound when nothing matches. Other failures are
// reported wrapped in ErrPersistence.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByOAuthIdentity(ctx context.Context, provider, subject string) (*User, error)

	// CreateCompanyAdmin inserts the company and its admin user in one
	// transaction. A taken email yields ErrEmailTaken.
	CreateCompanyAdmin(ctx context.Context, user *User, company Company) (*User, error)

	// CreateWithIdentity inserts the user and its provider identity in one
	// transaction. A taken email yields ErrEmailTaken and a taken identity
	// ErrIdentityLinked.
	CreateWithIdentity(ctx context.Context, user *User, identity OAuthIdentity) (*User, error)

	// LinkOAuthIdentity binds identity to its user. An identity already bound
	// to another user yields ErrIdentityLinked.
	LinkOAuthIdentity(ctx context.Context, identity OAuthIdentity) error

	// UnlinkOAuthIdentity removes the user's identity for provider.
	// ErrNoProviderLink is returned when there is none.
	UnlinkOAuthIdentity(ctx context.Context, userID uuid.UUID, provider string) error

	UpdateProfile(ctx context.Context, userID uuid.UUID, firstName, lastName string) (*User, error)
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
}

// PasskeyStore persists WebAuthn credentials.
type PasskeyStore interface {
	ListPasskeys(ctx context.Context, userID uuid.UUID) ([]PasskeyCredential, error)
	CreatePasskey(ctx context.Context, cred *PasskeyCredential) error

	// GetPasskeyByCredentialID returns ErrPasskeyNotFound when unknown.
	GetPasskeyByCredentialID(ctx context.Context, credentialID []byte) (*PasskeyCredential, error)

	// UpdatePasskeyCounter stores the new counter and last use time.
	UpdatePasskeyCounter(ctx context.Context, id uuid.UUID, signCount uint32, usedAt time.Time) error

	// DeletePasskey removes the credential only when it belongs to userID,
	// otherwise ErrPasskeyNotFound.
	DeletePasskey(ctx context.Context, userID, id uuid.UUID) error
}
