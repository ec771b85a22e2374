package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/logsmart/authcore/pkg/rbac"
)

// ProviderGoogle is the stored provider name for Google identities.
const ProviderGoogle = "google"

// User is an account as seen by the authentication core.
type User struct {
	ID            uuid.UUID
	Email         string
	FirstName     string
	LastName      string
	PasswordHash  string // empty for accounts created through a provider
	CompanyID     *uuid.UUID
	CompanyName   string
	Role          rbac.Role
	OAuthProvider string // provider of the linked identity, if any
	CreatedAt     time.Time
}

// HasPassword reports whether the user can log in with a password.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }

// Cached returns the projection kept by the access gate.
func (u *User) Cached() CachedUser {
	return CachedUser{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CompanyID: u.CompanyID,
	}
}

// CachedUser is the read-only projection used to authorize requests.
// It is never used for writes.
type CachedUser struct {
	ID        uuid.UUID
	Email     string
	FirstName string
	LastName  string
	Role      rbac.Role
	CompanyID *uuid.UUID
}

// Company is the tenant created alongside its first administrator.
type Company struct {
	Name    string
	Address string
}

// OAuthIdentity binds a provider subject to a local user.
type OAuthIdentity struct {
	Provider  string
	Subject   string
	UserID    uuid.UUID
	CreatedAt time.Time
}

// PasskeyCredential is a stored WebAuthn credential. Credential holds the
// JSON encoded public key material; SignCount is authoritative over the
// counter embedded in it.
type PasskeyCredential struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	CredentialID []byte
	Credential   []byte
	SignCount    uint32
	Name         string
	CreatedAt    time.Time
	LastUsedAt   *time.Time
}

// Session is an issued session token and the user it belongs to.
type Session struct {
	Token string
	User  *User
}
