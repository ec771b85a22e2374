package auth

import (
	"errors"

	"github.com/logsmart/authcore/pkg/rbac"
)

// ErrValidation is wrapped by every input validation failure. The wrapped
// message is safe to show to clients.
var ErrValidation = errors.New("auth: validation failed")

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrEmailTaken         = errors.New("auth: email already exists")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrInvitationRequired = errors.New("auth: no account and no invitation")
	ErrInvalidResetToken  = errors.New("auth: invalid or expired reset token")
	ErrPersistence        = errors.New("auth: persistence failure")

	// ErrInsufficientPermissions is the gate's authorization failure.
	ErrInsufficientPermissions = rbac.ErrInsufficientPermissions
)

// OAuth federation errors.
var (
	ErrInvalidState        = errors.New("auth: invalid or expired oauth state")
	ErrInvalidCode         = errors.New("auth: invalid authorization code")
	ErrNonceMismatch       = errors.New("auth: id token nonce mismatch")
	ErrMissingEmail        = errors.New("auth: email not provided by provider")
	ErrEmailNotVerified    = errors.New("auth: provider has not verified the email")
	ErrUpstreamUnavailable = errors.New("auth: upstream unavailable")
	ErrOAuthEmailExists    = errors.New("auth: account with this email already exists")
	ErrIdentityLinked      = errors.New("auth: identity linked to another user")
	ErrNoProviderLink      = errors.New("auth: no linked provider account")
	ErrPasswordRequired    = errors.New("auth: password required before unlinking")
	ErrInvalidLinkToken    = errors.New("auth: invalid or expired link token")
	ErrInvalidMode         = errors.New("auth: invalid oauth mode")
)

// Passkey ceremony errors.
var (
	ErrSessionNotFound     = errors.New("auth: ceremony session expired or invalid")
	ErrVerificationFailed  = errors.New("auth: failed to verify credential")
	ErrCounterNotIncreased = errors.New("auth: signature counter did not increase")
	ErrNoCredentials       = errors.New("auth: no passkeys found for this user")
	ErrPasskeyNotFound     = errors.New("auth: passkey not found")
)
