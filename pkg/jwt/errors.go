package jwt

import (
	"errors"
	"fmt"
)

var (
	ErrMissingToken      = errors.New("jwt: missing token")
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrExpiredToken      = errors.New("jwt: token is expired")
	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrMissingClaims     = errors.New("jwt: missing claims")
)

// ErrInvalidClaims is an ErrInvalidToken whose payload is inconsistent.
var ErrInvalidClaims = fmt.Errorf("%w: subject does not match user_id", ErrInvalidToken)
