package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims is the session token payload: {user_id, sub, exp, iat}.
// Subject and UserID always carry the same value.
type Claims struct {
	UserID string `json:"user_id"`
	gojwt.RegisteredClaims
}

// Service issues and validates HS256 session tokens.
// The signing key is fixed at construction and never changes afterwards.
type Service struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
	parser     *gojwt.Parser
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used when issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a token service with the provided signing key and default ttl.
func New(signingKey []byte, ttl time.Duration, opts ...Option) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	key := make([]byte, len(signingKey))
	copy(key, signingKey)

	s := &Service{signingKey: key, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = gojwt.NewParser(
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(s.now),
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuedAt(),
	)
	return s, nil
}

// NewFromConfig builds a Service from Config.
func NewFromConfig(cfg Config, opts ...Option) (*Service, error) {
	return New([]byte(cfg.Secret), cfg.TTL, opts...)
}

// TTL returns the default session lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs a session token for userID with the default ttl.
func (s *Service) Issue(userID string) (string, error) {
	return s.IssueWithTTL(userID, s.ttl)
}

// IssueWithTTL signs a session token that expires ttl from now.
// A non-positive ttl produces a token that is already expired. A positive ttl
// always yields an exp at least one second after iat, since both claims are
// encoded in whole seconds.
func (s *Service) IssueWithTTL(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", ErrMissingClaims
	}

	now := s.now()
	exp := now.Add(ttl)
	if ttl > 0 {
		exp = exp.Truncate(time.Second)
		if floor := now.Truncate(time.Second).Add(time.Second); exp.Before(floor) {
			exp = floor
		}
	}
	claims := Claims{
		UserID: userID,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(exp),
		},
	}

	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return token, nil
}

// Validate verifies signature, algorithm and expiry and returns the claims.
// Expiry is strict: a token is valid only while now < exp.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(*gojwt.Token) (any, error) {
		return s.signingKey, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}
