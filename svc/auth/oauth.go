package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/logsmart/authcore/pkg/audit"
	"github.com/logsmart/authcore/pkg/ephemeral"
	"github.com/logsmart/authcore/pkg/jwt"
	"github.com/logsmart/authcore/pkg/logger"
	"github.com/logsmart/authcore/pkg/password"
	"github.com/logsmart/authcore/pkg/rbac"
)

const (
	stateTokenLength = 32
	nonceLength      = 32
	linkTokenLength  = 64
)

// Mode selects what a provider round trip is for.
type Mode string

const (
	ModeLogin Mode = "login"
	ModeLink  Mode = "link"
)

// ParseMode accepts "login", "link" or empty, which means login.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeLogin:
		return ModeLogin, nil
	case ModeLink:
		return ModeLink, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// OAuthUserInfo is the verified profile extracted from an id_token.
type OAuthUserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	FirstName     string `json:"given_name"`
	LastName      string `json:"family_name"`
	Picture       string `json:"picture,omitempty"`
}

// IdentityProvider performs the provider specific part of the code flow.
type IdentityProvider interface {
	// Name is the stored provider identifier, e.g. "google".
	Name() string

	// AuthCodeURL builds the authorization URL carrying state and nonce.
	AuthCodeURL(state, nonce string) string

	// Exchange redeems code, verifies the id_token and its nonce and
	// returns the profile. Errors are ErrInvalidCode, ErrUpstreamUnavailable,
	// ErrNonceMismatch, ErrMissingEmail or ErrEmailNotVerified.
	Exchange(ctx context.Context, code, nonce string) (*OAuthUserInfo, error)
}

type stateEntry struct {
	Nonce string `json:"nonce"`
	Link  bool   `json:"link"`
}

type linkEntry struct {
	Info OAuthUserInfo `json:"info"`
}

// Authorization is a started provider round trip.
type Authorization struct {
	URL   string
	State string
	Nonce string
}

// CallbackResult is the outcome of a provider callback. Exactly one of
// Session and LinkToken is set, depending on Mode.
type CallbackResult struct {
	Mode      Mode
	Session   *Session
	LinkToken string
}

// OAuthService federates logins through an identity provider and links
// provider identities to existing accounts.
type OAuthService struct {
	provider    IdentityProvider
	users       UserStore
	tokens      *jwt.Service
	states      *ephemeral.Typed[stateEntry]
	links       *ephemeral.Typed[linkEntry]
	audit       Auditor
	invalidator Invalidator
	log         *slog.Logger
}

// OAuthOption configures an OAuthService.
type OAuthOption func(*OAuthService)

func WithOAuthLogger(log *slog.Logger) OAuthOption {
	return func(s *OAuthService) { s.log = log }
}

func WithOAuthAuditor(a Auditor) OAuthOption {
	return func(s *OAuthService) { s.audit = a }
}

func WithOAuthInvalidator(inv Invalidator) OAuthOption {
	return func(s *OAuthService) { s.invalidator = inv }
}

// NewOAuthService wires the federation flow. state holds CSRF state and
// pending link tokens.
func NewOAuthService(provider IdentityProvider, users UserStore, tokens *jwt.Service, state ephemeral.Store, opts ...OAuthOption) (*OAuthService, error) {
	if provider == nil || users == nil || tokens == nil || state == nil {
		return nil, errors.New("auth: provider, user store, token service and state store are required")
	}

	s := &OAuthService{
		provider:    provider,
		users:       users,
		tokens:      tokens,
		states:      ephemeral.NewTyped[stateEntry](state, ephemeral.PurposeState, ephemeral.StateTTL),
		links:       ephemeral.NewTyped[linkEntry](state, ephemeral.PurposeLink, ephemeral.LinkTTL),
		audit:       nopAuditor{},
		invalidator: nopInvalidator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDefault(s.log).With(logger.Component("oauth"), logger.Provider(provider.Name()))
	return s, nil
}

// Provider returns the provider name.
func (s *OAuthService) Provider() string { return s.provider.Name() }

// InitiateLogin stores fresh state and nonce and returns the provider URL.
func (s *OAuthService) InitiateLogin(ctx context.Context, mode Mode) (*Authorization, error) {
	if mode != ModeLogin && mode != ModeLink {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	state, err := ephemeral.NewToken(stateTokenLength)
	if err != nil {
		return nil, err
	}
	nonce, err := ephemeral.NewToken(nonceLength)
	if err != nil {
		return nil, err
	}
	if err := s.states.Put(ctx, state, stateEntry{Nonce: nonce, Link: mode == ModeLink}); err != nil {
		return nil, persistence(err)
	}

	return &Authorization{
		URL:   s.provider.AuthCodeURL(state, nonce),
		State: state,
		Nonce: nonce,
	}, nil
}

// Callback completes a round trip started by InitiateLogin. In login mode
// it resolves an existing account and issues a session; in link mode it
// parks the verified profile under a link token for ConfirmLink.
func (s *OAuthService) Callback(ctx context.Context, state, code string) (*CallbackResult, error) {
	entry, info, err := s.exchange(ctx, state, code)
	if err != nil {
		oauthCallbacks.WithLabelValues("unknown", "failure").Inc()
		s.audit.LogFailure(ctx, audit.ActionOAuthLogin, err, audit.WithMetadata("provider", s.provider.Name()))
		return nil, err
	}

	if entry.Link {
		token, err := s.parkLink(ctx, info)
		oauthCallbacks.WithLabelValues(string(ModeLink), resultLabel(err)).Inc()
		if err != nil {
			return nil, err
		}
		return &CallbackResult{Mode: ModeLink, LinkToken: token}, nil
	}

	session, err := s.login(ctx, info)
	oauthCallbacks.WithLabelValues(string(ModeLogin), resultLabel(err)).Inc()
	authAttempts.WithLabelValues("oauth", resultLabel(err)).Inc()
	if err != nil {
		s.audit.LogFailure(ctx, audit.ActionOAuthLogin, err,
			audit.WithEmail(info.Email),
			audit.WithMetadata("provider", s.provider.Name()))
		return nil, err
	}
	s.audit.Log(ctx, audit.ActionOAuthLogin,
		audit.WithUserID(session.User.ID.String()),
		audit.WithEmail(info.Email),
		audit.WithMetadata("provider", s.provider.Name()))
	return &CallbackResult{Mode: ModeLogin, Session: session}, nil
}

func (s *OAuthService) exchange(ctx context.Context, state, code string) (stateEntry, *OAuthUserInfo, error) {
	if state == "" {
		return stateEntry{}, nil, ErrInvalidState
	}
	if code == "" {
		return stateEntry{}, nil, ErrInvalidCode
	}

	entry, err := s.states.Take(ctx, state)
	if err != nil {
		if errors.Is(err, ephemeral.ErrNotFound) || errors.Is(err, ephemeral.ErrCorruptEntry) {
			return stateEntry{}, nil, ErrInvalidState
		}
		return stateEntry{}, nil, persistence(err)
	}

	info, err := s.provider.Exchange(ctx, code, entry.Nonce)
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			s.log.ErrorContext(ctx, "provider exchange failed", logger.Error(err))
		}
		return stateEntry{}, nil, err
	}
	info.Email = password.NormalizeEmail(info.Email)
	if info.Email == "" {
		return stateEntry{}, nil, ErrMissingEmail
	}
	return entry, info, nil
}

func (s *OAuthService) parkLink(ctx context.Context, info *OAuthUserInfo) (string, error) {
	token, err := ephemeral.NewToken(linkTokenLength)
	if err != nil {
		return "", err
	}
	if err := s.links.Put(ctx, token, linkEntry{Info: *info}); err != nil {
		return "", persistence(err)
	}
	return token, nil
}

func (s *OAuthService) login(ctx context.Context, info *OAuthUserInfo) (*Session, error) {
	user, err := s.GetOrCreateUser(ctx, info, false)
	if err != nil {
		return nil, err
	}
	return issueSession(s.tokens, user)
}

// GetOrCreateUser resolves the local account for a verified profile:
// the linked user if the identity is known, ErrOAuthEmailExists if the
// email belongs to an unlinked account, ErrInvitationRequired when new
// accounts are not allowed, otherwise a new member created together with
// its identity.
func (s *OAuthService) GetOrCreateUser(ctx context.Context, info *OAuthUserInfo, allowNewAccount bool) (*User, error) {
	user, err := s.users.GetByOAuthIdentity(ctx, s.provider.Name(), info.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, persistence(err)
	}

	email := password.NormalizeEmail(info.Email)
	_, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrOAuthEmailExists
	case !errors.Is(err, ErrUserNotFound):
		return nil, persistence(err)
	case !allowNewAccount:
		return nil, ErrInvitationRequired
	}

	user, err = s.users.CreateWithIdentity(ctx, &User{
		Email:         email,
		FirstName:     info.FirstName,
		LastName:      info.LastName,
		Role:          rbac.RoleMember,
		OAuthProvider: s.provider.Name(),
	}, OAuthIdentity{Provider: s.provider.Name(), Subject: info.Subject})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrOAuthEmailExists
		}
		if errors.Is(err, ErrIdentityLinked) {
			return nil, err
		}
		return nil, persistence(err)
	}
	s.log.InfoContext(ctx, "account created from provider identity", logger.UserID(user.ID.String()))
	return user, nil
}

// LinkAccount binds the provider identity to userID. Linking an identity
// that already belongs to userID is a no-op.
func (s *OAuthService) LinkAccount(ctx context.Context, userID uuid.UUID, info *OAuthUserInfo) error {
	err := s.link(ctx, userID, info)
	if err != nil {
		s.audit.LogFailure(ctx, audit.ActionOAuthLink, err,
			audit.WithUserID(userID.String()),
			audit.WithMetadata("provider", s.provider.Name()))
		return err
	}
	s.invalidator.Invalidate(userID)
	s.audit.Log(ctx, audit.ActionOAuthLink,
		audit.WithUserID(userID.String()),
		audit.WithMetadata("provider", s.provider.Name()))
	return nil
}

func (s *OAuthService) link(ctx context.Context, userID uuid.UUID, info *OAuthUserInfo) error {
	owner, err := s.users.GetByOAuthIdentity(ctx, s.provider.Name(), info.Subject)
	switch {
	case err == nil && owner.ID == userID:
		return nil
	case err == nil:
		return ErrIdentityLinked
	case !errors.Is(err, ErrUserNotFound):
		return persistence(err)
	}

	err = s.users.LinkOAuthIdentity(ctx, OAuthIdentity{
		Provider: s.provider.Name(),
		Subject:  info.Subject,
		UserID:   userID,
	})
	if err != nil && !errors.Is(err, ErrIdentityLinked) && !errors.Is(err, ErrUserNotFound) {
		return persistence(err)
	}
	return err
}

// ConfirmLink consumes a link token issued by Callback and links the
// parked identity to userID.
func (s *OAuthService) ConfirmLink(ctx context.Context, userID uuid.UUID, linkToken string) error {
	if linkToken == "" {
		return ErrInvalidLinkToken
	}
	entry, err := s.links.Take(ctx, linkToken)
	if err != nil {
		if errors.Is(err, ephemeral.ErrNotFound) || errors.Is(err, ephemeral.ErrCorruptEntry) {
			return ErrInvalidLinkToken
		}
		return persistence(err)
	}
	return s.LinkAccount(ctx, userID, &entry.Info)
}

// LinkWithCode links directly from an authorization code, for clients that
// complete the provider round trip themselves.
func (s *OAuthService) LinkWithCode(ctx context.Context, userID uuid.UUID, state, code string) error {
	_, info, err := s.exchange(ctx, state, code)
	if err != nil {
		s.audit.LogFailure(ctx, audit.ActionOAuthLink, err, audit.WithUserID(userID.String()))
		return err
	}
	return s.LinkAccount(ctx, userID, info)
}

// Unlink removes the provider identity. Accounts without a password keep
// their only way in, so they get ErrPasswordRequired.
func (s *OAuthService) Unlink(ctx context.Context, userID uuid.UUID) error {
	err := s.unlink(ctx, userID)
	if err != nil {
		s.audit.LogFailure(ctx, audit.ActionOAuthUnlink, err, audit.WithUserID(userID.String()))
		return err
	}
	s.invalidator.Invalidate(userID)
	s.audit.Log(ctx, audit.ActionOAuthUnlink,
		audit.WithUserID(userID.String()),
		audit.WithMetadata("provider", s.provider.Name()))
	return nil
}

func (s *OAuthService) unlink(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return persistence(err)
	}
	if !user.HasPassword() {
		return ErrPasswordRequired
	}

	err = s.users.UnlinkOAuthIdentity(ctx, userID, s.provider.Name())
	if err != nil && !errors.Is(err, ErrNoProviderLink) {
		return persistence(err)
	}
	return err
}
