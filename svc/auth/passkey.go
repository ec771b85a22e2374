package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/logsmart/authcore/pkg/audit"
	"github.com/logsmart/authcore/pkg/ephemeral"
	"github.com/logsmart/authcore/pkg/jwt"
	"github.com/logsmart/authcore/pkg/logger"
	"github.com/logsmart/authcore/pkg/password"
)

const defaultPasskeyName = "Passkey"

// PasskeyConfig configures the WebAuthn relying party.
type PasskeyConfig struct {
	RPID      string   `env:"RP_ID" envDefault:"localhost"`
	RPOrigins []string `env:"RP_ORIGIN" envDefault:"http://localhost:5173" envSeparator:","`
	RPName    string   `env:"RP_NAME" envDefault:"LogSmart"`
}

// NewRelyingParty builds the go-webauthn relying party from cfg.
func NewRelyingParty(cfg PasskeyConfig) (*webauthn.WebAuthn, error) {
	rp, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPName,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("auth: configure relying party: %w", err)
	}
	return rp, nil
}

// RelyingParty is the subset of *webauthn.WebAuthn used by the ceremonies.
type RelyingParty interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, parsed *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, parsed *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateDiscoverableLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, parsed *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

type ceremonyKind string

const (
	ceremonyRegistration ceremonyKind = "reg"
	ceremonyAuthenticate ceremonyKind = "auth"
	ceremonyDiscoverable ceremonyKind = "discoverable"
)

type ceremonySession struct {
	Kind   ceremonyKind         `json:"kind"`
	UserID uuid.UUID            `json:"user_id"`
	Name   string               `json:"name,omitempty"`
	Data   webauthn.SessionData `json:"data"`
}

// passkeyUser adapts a User and its credentials to webauthn.User.
// The user handle is the raw 16 byte user id.
type passkeyUser struct {
	user   *User
	stored []PasskeyCredential
	creds  []webauthn.Credential
}

func (u *passkeyUser) WebAuthnID() []byte {
	id := u.user.ID
	return id[:]
}

func (u *passkeyUser) WebAuthnName() string { return u.user.Email }

func (u *passkeyUser) WebAuthnDisplayName() string {
	return strings.TrimSpace(u.user.FirstName + " " + u.user.LastName)
}

func (u *passkeyUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func (u *passkeyUser) find(credentialID []byte) (*PasskeyCredential, bool) {
	for i := range u.stored {
		if bytes.Equal(u.stored[i].CredentialID, credentialID) {
			return &u.stored[i], true
		}
	}
	return nil, false
}

// PasskeyLogin is a completed passkey authentication.
type PasskeyLogin struct {
	Session      *Session
	CredentialID []byte
	SignCount    uint32
}

// PasskeyService coordinates WebAuthn registration and authentication
// ceremonies. Ceremony state lives server side and is correlated only by
// the returned session id.
type PasskeyService struct {
	rp       RelyingParty
	users    UserStore
	passkeys PasskeyStore
	tokens   *jwt.Service
	reg      *ephemeral.Typed[ceremonySession]
	auth     *ephemeral.Typed[ceremonySession]
	audit    Auditor
	log      *slog.Logger
	now      func() time.Time
}

// PasskeyOption configures a PasskeyService.
type PasskeyOption func(*PasskeyService)

func WithPasskeyLogger(log *slog.Logger) PasskeyOption {
	return func(s *PasskeyService) { s.log = log }
}

func WithPasskeyAuditor(a Auditor) PasskeyOption {
	return func(s *PasskeyService) { s.audit = a }
}

func WithPasskeyClock(now func() time.Time) PasskeyOption {
	return func(s *PasskeyService) { s.now = now }
}

// NewPasskeyService wires the ceremonies.
func NewPasskeyService(rp RelyingParty, users UserStore, passkeys PasskeyStore, tokens *jwt.Service, state ephemeral.Store, opts ...PasskeyOption) (*PasskeyService, error) {
	if rp == nil || users == nil || passkeys == nil || tokens == nil || state == nil {
		return nil, errors.New("auth: relying party, stores, token service and state store are required")
	}

	s := &PasskeyService{
		rp:       rp,
		users:    users,
		passkeys: passkeys,
		tokens:   tokens,
		reg:      ephemeral.NewTyped[ceremonySession](state, ephemeral.PurposeRegistration, ephemeral.PasskeyTTL),
		auth:     ephemeral.NewTyped[ceremonySession](state, ephemeral.PurposeAuthentication, ephemeral.PasskeyTTL),
		audit:    nopAuditor{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDefault(s.log).With(logger.Component("passkey"))
	return s, nil
}

// StartRegistration issues creation options for a new credential on the
// user's account. Existing credentials are excluded and a discoverable,
// user-verified credential is required.
func (s *PasskeyService) StartRegistration(ctx context.Context, userID uuid.UUID, name string) (*protocol.CredentialCreation, string, error) {
	pu, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(pu.creds))
	for _, c := range pu.creds {
		exclusions = append(exclusions, c.Descriptor())
	}

	options, data, err := s.rp.BeginRegistration(pu,
		webauthn.WithExclusions(exclusions),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			ResidentKey:        protocol.ResidentKeyRequirementRequired,
			RequireResidentKey: protocol.ResidentKeyRequired(),
			UserVerification:   protocol.VerificationRequired,
		}),
	)
	if err != nil {
		return nil, "", fmt.Errorf("auth: begin registration: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultPasskeyName
	}
	sessionID := uuid.NewString()
	err = s.reg.Put(ctx, sessionID, ceremonySession{Kind: ceremonyRegistration, UserID: userID, Name: name, Data: *data})
	if err != nil {
		return nil, "", persistence(err)
	}
	return options, sessionID, nil
}

// FinishRegistration verifies the attestation and stores the credential.
// The ceremony must have been started by userID.
func (s *PasskeyService) FinishRegistration(ctx context.Context, userID uuid.UUID, sessionID string, parsed *protocol.ParsedCredentialCreationData) (*PasskeyCredential, error) {
	cred, err := s.finishRegistration(ctx, userID, sessionID, parsed)
	passkeyCeremonies.WithLabelValues(string(ceremonyRegistration), resultLabel(err)).Inc()
	if err != nil {
		s.audit.LogFailure(ctx, audit.ActionPasskeyRegister, err, audit.WithUserID(userID.String()))
		return nil, err
	}
	s.audit.Log(ctx, audit.ActionPasskeyRegister,
		audit.WithUserID(userID.String()),
		audit.WithMetadata("passkey_id", cred.ID.String()))
	return cred, nil
}

func (s *PasskeyService) finishRegistration(ctx context.Context, userID uuid.UUID, sessionID string, parsed *protocol.ParsedCredentialCreationData) (*PasskeyCredential, error) {
	session, err := s.take(ctx, s.reg, sessionID, ceremonyRegistration)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}

	pu, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	credential, err := s.rp.CreateCredential(pu, session.Data, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	encoded, err := json.Marshal(credential)
	if err != nil {
		return nil, fmt.Errorf("auth: encode credential: %w", err)
	}

	record := &PasskeyCredential{
		ID:           uuid.New(),
		UserID:       userID,
		CredentialID: credential.ID,
		Credential:   encoded,
		SignCount:    credential.Authenticator.SignCount,
		Name:         session.Name,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.passkeys.CreatePasskey(ctx, record); err != nil {
		if errors.Is(err, ErrVerificationFailed) {
			return nil, err
		}
		return nil, persistence(err)
	}
	return record, nil
}

// StartAuthentication issues an assertion challenge for the account's
// credentials. Unknown emails and accounts without passkeys both yield
// ErrNoCredentials.
func (s *PasskeyService) StartAuthentication(ctx context.Context, email string) (*protocol.CredentialAssertion, string, error) {
	email = password.NormalizeEmail(email)
	if email == "" {
		return nil, "", invalid("Email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrNoCredentials
		}
		return nil, "", persistence(err)
	}
	pu, err := s.withCredentials(ctx, user)
	if err != nil {
		return nil, "", err
	}
	if len(pu.creds) == 0 {
		return nil, "", ErrNoCredentials
	}

	options, data, err := s.rp.BeginLogin(pu)
	if err != nil {
		return nil, "", fmt.Errorf("auth: begin login: %w", err)
	}
	sessionID := uuid.NewString()
	if err := s.auth.Put(ctx, sessionID, ceremonySession{Kind: ceremonyAuthenticate, UserID: user.ID, Data: *data}); err != nil {
		return nil, "", persistence(err)
	}
	return options, sessionID, nil
}

// FinishAuthentication verifies the assertion, enforces a strictly
// increasing signature counter and issues a session.
func (s *PasskeyService) FinishAuthentication(ctx context.Context, sessionID string, parsed *protocol.ParsedCredentialAssertionData) (*PasskeyLogin, error) {
	login, err := s.finishAuthentication(ctx, sessionID, parsed)
	return s.recordLogin(ctx, ceremonyAuthenticate, login, err)
}

func (s *PasskeyService) finishAuthentication(ctx context.Context, sessionID string, parsed *protocol.ParsedCredentialAssertionData) (*PasskeyLogin, error) {
	session, err := s.take(ctx, s.auth, sessionID, ceremonyAuthenticate)
	if err != nil {
		return nil, err
	}
	pu, err := s.loadUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	credential, err := s.rp.ValidateLogin(pu, session.Data, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	return s.complete(ctx, pu, credential)
}

// StartDiscoverable issues a challenge without naming an account; the
// authenticator picks a resident credential.
func (s *PasskeyService) StartDiscoverable(ctx context.Context) (*protocol.CredentialAssertion, string, error) {
	options, data, err := s.rp.BeginDiscoverableLogin(webauthn.WithUserVerification(protocol.VerificationRequired))
	if err != nil {
		return nil, "", fmt.Errorf("auth: begin discoverable login: %w", err)
	}
	sessionID := uuid.NewString()
	if err := s.auth.Put(ctx, sessionID, ceremonySession{Kind: ceremonyDiscoverable, Data: *data}); err != nil {
		return nil, "", persistence(err)
	}
	return options, sessionID, nil
}

// FinishDiscoverable identifies the account from the credential's user
// handle and applies the same checks as FinishAuthentication.
func (s *PasskeyService) FinishDiscoverable(ctx context.Context, sessionID string, parsed *protocol.ParsedCredentialAssertionData) (*PasskeyLogin, error) {
	login, err := s.finishDiscoverable(ctx, sessionID, parsed)
	return s.recordLogin(ctx, ceremonyDiscoverable, login, err)
}

func (s *PasskeyService) finishDiscoverable(ctx context.Context, sessionID string, parsed *protocol.ParsedCredentialAssertionData) (*PasskeyLogin, error) {
	session, err := s.take(ctx, s.auth, sessionID, ceremonyDiscoverable)
	if err != nil {
		return nil, err
	}

	var pu *passkeyUser
	handler := func(_, userHandle []byte) (webauthn.User, error) {
		id, err := uuid.FromBytes(userHandle)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed user handle", ErrVerificationFailed)
		}
		pu, err = s.loadUser(ctx, id)
		if err != nil {
			return nil, err
		}
		return pu, nil
	}

	credential, err := s.rp.ValidateDiscoverableLogin(handler, session.Data, parsed)
	if err != nil {
		if errors.Is(err, ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	if pu == nil {
		return nil, ErrVerificationFailed
	}
	return s.complete(ctx, pu, credential)
}

// complete applies the counter rule, records the use and issues a session.
func (s *PasskeyService) complete(ctx context.Context, pu *passkeyUser, credential *webauthn.Credential) (*PasskeyLogin, error) {
	stored, ok := pu.find(credential.ID)
	if !ok {
		return nil, ErrVerificationFailed
	}
	next := credential.Authenticator.SignCount
	if next <= stored.SignCount {
		s.log.WarnContext(ctx, "passkey signature counter did not increase",
			logger.UserID(pu.user.ID.String()),
			slog.Uint64("stored", uint64(stored.SignCount)),
			slog.Uint64("received", uint64(next)))
		return nil, ErrCounterNotIncreased
	}

	if err := s.passkeys.UpdatePasskeyCounter(ctx, stored.ID, next, s.now().UTC()); err != nil {
		if errors.Is(err, ErrCounterNotIncreased) {
			return nil, err
		}
		return nil, persistence(err)
	}
	session, err := issueSession(s.tokens, pu.user)
	if err != nil {
		return nil, err
	}
	return &PasskeyLogin{Session: session, CredentialID: credential.ID, SignCount: next}, nil
}

func (s *PasskeyService) recordLogin(ctx context.Context, kind ceremonyKind, login *PasskeyLogin, err error) (*PasskeyLogin, error) {
	passkeyCeremonies.WithLabelValues(string(kind), resultLabel(err)).Inc()
	authAttempts.WithLabelValues("passkey", resultLabel(err)).Inc()
	if err != nil {
		s.audit.LogFailure(ctx, audit.ActionPasskeyLogin, err, audit.WithMetadata("ceremony", string(kind)))
		return nil, err
	}
	s.audit.Log(ctx, audit.ActionPasskeyLogin,
		audit.WithUserID(login.Session.User.ID.String()),
		audit.WithEmail(login.Session.User.Email),
		audit.WithMetadata("ceremony", string(kind)))
	return login, nil
}

// ListPasskeys returns the user's credentials.
func (s *PasskeyService) ListPasskeys(ctx context.Context, userID uuid.UUID) ([]PasskeyCredential, error) {
	creds, err := s.passkeys.ListPasskeys(ctx, userID)
	if err != nil {
		return nil, persistence(err)
	}
	return creds, nil
}

// DeletePasskey removes one of the user's credentials.
func (s *PasskeyService) DeletePasskey(ctx context.Context, userID, id uuid.UUID) error {
	err := s.passkeys.DeletePasskey(ctx, userID, id)
	if err != nil {
		s.audit.LogFailure(ctx, audit.ActionPasskeyDelete, err, audit.WithUserID(userID.String()))
		if errors.Is(err, ErrPasskeyNotFound) {
			return err
		}
		return persistence(err)
	}
	s.audit.Log(ctx, audit.ActionPasskeyDelete,
		audit.WithUserID(userID.String()),
		audit.WithMetadata("passkey_id", id.String()))
	return nil
}

func (s *PasskeyService) take(ctx context.Context, store *ephemeral.Typed[ceremonySession], sessionID string, kind ceremonyKind) (ceremonySession, error) {
	session, err := store.Take(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ephemeral.ErrNotFound) || errors.Is(err, ephemeral.ErrCorruptEntry) {
			return ceremonySession{}, ErrSessionNotFound
		}
		return ceremonySession{}, persistence(err)
	}
	if session.Kind != kind {
		return ceremonySession{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *PasskeyService) loadUser(ctx context.Context, userID uuid.UUID) (*passkeyUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, persistence(err)
	}
	return s.withCredentials(ctx, user)
}

func (s *PasskeyService) withCredentials(ctx context.Context, user *User) (*passkeyUser, error) {
	stored, err := s.passkeys.ListPasskeys(ctx, user.ID)
	if err != nil {
		return nil, persistence(err)
	}

	pu := &passkeyUser{user: user, stored: stored, creds: make([]webauthn.Credential, 0, len(stored))}
	for _, p := range stored {
		var c webauthn.Credential
		if err := json.Unmarshal(p.Credential, &c); err != nil {
			s.log.WarnContext(ctx, "skipping undecodable passkey", logger.UserID(user.ID.String()), logger.Error(err))
			continue
		}
		c.Authenticator.SignCount = p.SignCount
		pu.creds = append(pu.creds, c)
	}
	return pu, nil
}
