package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/logsmart/authcore/pkg/audit"
	"github.com/logsmart/authcore/pkg/ephemeral"
	"github.com/logsmart/authcore/pkg/jwt"
	"github.com/logsmart/authcore/pkg/logger"
	"github.com/logsmart/authcore/pkg/password"
	"github.com/logsmart/authcore/pkg/rbac"
)

// resetTokenLength is the size of password reset tokens.
const resetTokenLength = 64

// Hasher hashes and verifies passwords. *password.Hasher implements it.
type Hasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}

// Auditor receives security events. It must not block. *audit.Logger implements it.
type Auditor interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption)
	LogFailure(ctx context.Context, action string, err error, opts ...audit.EventOption)
}

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, firstName, token string) error
}

// Invalidator drops cached projections of a user after a change.
type Invalidator interface {
	Invalidate(userID uuid.UUID)
}

type nopAuditor struct{}

func (nopAuditor) Log(context.Context, string, ...audit.EventOption)               {}
func (nopAuditor) LogFailure(context.Context, string, error, ...audit.EventOption) {}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(uuid.UUID) {}

type resetEntry struct {
	UserID uuid.UUID `json:"user_id"`
}

// Service implements password based registration, login, profile and
// password reset flows.
type Service struct {
	users       UserStore
	hasher      Hasher
	tokens      *jwt.Service
	resets      *ephemeral.Typed[resetEntry]
	mailer      Mailer
	audit       Auditor
	invalidator Invalidator
	log         *slog.Logger

	// dummyHash is verified against when the account does not exist so
	// that unknown emails take as long as wrong passwords.
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

func WithAuditor(a Auditor) ServiceOption {
	return func(s *Service) { s.audit = a }
}

func WithMailer(m Mailer) ServiceOption {
	return func(s *Service) { s.mailer = m }
}

// WithInvalidator registers the cache to evict after profile and password changes.
func WithInvalidator(inv Invalidator) ServiceOption {
	return func(s *Service) { s.invalidator = inv }
}

// NewService creates the password flow service. state stores reset tokens.
func NewService(users UserStore, hasher Hasher, tokens *jwt.Service, state ephemeral.Store, opts ...ServiceOption) (*Service, error) {
	if users == nil || hasher == nil || tokens == nil || state == nil {
		return nil, errors.New("auth: user store, hasher, token service and state store are required")
	}

	s := &Service{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		resets:      ephemeral.NewTyped[resetEntry](state, ephemeral.PurposeReset, ephemeral.ResetTTL),
		audit:       nopAuditor{},
		invalidator: nopInvalidator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDefault(s.log).With(logger.Component("auth"))

	dummy, err := hasher.Hash(context.Background(), uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("auth: prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

// RegisterInput creates a company together with its first administrator.
type RegisterInput struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	CompanyName    string
	CompanyAddress string
}

func (in *RegisterInput) normalize() {
	in.Email = password.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.CompanyAddress = strings.TrimSpace(in.CompanyAddress)
}

func (in *RegisterInput) validate() error {
	if in.Email == "" || in.Password == "" || in.FirstName == "" || in.LastName == "" || in.CompanyName == "" {
		return invalid("Missing required fields")
	}
	if err := password.ValidateEmail(in.Email); err != nil {
		return invalid("Invalid email format")
	}
	if err := password.ValidatePolicy(in.Password); err != nil {
		return passwordPolicyError(err)
	}
	return nil
}

// Register creates the company and its admin user and returns a session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.normalize()
	session, err := s.register(ctx, in)
	authAttempts.WithLabelValues("register", resultLabel(err)).Inc()
	if err != nil {
		s.audit.LogFailure(ctx, audit.ActionRegister, err, audit.WithEmail(in.Email))
		return nil, err
	}
	s.audit.Log(ctx, audit.ActionRegister, audit.WithUserID(session.User.ID.String()), audit.WithEmail(in.Email))
	return session, nil
}

func (s *Service) register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	user, err := s.users.CreateCompanyAdmin(ctx, &User{
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		Role:         rbac.RoleAdmin,
	}, Company{Name: in.CompanyName, Address: in.CompanyAddress})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, persistence(err)
	}
	return s.issue(user)
}

// Login verifies email and password. Unknown emails, provider-only
// accounts and wrong passwords all yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, pass string) (*Session, error) {
	email = password.NormalizeEmail(email)
	session, err := s.login(ctx, email, pass)
	authAttempts.WithLabelValues("password", resultLabel(err)).Inc()
	if err != nil {
		s.audit.LogFailure(ctx, audit.ActionLogin, err, audit.WithEmail(email), audit.WithMetadata("method", "password"))
		return nil, err
	}
	s.audit.Log(ctx, audit.ActionLogin,
		audit.WithUserID(session.User.ID.String()),
		audit.WithEmail(email),
		audit.WithMetadata("method", "password"))
	return session, nil
}

func (s *Service) login(ctx context.Context, email, pass string) (*Session, error) {
	if email == "" || pass == "" {
		return nil, invalid("Missing email or password")
	}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		s.burn(ctx, pass)
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, persistence(err)
	case !user.HasPassword():
		s.burn(ctx, pass)
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, pass, user.PasswordHash)
	if err != nil {
		if errors.Is(err, password.ErrMalformedHash) {
			s.log.ErrorContext(ctx, "stored password hash is malformed", logger.UserID(user.ID.String()))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, pass)
	}
	return s.issue(user)
}

// burn spends one verification on the dummy hash.
func (s *Service) burn(ctx context.Context, pass string) {
	_, _ = s.hasher.Verify(ctx, pass, s.dummyHash)
}

func (s *Service) rehash(ctx context.Context, userID uuid.UUID, pass string) {
	hash, err := s.hasher.Hash(ctx, pass)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		s.log.WarnContext(ctx, "password rehash failed", logger.UserID(userID.String()), logger.Error(err))
	}
}

// Me returns the current state of the user.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, persistence(err)
	}
	return user, nil
}

// Verify validates a session token and returns its user. Tokens of
// deleted users are reported as jwt.ErrInvalidToken.
func (s *Service) Verify(ctx context.Context, token string) (*User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, jwt.ErrInvalidToken
	}
	user, err := s.Me(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, jwt.ErrInvalidToken
	}
	return user, err
}

// UpdateProfile changes the user's names.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, firstName, lastName string) (*User, error) {
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, invalid("First name and last name cannot be empty")
	}

	user, err := s.users.UpdateProfile(ctx, userID, firstName, lastName)
	if err != nil {
		s.audit.LogFailure(ctx, audit.ActionProfileUpdate, err, audit.WithUserID(userID.String()))
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, persistence(err)
	}
	s.invalidator.Invalidate(userID)
	s.audit.Log(ctx, audit.ActionProfileUpdate, audit.WithUserID(userID.String()))
	return user, nil
}

// RequestPasswordReset mails a single-use reset link. Unknown emails and
// provider-only accounts succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = password.NormalizeEmail(email)
	if email == "" {
		return invalid("Email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		s.audit.LogFailure(ctx, audit.ActionPasswordResetRequest, err, audit.WithEmail(email))
		return nil
	}
	if err != nil {
		return persistence(err)
	}

	token, err := ephemeral.NewToken(resetTokenLength)
	if err != nil {
		return err
	}
	if err := s.resets.Put(ctx, token, resetEntry{UserID: user.ID}); err != nil {
		return persistence(err)
	}

	if s.mailer == nil {
		s.log.WarnContext(ctx, "no mailer configured, password reset link not sent", logger.UserID(user.ID.String()))
	} else if err := s.mailer.SendPasswordReset(ctx, user.Email, user.FirstName, token); err != nil {
		s.log.ErrorContext(ctx, "password reset delivery failed", logger.UserID(user.ID.String()), logger.Error(err))
		s.audit.LogFailure(ctx, audit.ActionPasswordResetRequest, err, audit.WithUserID(user.ID.String()))
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	s.audit.Log(ctx, audit.ActionPasswordResetRequest, audit.WithUserID(user.ID.String()), audit.WithEmail(email))
	return nil
}

// ResetPassword consumes a reset token and sets a new password. The policy
// is checked before the token is consumed so a weak password can be retried.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return invalid("Missing required fields")
	}
	if err := password.ValidatePolicy(newPassword); err != nil {
		return passwordPolicyError(err)
	}

	entry, err := s.resets.Take(ctx, token)
	if err != nil {
		if errors.Is(err, ephemeral.ErrNotFound) || errors.Is(err, ephemeral.ErrCorruptEntry) {
			return ErrInvalidResetToken
		}
		return persistence(err)
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, entry.UserID, hash); err != nil {
		s.audit.LogFailure(ctx, audit.ActionPasswordReset, err, audit.WithUserID(entry.UserID.String()))
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return persistence(err)
	}

	s.invalidator.Invalidate(entry.UserID)
	s.audit.Log(ctx, audit.ActionPasswordReset, audit.WithUserID(entry.UserID.String()))
	return nil
}

func (s *Service) issue(user *User) (*Session, error) {
	return issueSession(s.tokens, user)
}

func issueSession(tokens *jwt.Service, user *User) (*Session, error) {
	token, err := tokens.Issue(user.ID.String())
	if err != nil {
		return nil, fmt.Errorf("auth: issue session: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}

// persistence wraps store failures in ErrPersistence once.
func persistence(err error) error {
	if err == nil || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
