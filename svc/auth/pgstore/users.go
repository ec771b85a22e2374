package pgstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/logsmart/authcore/pkg/pg"
	"github.com/logsmart/authcore/pkg/rbac"
	"github.com/logsmart/authcore/svc/auth"
)

const selectUser = `
SELECT u.id, u.email, u.first_name, u.last_name, COALESCE(u.password_hash, ''),
       u.company_id, COALESCE(c.name, ''), u.role,
       COALESCE((SELECT oi.provider FROM oauth_identities oi
                 WHERE oi.user_id = u.id ORDER BY oi.created_at LIMIT 1), ''),
       u.created_at
FROM users u
LEFT JOIN companies c ON c.id = u.company_id`

const insertUser = `
INSERT INTO users (id, email, first_name, last_name, password_hash, company_id, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u    auth.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.CompanyID, &u.CompanyName, &role, &u.OAuthProvider, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if u.Role, err = rbac.ParseRole(role); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) getUser(ctx context.Context, op, where string, args ...any) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, selectUser+"\nWHERE "+where, args...))
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, auth.ErrUserNotFound
		}
		return nil, persistence(op, err)
	}
	return u, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return s.getUser(ctx, "get user by id", "u.id = $1", id)
}

// GetByEmail matches the stored, already normalized address exactly.
func (s *Store) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.getUser(ctx, "get user by email", "u.email = $1", email)
}

func (s *Store) GetByOAuthIdentity(ctx context.Context, provider, subject string) (*auth.User, error) {
	return s.getUser(ctx, "get user by identity",
		"u.id = (SELECT user_id FROM oauth_identities WHERE provider = $1 AND subject = $2)",
		provider, subject)
}

func (s *Store) CreateCompanyAdmin(ctx context.Context, user *auth.User, company auth.Company) (*auth.User, error) {
	created := *user
	created.ID = uuid.New()
	created.CreatedAt = s.timestamp()
	companyID := uuid.New()
	created.CompanyID = &companyID
	created.CompanyName = company.Name

	err := pg.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO companies (id, name, address, created_at) VALUES ($1, $2, $3, $4)`,
			companyID, company.Name, company.Address, created.CreatedAt); err != nil {
			return err
		}
		return execInsertUser(ctx, tx, &created)
	})
	if err != nil {
		return nil, mapInsertError("create company admin", err)
	}
	return &created, nil
}

func (s *Store) CreateWithIdentity(ctx context.Context, user *auth.User, identity auth.OAuthIdentity) (*auth.User, error) {
	created := *user
	created.ID = uuid.New()
	created.CreatedAt = s.timestamp()
	created.OAuthProvider = identity.Provider

	err := pg.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := execInsertUser(ctx, tx, &created); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO oauth_identities (provider, subject, user_id, created_at) VALUES ($1, $2, $3, $4)`,
			identity.Provider, identity.Subject, created.ID, created.CreatedAt)
		return err
	})
	if err != nil {
		return nil, mapInsertError("create user with identity", err)
	}
	return &created, nil
}

func execInsertUser(ctx context.Context, tx pgx.Tx, u *auth.User) error {
	_, err := tx.Exec(ctx, insertUser,
		u.ID, u.Email, u.FirstName, u.LastName, nullable(u.PasswordHash), u.CompanyID, string(u.Role), u.CreatedAt)
	return err
}

func mapInsertError(op string, err error) error {
	switch pg.ConstraintName(err, pg.CodeUniqueViolation) {
	case constraintUsersEmail:
		return auth.ErrEmailTaken
	case constraintIdentityPK, constraintIdentityPerUser:
		return auth.ErrIdentityLinked
	}
	return persistence(op, err)
}

// LinkOAuthIdentity binds the identity, replacing any earlier identity of
// the same provider on that user.
func (s *Store) LinkOAuthIdentity(ctx context.Context, identity auth.OAuthIdentity) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO oauth_identities (provider, subject, user_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT ON CONSTRAINT oauth_identities_user_provider_key
DO UPDATE SET subject = EXCLUDED.subject, created_at = EXCLUDED.created_at`,
		identity.Provider, identity.Subject, identity.UserID, s.timestamp())
	switch {
	case err == nil:
		return nil
	case pg.IsForeignKeyViolation(err):
		return auth.ErrUserNotFound
	case pg.IsUniqueViolation(err):
		return auth.ErrIdentityLinked
	}
	return persistence("link identity", err)
}

func (s *Store) UnlinkOAuthIdentity(ctx context.Context, userID uuid.UUID, provider string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM oauth_identities WHERE user_id = $1 AND provider = $2`, userID, provider)
	if err != nil {
		return persistence("unlink identity", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNoProviderLink
	}
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID uuid.UUID, firstName, lastName string) (*auth.User, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, updated_at = $4 WHERE id = $1`,
		userID, firstName, lastName, s.timestamp())
	if err != nil {
		return nil, persistence("update profile", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, auth.ErrUserNotFound
	}
	return s.GetByID(ctx, userID)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		userID, hash, s.timestamp())
	if err != nil {
		return persistence("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}
