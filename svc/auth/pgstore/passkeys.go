package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/logsmart/authcore/pkg/pg"
	"github.com/logsmart/authcore/svc/auth"
)

const selectPasskey = `
SELECT id, user_id, credential_id, credential, sign_count, name, created_at, last_used_at
FROM passkeys`

func scanPasskey(row pgx.Row) (*auth.PasskeyCredential, error) {
	var (
		p         auth.PasskeyCredential
		signCount int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.CredentialID, &p.Credential, &signCount, &p.Name, &p.CreatedAt, &p.LastUsedAt); err != nil {
		return nil, err
	}
	p.SignCount = uint32(signCount)
	return &p, nil
}

func (s *Store) ListPasskeys(ctx context.Context, userID uuid.UUID) ([]auth.PasskeyCredential, error) {
	rows, err := s.db.Query(ctx, selectPasskey+"\nWHERE user_id = $1 ORDER BY created_at", userID)
	if err != nil {
		return nil, persistence("list passkeys", err)
	}
	defer rows.Close()

	var out []auth.PasskeyCredential
	for rows.Next() {
		p, err := scanPasskey(rows)
		if err != nil {
			return nil, persistence("scan passkey", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list passkeys", err)
	}
	return out, nil
}

func (s *Store) CreatePasskey(ctx context.Context, cred *auth.PasskeyCredential) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO passkeys (id, user_id, credential_id, credential, sign_count, name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cred.ID, cred.UserID, cred.CredentialID, cred.Credential, int64(cred.SignCount), cred.Name, cred.CreatedAt)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return fmt.Errorf("%w: credential already registered", auth.ErrVerificationFailed)
		}
		return persistence("create passkey", err)
	}
	return nil
}

func (s *Store) GetPasskeyByCredentialID(ctx context.Context, credentialID []byte) (*auth.PasskeyCredential, error) {
	p, err := scanPasskey(s.db.QueryRow(ctx, selectPasskey+"\nWHERE credential_id = $1", credentialID))
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, auth.ErrPasskeyNotFound
		}
		return nil, persistence("get passkey", err)
	}
	return p, nil
}

// UpdatePasskeyCounter only moves the counter forward. A concurrent login
// that already stored an equal or higher counter yields
// auth.ErrCounterNotIncreased.
func (s *Store) UpdatePasskeyCounter(ctx context.Context, id uuid.UUID, signCount uint32, usedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE passkeys SET sign_count = $2, last_used_at = $3 WHERE id = $1 AND sign_count < $2`,
		id, int64(signCount), usedAt)
	if err != nil {
		return persistence("update passkey counter", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrCounterNotIncreased
	}
	return nil
}

func (s *Store) DeletePasskey(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM passkeys WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return persistence("delete passkey", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrPasskeyNotFound
	}
	return nil
}
