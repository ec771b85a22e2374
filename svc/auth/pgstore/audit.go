package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/logsmart/authcore/pkg/audit"
	"github.com/logsmart/authcore/pkg/pg"
)

const insertAuditEvent = `
INSERT INTO audit_events (id, user_id, email, action, result, error, request_id, ip, user_agent, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// AuditStorage writes audit batches to the audit_events table.
type AuditStorage struct {
	db pg.DB
}

var _ audit.Storage = (*AuditStorage)(nil)

func NewAuditStorage(db pg.DB) *AuditStorage {
	return &AuditStorage{db: db}
}

// StoreBatch inserts all events in one transaction.
func (s *AuditStorage) StoreBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	return pg.InTx(ctx, s.db, func(tx pgx.Tx) error {
		for _, e := range events {
			args, err := auditArgs(e)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, insertAuditEvent, args...); err != nil {
				return fmt.Errorf("pgstore: insert audit event %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

func auditArgs(e audit.Event) ([]any, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		id = uuid.New()
	}

	var userID *uuid.UUID
	if parsed, err := uuid.Parse(e.UserID); err == nil {
		userID = &parsed
	}

	var metadata []byte
	if len(e.Metadata) > 0 {
		if metadata, err = json.Marshal(e.Metadata); err != nil {
			return nil, fmt.Errorf("pgstore: encode audit metadata: %w", err)
		}
	}

	return []any{
		id, userID, nullable(e.Email), e.Action, string(e.Result), nullable(e.Error),
		nullable(e.RequestID), nullable(e.IP), nullable(e.UserAgent), metadata, e.CreatedAt,
	}, nil
}
