package audit

import (
	"context"
	"log/slog"

	"github.com/logsmart/authcore/pkg/logger"
)

// Storage persists a batch of events atomically.
type Storage interface {
	StoreBatch(ctx context.Context, events []Event) error
}

// StorageFunc adapts a function to Storage.
type StorageFunc func(ctx context.Context, events []Event) error

func (f StorageFunc) StoreBatch(ctx context.Context, events []Event) error { return f(ctx, events) }

// SlogStorage writes every event as an info record. It is used when no
// database is configured.
type SlogStorage struct {
	log *slog.Logger
}

func NewSlogStorage(log *slog.Logger) *SlogStorage {
	return &SlogStorage{log: logger.OrDefault(log)}
}

func (s *SlogStorage) StoreBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		attrs := []slog.Attr{
			slog.String("id", e.ID),
			logger.Event(e.Action),
			slog.String("result", string(e.Result)),
		}
		if e.UserID != "" {
			attrs = append(attrs, logger.UserID(e.UserID))
		}
		if e.Email != "" {
			attrs = append(attrs, logger.Email(e.Email))
		}
		if e.Error != "" {
			attrs = append(attrs, slog.String("reason", e.Error))
		}
		if e.IP != "" {
			attrs = append(attrs, slog.String("ip", e.IP))
		}
		if len(e.Metadata) > 0 {
			attrs = append(attrs, slog.Any("metadata", e.Metadata))
		}
		s.log.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	}
	return nil
}
