package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// FileSender stores each message as a JSON file in a directory. It stands in
// for a real provider during local development.
type FileSender struct {
	dir string
	now func() time.Time
}

// NewFileSender creates the directory lazily, on first send.
func NewFileSender(dir string) *FileSender {
	return &FileSender{dir: dir, now: time.Now}
}

type storedMessage struct {
	Message
	SentAt time.Time `json:"sent_at"`
}

func (s *FileSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	now := s.now().UTC()
	label := msg.Tag
	if label == "" {
		label = msg.Subject
	}
	name := now.Format("20060102T150405.000000000") + "-" + slug(label) + ".json"

	raw, err := json.MarshalIndent(storedMessage{Message: msg, SentAt: now}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), raw, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
		if b.Len() >= 64 {
			break
		}
	}
	if b.Len() == 0 {
		return "message"
	}
	return b.String()
}
