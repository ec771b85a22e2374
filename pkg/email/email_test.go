package email_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsmart/authcore/pkg/email"
)

func validMessage() email.Message {
	return email.Message{
		To:      "user@example.com",
		Subject: "Subject",
		HTML:    "<p>body</p>",
		Tag:     "test",
	}
}

func TestMessage_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*email.Message)
		errMsg string
	}{
		{"valid", func(*email.Message) {}, ""},
		{"plus address", func(m *email.Message) { m.To = "a.b+tag@sub.example.com" }, ""},
		{"empty recipient", func(m *email.Message) { m.To = "  " }, "recipient is empty"},
		{"bad recipient", func(m *email.Message) { m.To = "user@" }, "is not an address"},
		{"display name", func(m *email.Message) { m.To = "Ann <ann@example.com>" }, "is not an address"},
		{"no dot in domain", func(m *email.Message) { m.To = "ann@localhost" }, "has no domain"},
		{"empty subject", func(m *email.Message) { m.Subject = "" }, "empty subject"},
		{"empty body", func(m *email.Message) { m.HTML = " " }, "empty body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := validMessage()
			tt.mutate(&m)
			err := m.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, email.ErrInvalidMessage)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFileSender(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "emails")
	sender := email.NewFileSender(dir)
	require.NoError(t, sender.Send(context.Background(), validMessage()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "-test.json"), entries[0].Name())

	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, "user@example.com", stored["to"])
	assert.Equal(t, "<p>body</p>", stored["html"])
	assert.NotEmpty(t, stored["sent_at"])

	err = sender.Send(context.Background(), email.Message{})
	assert.ErrorIs(t, err, email.ErrInvalidMessage)
}

func TestNewPostmark_InvalidConfig(t *testing.T) {
	t.Parallel()

	base := email.Config{
		PostmarkServerToken:  "s",
		PostmarkAccountToken: "a",
		SenderEmail:          "from@example.com",
		SupportEmail:         "support@example.com",
	}

	cases := map[string]func(*email.Config){
		"no server token":  func(c *email.Config) { c.PostmarkServerToken = "" },
		"no account token": func(c *email.Config) { c.PostmarkAccountToken = "" },
		"bad sender":       func(c *email.Config) { c.SenderEmail = "nope" },
		"bad support":      func(c *email.Config) { c.SupportEmail = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			mutate(&cfg)
			_, err := email.NewPostmark(cfg)
			assert.ErrorIs(t, err, email.ErrInvalidConfig)
		})
	}
}

func TestPostmark_Send(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		body map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(raw, &body)
		mu.Unlock()
		assert.Equal(t, "s", r.Header.Get("X-Postmark-Server-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"To":"user@example.com","ErrorCode":0,"Message":"OK","MessageID":"1"}`))
	}))
	t.Cleanup(srv.Close)

	sender, err := email.NewPostmark(email.Config{
		PostmarkServerToken:  "s",
		PostmarkAccountToken: "a",
		SenderEmail:          "from@example.com",
		SupportEmail:         "support@example.com",
	}, email.WithPostmarkBaseURL(srv.URL), email.WithPostmarkHTTPClient(srv.Client()))
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), validMessage()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "from@example.com", body["From"])
	assert.Equal(t, "support@example.com", body["ReplyTo"])
	assert.Equal(t, "user@example.com", body["To"])
}

func TestNewSenderFromConfig(t *testing.T) {
	t.Parallel()

	s, err := email.NewSenderFromConfig(email.Config{DevDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &email.FileSender{}, s)

	_, err = email.NewSenderFromConfig(email.Config{PostmarkServerToken: "only-one"})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []email.Message
}

func (r *recordingSender) Send(_ context.Context, m email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
	return nil
}

func TestNotifier_SendPasswordReset(t *testing.T) {
	t.Parallel()

	rec := &recordingSender{}
	n := email.NewNotifier(rec, "https://app.logsmart.app/", 24*time.Hour)
	require.NoError(t, n.SendPasswordReset(context.Background(), "user@example.com", "<Ann>", "tok123"))

	require.Len(t, rec.sent, 1)
	msg := rec.sent[0]
	assert.Equal(t, "user@example.com", msg.To)
	assert.Equal(t, "password-reset", msg.Tag)
	assert.Contains(t, msg.HTML, `href="https://app.logsmart.app/reset-password?token=tok123"`)
	assert.Contains(t, msg.HTML, "&lt;Ann&gt;")
	assert.Contains(t, msg.HTML, "24 hours")
}
