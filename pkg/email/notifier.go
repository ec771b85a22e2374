package email

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/logsmart/authcore/pkg/email/templates"
)

const tagPasswordReset = "password-reset"

// Notifier composes the transactional messages the auth service sends.
type Notifier struct {
	sender      Sender
	frontendURL string
	resetTTL    time.Duration
}

// NewNotifier builds reset links against frontendURL.
func NewNotifier(sender Sender, frontendURL string, resetTTL time.Duration) *Notifier {
	return &Notifier{
		sender:      sender,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		resetTTL:    resetTTL,
	}
}

// SendPasswordReset emails a link to {frontend}/reset-password?token=<token>.
func (n *Notifier) SendPasswordReset(ctx context.Context, to, firstName, token string) error {
	link := n.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
	var body strings.Builder
	if err := templates.PasswordReset(firstName, link, n.resetTTL).Render(ctx, &body); err != nil {
		return err
	}
	return n.sender.Send(ctx, Message{
		To:      to,
		Subject: "Reset your LogSmart password",
		HTML:    body.String(),
		Tag:     tagPasswordReset,
	})
}
