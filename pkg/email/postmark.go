package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mrz1836/postmark"
)

// Postmark sends through the Postmark API with Reply-To set to the support
// address. Link tracking is off so reset links arrive unmodified.
type Postmark struct {
	api     *postmark.Client
	from    string
	replyTo string
}

// PostmarkOption customizes the underlying API client.
type PostmarkOption func(*postmark.Client)

func WithPostmarkBaseURL(url string) PostmarkOption {
	return func(c *postmark.Client) { c.BaseURL = url }
}

func WithPostmarkHTTPClient(hc *http.Client) PostmarkOption {
	return func(c *postmark.Client) { c.HTTPClient = hc }
}

func NewPostmark(cfg Config, opts ...PostmarkOption) (*Postmark, error) {
	if cfg.PostmarkServerToken == "" || cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: postmark server and account tokens are required", ErrInvalidConfig)
	}
	if err := checkAddress(cfg.SenderEmail); err != nil {
		return nil, fmt.Errorf("%w: sender %w", ErrInvalidConfig, err)
	}
	if err := checkAddress(cfg.SupportEmail); err != nil {
		return nil, fmt.Errorf("%w: support %w", ErrInvalidConfig, err)
	}

	api := postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	for _, opt := range opts {
		opt(api)
	}
	return &Postmark{api: api, from: cfg.SenderEmail, replyTo: cfg.SupportEmail}, nil
}

func (p *Postmark) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	resp, err := p.api.SendEmail(ctx, postmark.Email{
		From:       p.from,
		ReplyTo:    p.replyTo,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTML,
		TrackLinks: "None",
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if resp.ErrorCode != 0 {
		return fmt.Errorf("%w: postmark code %d: %s", ErrSendFailed, resp.ErrorCode, resp.Message)
	}
	return nil
}
