package email

// Config holds email delivery settings. Without Postmark tokens messages are
// written to DevDir instead.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"no-reply@logsmart.app"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@logsmart.app"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"tmp/emails"`
}

// NewSenderFromConfig picks Postmark when either token is set, so a half
// configured deployment fails at startup.
func NewSenderFromConfig(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken == "" && cfg.PostmarkAccountToken == "" {
		return NewFileSender(cfg.DevDir), nil
	}
	return NewPostmark(cfg)
}
