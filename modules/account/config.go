package account

import (
	"strings"

	"github.com/logsmart/authcore/pkg/cookie"
)

// Config holds the browser facing settings of the account module.
type Config struct {
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	Cookie      cookie.Config
}

func (c Config) frontend(path string) string {
	return strings.TrimSuffix(c.FrontendURL, "/") + path
}
