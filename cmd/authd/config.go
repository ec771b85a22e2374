package main

import (
	"github.com/logsmart/authcore/modules/account"
	"github.com/logsmart/authcore/pkg/clientip"
	"github.com/logsmart/authcore/pkg/email"
	"github.com/logsmart/authcore/pkg/ephemeral"
	"github.com/logsmart/authcore/pkg/httpserver"
	"github.com/logsmart/authcore/pkg/jwt"
	"github.com/logsmart/authcore/pkg/logger"
	"github.com/logsmart/authcore/pkg/pg"
	"github.com/logsmart/authcore/pkg/ratelimiter"
	"github.com/logsmart/authcore/pkg/redis"
	"github.com/logsmart/authcore/svc/auth"
)

// Config is the full process configuration, read from the environment
// and an optional .env file.
type Config struct {
	Logger    logger.Config
	HTTP      httpserver.Config
	Postgres  pg.Config
	Redis     redis.Config
	JWT       jwt.Config
	RateLimit ratelimiter.Config
	Ephemeral ephemeral.Config
	Email     email.Config
	Google    auth.GoogleConfig
	Passkey   auth.PasskeyConfig
	Account   account.Config
	ClientIP  clientip.Config
}

const backendRedis = "redis"

func (c Config) needsRedis() bool {
	return c.RateLimit.Backend == backendRedis || c.Ephemeral.Backend == backendRedis
}
