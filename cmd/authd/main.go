// Command authd runs the LogSmart authentication service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/logsmart/authcore/modules/account"
	"github.com/logsmart/authcore/pkg/audit"
	"github.com/logsmart/authcore/pkg/clientip"
	"github.com/logsmart/authcore/pkg/config"
	"github.com/logsmart/authcore/pkg/cookie"
	"github.com/logsmart/authcore/pkg/email"
	"github.com/logsmart/authcore/pkg/ephemeral"
	"github.com/logsmart/authcore/pkg/httpserver"
	"github.com/logsmart/authcore/pkg/jwt"
	"github.com/logsmart/authcore/pkg/logger"
	"github.com/logsmart/authcore/pkg/password"
	"github.com/logsmart/authcore/pkg/pg"
	"github.com/logsmart/authcore/pkg/ratelimiter"
	"github.com/logsmart/authcore/pkg/redis"
	"github.com/logsmart/authcore/pkg/requestid"
	"github.com/logsmart/authcore/svc/auth"
	"github.com/logsmart/authcore/svc/auth/pgstore"
)

const healthTimeout = 2 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load[Config]()
	if err != nil {
		return err
	}

	log, err := logger.NewFromConfig(cfg.Logger, logger.WithContextExtractors(
		logger.ContextValue("request_id", requestid.FromContext),
		logger.ContextValue("client_ip", clientip.IPFrom),
		logger.ContextValue("user_id", currentUserID),
	))
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg.Postgres, log); err != nil {
		return err
	}
	checks := []httpserver.Check{{Name: "postgres", Probe: pg.Healthcheck(pool)}}

	var rdb *goredis.Client
	if cfg.needsRedis() {
		rdb, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		checks = append(checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(rdb)})
	}

	state, closeState := newStateStore(cfg.Ephemeral, rdb)
	defer closeState()

	limiter, closeLimiter, err := newLimiter(cfg.RateLimit, rdb, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	tokens, err := jwt.NewFromConfig(cfg.JWT)
	if err != nil {
		return err
	}

	hasher, err := password.New()
	if err != nil {
		return err
	}
	defer hasher.Close()

	auditor := audit.NewLogger(pgstore.NewAuditStorage(pool),
		audit.WithLogger(log),
		audit.WithRequestIDExtractor(requestid.FromContext),
		audit.WithIPExtractor(clientip.IPFrom),
		audit.WithUserAgentExtractor(clientip.UserAgentFrom),
	)

	sender, err := email.NewSenderFromConfig(cfg.Email)
	if err != nil {
		return err
	}
	mailer := email.NewNotifier(sender, cfg.Account.FrontendURL, ephemeral.ResetTTL)

	store := pgstore.New(pool)
	gate := auth.NewGate(tokens, store,
		auth.WithErrorHandler(account.ErrorHandler(log)),
		auth.WithGateLogger(log))

	passwords, err := auth.NewService(store, hasher, tokens, state,
		auth.WithServiceLogger(log),
		auth.WithAuditor(auditor),
		auth.WithMailer(mailer),
		auth.WithInvalidator(gate))
	if err != nil {
		return err
	}

	rp, err := auth.NewRelyingParty(cfg.Passkey)
	if err != nil {
		return err
	}
	passkeys, err := auth.NewPasskeyService(rp, store, store, tokens, state,
		auth.WithPasskeyLogger(log),
		auth.WithPasskeyAuditor(auditor))
	if err != nil {
		return err
	}

	deps := account.Deps{
		Config:  cfg.Account,
		Gate:    gate,
		Limiter: limiter,
		Cookies: cookie.New(cfg.Account.Cookie),
		Logger:  log,
	}
	opts := account.RouterOptions{
		Password: account.NewPasswordHandler(passwords, deps),
		Passkey:  account.NewPasskeyHandler(passkeys, deps),
		Operator: account.NewOperatorHandler(deps, promhttp.Handler(), func() account.PoolStats {
			s := pool.Stat()
			return account.PoolStats{
				TotalConns:        s.TotalConns(),
				IdleConns:         s.IdleConns(),
				AcquiredConns:     s.AcquiredConns(),
				MaxConns:          s.MaxConns(),
				AcquireCount:      s.AcquireCount(),
				EmptyAcquireCount: s.EmptyAcquireCount(),
			}
		}),
	}

	if cfg.Google.Enabled() {
		provider, err := auth.NewGoogleProvider(ctx, cfg.Google)
		if err != nil {
			return err
		}
		oauth, err := auth.NewOAuthService(provider, store, tokens, state,
			auth.WithOAuthLogger(log),
			auth.WithOAuthAuditor(auditor),
			auth.WithOAuthInvalidator(gate))
		if err != nil {
			return err
		}
		opts.Google = account.NewGoogleHandler(oauth, deps)
	} else {
		log.Warn("google sign-in disabled, GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set")
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware, clientip.Middleware(clientip.NewFromConfig(cfg.ClientIP)))
	r.Get("/health", httpserver.HealthCheckHandler(log, healthTimeout, checks...))
	r.Mount("/", account.Router(opts))

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, r)
	})
	g.Go(func() error {
		<-gctx.Done()
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return auditor.Close(flushCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("authd stopped")
	return nil
}

func newStateStore(cfg ephemeral.Config, rdb *goredis.Client) (ephemeral.Store, func()) {
	if cfg.Backend == backendRedis {
		return ephemeral.NewRedisStore(rdb, cfg.KeyPrefix), func() {}
	}
	mem := ephemeral.NewMemoryStoreFromConfig(cfg)
	return mem, mem.Close
}

func newLimiter(cfg ratelimiter.Config, rdb *goredis.Client, log *slog.Logger) (*ratelimiter.Limiter, func(), error) {
	var (
		store   ratelimiter.Store
		closeFn = func() {}
	)
	if cfg.Backend == backendRedis {
		store = ratelimiter.NewRedisStore(rdb)
	} else {
		mem := ratelimiter.NewMemoryStore(ratelimiter.WithMaxBuckets(cfg.MaxBuckets))
		store, closeFn = mem, mem.Close
	}

	l, err := ratelimiter.New(store, ratelimiter.WithDisabled(cfg.Disabled), ratelimiter.WithLogger(log))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return l, closeFn, nil
}

func currentUserID(ctx context.Context) string {
	if u := auth.GetUserFromContext(ctx); u != nil {
		return u.ID.String()
	}
	return ""
}

