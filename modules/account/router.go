package account

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/logsmart/authcore/pkg/cookie"
	"github.com/logsmart/authcore/pkg/logger"
	"github.com/logsmart/authcore/pkg/ratelimiter"
	"github.com/logsmart/authcore/svc/auth"
)

// Mountable registers a group of endpoints on the /auth router.
type Mountable interface {
	Routes(r chi.Router)
}

// RouterOptions configures which services to mount in the account module.
// Each service is optional and will only be mounted if provided.
type RouterOptions struct {
	Password Mountable
	Google   Mountable
	Passkey  Mountable
	Operator Mountable
}

// Router creates the account module router with every endpoint under /auth.
// Operator endpoints, when provided, are mounted at the root.
//
// Example:
//
//	deps := account.Deps{Config: cfg, Gate: gate, Limiter: limiter, Cookies: cookies}
//	r := chi.NewRouter()
//	r.Mount("/", account.Router(account.RouterOptions{
//	    Password: account.NewPasswordHandler(passwordSvc, deps),
//	    Google:   account.NewGoogleHandler(oauthSvc, deps),
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Route("/auth", func(auth chi.Router) {
		if opts.Password != nil {
			opts.Password.Routes(auth)
		}
		if opts.Google != nil {
			opts.Google.Routes(auth)
		}
		if opts.Passkey != nil {
			opts.Passkey.Routes(auth)
		}
	})
	if opts.Operator != nil {
		opts.Operator.Routes(r)
	}

	return r
}

// Deps are the collaborators shared by every handler group.
type Deps struct {
	Config  Config
	Gate    *auth.Gate
	Limiter *ratelimiter.Limiter
	Cookies *cookie.Manager
	Logger  *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Cookies == nil {
		d.Cookies = cookie.New(d.Config.Cookie)
	}
	d.Logger = logger.OrDefault(d.Logger)
	return d
}

// limit applies the quota class to the route. Without a limiter the
// route is unrestricted.
func (d Deps) limit(class ratelimiter.Class) func(http.Handler) http.Handler {
	if d.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return ratelimiter.Middleware(d.Limiter, class)
}

func (d Deps) authenticated() func(http.Handler) http.Handler {
	return d.Gate.Authenticate()
}

func (d Deps) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, d.Logger, err)
}

// currentUserID returns the id of the user resolved by the gate.
func currentUserID(r *http.Request) uuid.UUID {
	if u := auth.GetUserFromContext(r.Context()); u != nil {
		return u.ID
	}
	return uuid.Nil
}
