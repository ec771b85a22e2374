package cookie

import (
	"errors"
	"net/http"
	"time"
)

// Cookie names written by the service.
const (
	SessionName     = "ls-token"
	LinkPendingName = "oauth_link_pending"
)

const (
	// SessionMaxAge is seven days.
	SessionMaxAge = 7 * 24 * 60 * 60
	// LinkPendingMaxAge matches the link token lifetime.
	LinkPendingMaxAge = 5 * 60
)

var ErrCookieNotFound = errors.New("cookie: not found")

// Manager writes the service cookies. The configured domain applies to the
// session cookie only.
type Manager struct {
	domain string
}

// New creates a Manager from cfg.
func New(cfg Config) *Manager {
	return &Manager{domain: cfg.Domain}
}

// kind fixes the attributes of one cookie the service writes.
type kind struct {
	name     string
	maxAge   int
	scoped   bool // carries the configured domain
	secure   bool
	httpOnly bool
	sameSite http.SameSite
}

var (
	session = kind{
		name:     SessionName,
		maxAge:   SessionMaxAge,
		scoped:   true,
		secure:   true,
		httpOnly: true,
		sameSite: http.SameSiteNoneMode,
	}
	// linkPending is read by frontend script, so it is neither HttpOnly
	// nor domain scoped.
	linkPending = kind{
		name:     LinkPendingName,
		maxAge:   LinkPendingMaxAge,
		sameSite: http.SameSiteLaxMode,
	}
)

func (m *Manager) cookie(k kind, value string) *http.Cookie {
	c := &http.Cookie{
		Name:     k.name,
		Value:    value,
		Path:     "/",
		MaxAge:   k.maxAge,
		Secure:   k.secure,
		HttpOnly: k.httpOnly,
		SameSite: k.sameSite,
	}
	if k.scoped {
		c.Domain = m.domain
	}
	if value == "" {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	}
	return c
}

// SetSession writes
// ls-token=<token>; Path=/; HttpOnly; Secure; SameSite=None; Max-Age=604800.
// SameSite=None lets the separately hosted frontend send it cross-site.
func (m *Manager) SetSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, m.cookie(session, token))
}

func (m *Manager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(session, ""))
}

// SetLinkPending writes oauth_link_pending=<token>; Path=/; SameSite=Lax;
// Max-Age=300.
func (m *Manager) SetLinkPending(w http.ResponseWriter, token string) {
	http.SetCookie(w, m.cookie(linkPending, token))
}

func (m *Manager) ClearLinkPending(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(linkPending, ""))
}

// Get returns the value of the named cookie. Empty values count as missing.
func (m *Manager) Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", ErrCookieNotFound
	}
	return c.Value, nil
}
