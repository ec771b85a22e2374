package account

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/logsmart/authcore/pkg/cookie"
	"github.com/logsmart/authcore/pkg/ratelimiter"
	"github.com/logsmart/authcore/svc/auth"
)

// GoogleHandler serves the Google sign-in and account linking flows.
type GoogleHandler struct {
	svc  *auth.OAuthService
	deps Deps
}

func NewGoogleHandler(svc *auth.OAuthService, deps Deps) *GoogleHandler {
	return &GoogleHandler{svc: svc, deps: deps.withDefaults()}
}

func (h *GoogleHandler) Routes(r chi.Router) {
	d := h.deps

	r.Route("/google", func(r chi.Router) {
		r.Use(d.limit(ratelimiter.ClassOAuth))

		r.Get("/initiate", h.initiate)
		r.Get("/callback", h.callback)

		r.Group(func(r chi.Router) {
			r.Use(d.authenticated())
			r.Post("/link/confirm", h.confirmLink)
			r.Post("/link", h.linkWithCode)
			r.Delete("/unlink", h.unlink)
		})
	})
}

func (h *GoogleHandler) initiate(w http.ResponseWriter, r *http.Request) {
	mode, err := auth.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}

	authz, err := h.svc.InitiateLogin(r.Context(), mode)
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}
	http.Redirect(w, r, authz.URL, http.StatusFound)
}

// callback finishes the provider round trip. A login lands on the
// dashboard with a session cookie. A link lands on the settings page,
// which confirms it with the parked link token.
func (h *GoogleHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		target := h.deps.Config.frontend("/login") + "?" + url.Values{"error": {reason}}.Encode()
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	state, code := q.Get("state"), q.Get("code")
	if state == "" || code == "" {
		h.deps.fail(w, r, &auth.ValidationError{Message: "Missing code or state parameter"})
		return
	}

	res, err := h.svc.Callback(r.Context(), state, code)
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}

	switch res.Mode {
	case auth.ModeLink:
		h.deps.Cookies.SetLinkPending(w, res.LinkToken)
		target := h.deps.Config.frontend("/settings") + "?" + url.Values{"oauth_link_token": {res.LinkToken}}.Encode()
		http.Redirect(w, r, target, http.StatusFound)
	default:
		h.deps.Cookies.SetSession(w, res.Session.Token)
		http.Redirect(w, r, h.deps.Config.frontend("/dashboard"), http.StatusFound)
	}
}

// confirmLink binds the parked identity to the signed-in user. The link
// token comes from the body or, failing that, the pending link cookie.
func (h *GoogleHandler) confirmLink(w http.ResponseWriter, r *http.Request) {
	var req linkConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.deps.fail(w, r, err)
		return
	}
	if req.LinkToken == "" {
		req.LinkToken, _ = h.deps.Cookies.Get(r, cookie.LinkPendingName)
	}

	if err := h.svc.ConfirmLink(r.Context(), currentUserID(r), req.LinkToken); err != nil {
		h.deps.fail(w, r, err)
		return
	}

	h.deps.Cookies.ClearLinkPending(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: msgLinked})
}

// linkWithCode links using a code and state the frontend received itself.
func (h *GoogleHandler) linkWithCode(w http.ResponseWriter, r *http.Request) {
	var req linkCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.deps.fail(w, r, err)
		return
	}
	if req.Code == "" || req.State == "" {
		h.deps.fail(w, r, &auth.ValidationError{Message: "Missing code or state parameter"})
		return
	}

	if err := h.svc.LinkWithCode(r.Context(), currentUserID(r), req.State, req.Code); err != nil {
		h.deps.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgLinked})
}

func (h *GoogleHandler) unlink(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Unlink(r.Context(), currentUserID(r)); err != nil {
		h.deps.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgUnlinked})
}
