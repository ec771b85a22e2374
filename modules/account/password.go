package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/logsmart/authcore/pkg/cookie"
	"github.com/logsmart/authcore/pkg/jwt"
	"github.com/logsmart/authcore/pkg/ratelimiter"
	"github.com/logsmart/authcore/svc/auth"
)

// PasswordHandler serves registration, password login, the session
// endpoints and password reset.
type PasswordHandler struct {
	svc  *auth.Service
	deps Deps
}

func NewPasswordHandler(svc *auth.Service, deps Deps) *PasswordHandler {
	return &PasswordHandler{svc: svc, deps: deps.withDefaults()}
}

func (h *PasswordHandler) Routes(r chi.Router) {
	d := h.deps

	r.With(d.limit(ratelimiter.ClassRegister)).Post("/register", h.register)
	r.With(d.limit(ratelimiter.ClassLogin)).Post("/login", h.login)
	r.With(d.limit(ratelimiter.ClassGeneral)).Post("/verify", h.verify)
	r.Post("/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(d.limit(ratelimiter.ClassGeneral), d.authenticated())
		r.Get("/me", h.me)
		r.Put("/profile", h.updateProfile)
	})

	r.Route("/password", func(r chi.Router) {
		r.With(d.limit(ratelimiter.ClassLogin)).Post("/request-reset", h.requestReset)
		r.With(d.limit(ratelimiter.ClassGeneral)).Post("/reset", h.resetPassword)
	})
}

func (h *PasswordHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.deps.fail(w, r, err)
		return
	}

	sess, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Email:          req.Email,
		Password:       req.Password,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		CompanyName:    req.CompanyName,
		CompanyAddress: req.CompanyAddress,
	})
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}

	h.deps.Cookies.SetSession(w, sess.Token)
	writeJSON(w, http.StatusCreated, newAuthResponse(sess))
}

func (h *PasswordHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.deps.fail(w, r, err)
		return
	}

	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}

	h.deps.Cookies.SetSession(w, sess.Token)
	writeJSON(w, http.StatusOK, newAuthResponse(sess))
}

func (h *PasswordHandler) logout(w http.ResponseWriter, _ *http.Request) {
	h.deps.Cookies.ClearSession(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: msgLoggedOut})
}

func (h *PasswordHandler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), currentUserID(r))
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// verify checks the token from the body, falling back to the
// Authorization header and the session cookie.
func (h *PasswordHandler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.deps.fail(w, r, err)
		return
	}

	token := req.Token
	if token == "" {
		extract := jwt.ChainExtractors(jwt.BearerTokenExtractor, jwt.CookieTokenExtractor(cookie.SessionName))
		t, err := extract(r)
		if err != nil {
			h.deps.fail(w, r, err)
			return
		}
		token = t
	}

	user, err := h.svc.Verify(r.Context(), token)
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Valid: true, User: newUserResponse(user)})
}

func (h *PasswordHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.deps.fail(w, r, err)
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), currentUserID(r), req.FirstName, req.LastName)
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// requestReset answers identically whether or not the account exists.
func (h *PasswordHandler) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.deps.fail(w, r, err)
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.deps.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgResetRequested})
}

func (h *PasswordHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.deps.fail(w, r, err)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.deps.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgPasswordChanged})
}
