package account

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"

	"github.com/logsmart/authcore/pkg/ratelimiter"
	"github.com/logsmart/authcore/svc/auth"
)

// PasskeyHandler serves WebAuthn registration, login and credential
// management.
type PasskeyHandler struct {
	svc  *auth.PasskeyService
	deps Deps
}

func NewPasskeyHandler(svc *auth.PasskeyService, deps Deps) *PasskeyHandler {
	return &PasskeyHandler{svc: svc, deps: deps.withDefaults()}
}

func (h *PasskeyHandler) Routes(r chi.Router) {
	d := h.deps

	r.Route("/passkey", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(d.limit(ratelimiter.ClassGeneral), d.authenticated())
			r.Post("/register/start", h.startRegistration)
			r.Post("/register/finish", h.finishRegistration)
		})

		r.Group(func(r chi.Router) {
			r.Use(d.limit(ratelimiter.ClassLogin))
			r.Post("/login/start", h.startLogin)
			r.Post("/login/finish", h.finishLogin)
			r.Post("/login/discoverable/start", h.startDiscoverable)
			r.Post("/login/discoverable/finish", h.finishDiscoverable)
		})
	})

	r.Route("/passkeys", func(r chi.Router) {
		r.Use(d.limit(ratelimiter.ClassGeneral), d.authenticated())
		r.Get("/", h.list)
		r.Delete("/{id}", h.delete)
	})
}

func (h *PasskeyHandler) startRegistration(w http.ResponseWriter, r *http.Request) {
	var req passkeyStartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.deps.fail(w, r, err)
		return
	}

	options, id, err := h.svc.StartRegistration(r.Context(), currentUserID(r), req.Name)
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ceremonyResponse{Options: options, AuthID: id})
}

func (h *PasskeyHandler) finishRegistration(w http.ResponseWriter, r *http.Request) {
	var req passkeyFinishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.deps.fail(w, r, err)
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		h.deps.fail(w, r, auth.ErrVerificationFailed)
		return
	}

	cred, err := h.svc.FinishRegistration(r.Context(), currentUserID(r), req.AuthID, parsed)
	if errors.Is(err, auth.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: msgRegSession})
		return
	}
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPasskeyResponse(cred))
}

func (h *PasskeyHandler) startLogin(w http.ResponseWriter, r *http.Request) {
	var req passkeyStartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.deps.fail(w, r, err)
		return
	}

	options, id, err := h.svc.StartAuthentication(r.Context(), req.Email)
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ceremonyResponse{Options: options, AuthID: id})
}

func (h *PasskeyHandler) finishLogin(w http.ResponseWriter, r *http.Request) {
	h.finishAssertion(w, r, h.svc.FinishAuthentication)
}

func (h *PasskeyHandler) startDiscoverable(w http.ResponseWriter, r *http.Request) {
	options, id, err := h.svc.StartDiscoverable(r.Context())
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ceremonyResponse{Options: options, AuthID: id})
}

func (h *PasskeyHandler) finishDiscoverable(w http.ResponseWriter, r *http.Request) {
	h.finishAssertion(w, r, h.svc.FinishDiscoverable)
}

type assertionFinisher func(ctx context.Context, sessionID string, parsed *protocol.ParsedCredentialAssertionData) (*auth.PasskeyLogin, error)

func (h *PasskeyHandler) finishAssertion(w http.ResponseWriter, r *http.Request, finish assertionFinisher) {
	var req passkeyFinishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.deps.fail(w, r, err)
		return
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		h.deps.fail(w, r, auth.ErrVerificationFailed)
		return
	}

	login, err := finish(r.Context(), req.AuthID, parsed)
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}

	h.deps.Cookies.SetSession(w, login.Session.Token)
	writeJSON(w, http.StatusOK, newAuthResponse(login.Session))
}

func (h *PasskeyHandler) list(w http.ResponseWriter, r *http.Request) {
	creds, err := h.svc.ListPasskeys(r.Context(), currentUserID(r))
	if err != nil {
		h.deps.fail(w, r, err)
		return
	}

	resp := make([]passkeyResponse, 0, len(creds))
	for i := range creds {
		resp = append(resp, newPasskeyResponse(&creds[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PasskeyHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.deps.fail(w, r, &auth.ValidationError{Message: msgInvalidPasskey})
		return
	}

	if err := h.svc.DeletePasskey(r.Context(), currentUserID(r), id); err != nil {
		h.deps.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgPasskeyDeleted})
}
