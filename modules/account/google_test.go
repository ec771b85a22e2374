package account_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsmart/authcore/pkg/cookie"
	"github.com/logsmart/authcore/pkg/rbac"
	"github.com/logsmart/authcore/svc/auth"
)

// initiate starts a round trip and returns the state from the provider URL.
func initiate(t *testing.T, f *fixture, mode string) string {
	t.Helper()
	rec := f.do(t, request{method: http.MethodGet, path: "/auth/google/initiate?mode=" + mode})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.test", loc.Host)
	state := loc.Query().Get("state")
	require.Len(t, state, 32)
	return state
}

func callback(t *testing.T, f *fixture, state, code string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, request{method: http.MethodGet, path: "/auth/google/callback?" + url.Values{"state": {state}, "code": {code}}.Encode()})
}

func TestGoogle_Initiate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	initiate(t, f, "")
	initiate(t, f, "link")

	rec := f.do(t, request{method: http.MethodGet, path: "/auth/google/initiate?mode=signup"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid mode parameter", errorOf(t, rec))
}

func TestGoogle_CallbackLogin(t *testing.T) {
	t.Parallel()

	t.Run("linked account lands on the dashboard", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		u := f.store.Add(auth.User{Email: "ada@example.com", Role: rbac.RoleMember})
		require.NoError(t, f.store.LinkOAuthIdentity(context.Background(), auth.OAuthIdentity{Provider: auth.ProviderGoogle, Subject: "g-ada", UserID: u.ID}))

		rec := callback(t, f, initiate(t, f, "login"), "code-ada")
		require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
		assert.Equal(t, frontendURL+"/dashboard", rec.Header().Get("Location"))

		c := findCookie(rec, cookie.SessionName)
		require.NotNil(t, c)
		claims, err := f.tokens.Validate(c.Value)
		require.NoError(t, err)
		assert.Equal(t, u.ID.String(), claims.UserID)
	})

	t.Run("state is single use", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		state := initiate(t, f, "login")

		assert.Equal(t, http.StatusForbidden, callback(t, f, state, "code-new").Code)

		rec := callback(t, f, state, "code-new")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid or expired state parameter", errorOf(t, rec))
	})

	t.Run("unlinked email is a conflict", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.store.Add(auth.User{Email: "ada@example.com", PasswordHash: "v1:x", Role: rbac.RoleMember})

		rec := callback(t, f, initiate(t, f, "login"), "code-ada")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, errorOf(t, rec), "link your Google account in settings")
	})

	t.Run("bad code", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := callback(t, f, initiate(t, f, "login"), "code-unknown")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid authorization code", errorOf(t, rec))
	})

	t.Run("provider error redirects to login", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := f.do(t, request{method: http.MethodGet, path: "/auth/google/callback?error=access_denied"})
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, frontendURL+"/login?error=access_denied", rec.Header().Get("Location"))
	})
}

func TestGoogle_LinkAndUnlink(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u := f.store.Add(auth.User{Email: "owner@example.com", PasswordHash: "v1:x", Role: rbac.RoleAdmin})
	token := f.token(t, u)

	rec := callback(t, f, initiate(t, f, "link"), "code-ada")
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/settings", loc.Path)
	linkToken := loc.Query().Get("oauth_link_token")
	require.Len(t, linkToken, 64)

	pending := findCookie(rec, cookie.LinkPendingName)
	require.NotNil(t, pending)
	assert.Equal(t, linkToken, pending.Value)
	assert.Equal(t, http.SameSiteLaxMode, pending.SameSite)
	assert.Equal(t, cookie.LinkPendingMaxAge, pending.MaxAge)

	rec = f.do(t, request{method: http.MethodPost, path: "/auth/google/link/confirm", body: map[string]string{"link_token": linkToken}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "confirm requires a session")

	// The token is read from the pending cookie when the body omits it.
	rec = f.do(t, request{method: http.MethodPost, path: "/auth/google/link/confirm", token: token, cookies: []*http.Cookie{pending}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Google account linked successfully", decode[map[string]string](t, rec)["message"])

	rec = f.do(t, request{method: http.MethodPost, path: "/auth/google/link/confirm", token: token, body: map[string]string{"link_token": linkToken}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired link token", errorOf(t, rec))

	linked, err := f.store.GetByOAuthIdentity(context.Background(), auth.ProviderGoogle, "g-ada")
	require.NoError(t, err)
	assert.Equal(t, u.ID, linked.ID)

	rec = f.do(t, request{method: http.MethodDelete, path: "/auth/google/unlink", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Google account unlinked successfully", decode[map[string]string](t, rec)["message"])
}

func TestGoogle_LinkWithCode(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	other := f.store.Add(auth.User{Email: "other@example.com", PasswordHash: "v1:x", Role: rbac.RoleMember})
	require.NoError(t, f.store.LinkOAuthIdentity(context.Background(), auth.OAuthIdentity{Provider: auth.ProviderGoogle, Subject: "g-ada", UserID: other.ID}))
	u := f.store.Add(auth.User{Email: "me@example.com", PasswordHash: "v1:x", Role: rbac.RoleMember})

	rec := f.do(t, request{method: http.MethodPost, path: "/auth/google/link", token: f.token(t, u),
		body: map[string]string{"state": initiate(t, f, "link"), "code": "code-ada"}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "This Google account is already linked to another user", errorOf(t, rec))
}

func TestGoogle_UnlinkWithoutPassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u := f.store.Add(auth.User{Email: "ada@example.com", Role: rbac.RoleMember})
	require.NoError(t, f.store.LinkOAuthIdentity(context.Background(), auth.OAuthIdentity{Provider: auth.ProviderGoogle, Subject: "g-ada", UserID: u.ID}))

	rec := f.do(t, request{method: http.MethodDelete, path: "/auth/google/unlink", token: f.token(t, u)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec), "Please set a password first")
}
