package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsmart/authcore/svc/auth"
)

const testClientID = "client-123"

// fakeIssuer is a minimal OpenID provider: discovery, JWKS and a token
// endpoint answering per authorization code.
type fakeIssuer struct {
	*httptest.Server
	key   *rsa.PrivateKey
	codes map[string]func(issuer string) (int, map[string]any)
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIssuer{key: key, codes: make(map[string]func(string) (int, map[string]any))}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]any{
			"issuer":                                f.URL,
			"authorization_endpoint":                f.URL + "/authorize",
			"token_endpoint":                        f.URL + "/token",
			"jwks_uri":                              f.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeTestJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
			return
		}
		respond, ok := f.codes[r.PostForm.Get("code")]
		if !ok {
			writeTestJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
			return
		}
		status, body := respond(f.URL)
		writeTestJSON(w, status, body)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func writeTestJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeIssuer) sign(t *testing.T, key *rsa.PrivateKey, claims gojwt.MapClaims) string {
	t.Helper()
	tok := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "k1"
	raw, err := tok.SignedString(key)
	require.NoError(t, err)
	return raw
}

func (f *fakeIssuer) claims(issuer string, extra gojwt.MapClaims) gojwt.MapClaims {
	now := time.Now()
	c := gojwt.MapClaims{
		"iss":            issuer,
		"aud":            testClientID,
		"sub":            "google-sub-1",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"nonce":          "nonce-1",
		"email":          "ada@example.com",
		"email_verified": true,
		"given_name":     "Ada",
		"family_name":    "Lovelace",
		"picture":        "https://img.test/ada.png",
	}
	for k, v := range extra {
		if v == nil {
			delete(c, k)
			continue
		}
		c[k] = v
	}
	return c
}

func (f *fakeIssuer) issue(t *testing.T, code string, key *rsa.PrivateKey, extra gojwt.MapClaims) {
	t.Helper()
	idToken := f.sign(t, key, f.claims(f.URL, extra))
	f.codes[code] = func(string) (int, map[string]any) {
		return http.StatusOK, map[string]any{
			"access_token": "at",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		}
	}
}

func newGoogle(t *testing.T, issuer *fakeIssuer) *auth.GoogleProvider {
	t.Helper()
	g, err := auth.NewGoogleProvider(context.Background(), auth.GoogleConfig{
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8000/auth/google/callback",
		IssuerURL:    issuer.URL,
	}, auth.WithGoogleHTTPClient(issuer.Client()))
	require.NoError(t, err)
	return g
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	t.Parallel()
	issuer := newFakeIssuer(t)
	g := newGoogle(t, issuer)

	u, err := url.Parse(g.AuthCodeURL("state-1", "nonce-1"))
	require.NoError(t, err)
	q := u.Query()
	assert.True(t, strings.HasPrefix(u.String(), issuer.URL+"/authorize"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "nonce-1", q.Get("nonce"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestGoogleProvider_Exchange(t *testing.T) {
	t.Parallel()
	issuer := newFakeIssuer(t)
	g := newGoogle(t, issuer)
	ctx := context.Background()

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	issuer.issue(t, "good", issuer.key, nil)
	issuer.issue(t, "no-given-name", issuer.key, gojwt.MapClaims{"given_name": nil})
	issuer.issue(t, "no-email", issuer.key, gojwt.MapClaims{"email": nil})
	issuer.issue(t, "unverified-email", issuer.key, gojwt.MapClaims{"email_verified": false})
	issuer.issue(t, "no-email-verified", issuer.key, gojwt.MapClaims{"email_verified": nil})
	issuer.issue(t, "forged", otherKey, nil)
	issuer.issue(t, "wrong-audience", issuer.key, gojwt.MapClaims{"aud": "someone-else"})
	issuer.issue(t, "expired", issuer.key, gojwt.MapClaims{
		"iat": time.Now().Add(-3 * time.Hour).Unix(),
		"exp": time.Now().Add(-2 * time.Hour).Unix(),
	})
	issuer.codes["no-id-token"] = func(string) (int, map[string]any) {
		return http.StatusOK, map[string]any{"access_token": "at", "token_type": "Bearer"}
	}
	issuer.codes["server-error"] = func(string) (int, map[string]any) {
		return http.StatusInternalServerError, map[string]any{"error": "server_error"}
	}

	t.Run("verified profile", func(t *testing.T) {
		info, err := g.Exchange(ctx, "good", "nonce-1")
		require.NoError(t, err)
		assert.Equal(t, "google-sub-1", info.Subject)
		assert.Equal(t, "ada@example.com", info.Email)
		assert.Equal(t, "Ada", info.FirstName)
		assert.Equal(t, "Lovelace", info.LastName)
		assert.Equal(t, "https://img.test/ada.png", info.Picture)
	})

	t.Run("given name defaults", func(t *testing.T) {
		info, err := g.Exchange(ctx, "no-given-name", "nonce-1")
		require.NoError(t, err)
		assert.Equal(t, "User", info.FirstName)
	})

	tests := []struct {
		name  string
		code  string
		nonce string
		want  error
	}{
		{name: "nonce mismatch", code: "good", nonce: "other", want: auth.ErrNonceMismatch},
		{name: "missing email", code: "no-email", nonce: "nonce-1", want: auth.ErrMissingEmail},
		{name: "unverified email", code: "unverified-email", nonce: "nonce-1", want: auth.ErrEmailNotVerified},
		{name: "email verified claim absent", code: "no-email-verified", nonce: "nonce-1", want: auth.ErrEmailNotVerified},
		{name: "rejected code", code: "unknown", nonce: "nonce-1", want: auth.ErrInvalidCode},
		{name: "provider failure", code: "server-error", nonce: "nonce-1", want: auth.ErrUpstreamUnavailable},
		{name: "missing id token", code: "no-id-token", nonce: "nonce-1", want: auth.ErrUpstreamUnavailable},
		{name: "foreign signature", code: "forged", nonce: "nonce-1", want: auth.ErrIDTokenVerification},
		{name: "wrong audience", code: "wrong-audience", nonce: "nonce-1", want: auth.ErrIDTokenVerification},
		{name: "expired id token", code: "expired", nonce: "nonce-1", want: auth.ErrIDTokenVerification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Exchange(ctx, tt.code, tt.nonce)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("verification failures are upstream errors", func(t *testing.T) {
		_, err := g.Exchange(ctx, "forged", "nonce-1")
		assert.ErrorIs(t, err, auth.ErrUpstreamUnavailable)
	})
}

func TestNewGoogleProvider_RequiresCredentials(t *testing.T) {
	t.Parallel()
	_, err := auth.NewGoogleProvider(context.Background(), auth.GoogleConfig{IssuerURL: "http://127.0.0.1:1"})
	assert.Error(t, err)
	assert.False(t, auth.GoogleConfig{ClientID: "id"}.Enabled())
}
