package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// defaultGivenName is used when the provider omits given_name.
const defaultGivenName = "User"

// ErrIDTokenVerification is an upstream failure where the id_token did not
// pass signature, issuer, audience or expiry checks.
var ErrIDTokenVerification = fmt.Errorf("%w: failed to verify id token", ErrUpstreamUnavailable)

// GoogleConfig configures Google sign-in.
type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URI" envDefault:"http://localhost:8000/auth/google/callback"`
	IssuerURL    string `env:"GOOGLE_ISSUER_URL" envDefault:"https://accounts.google.com"`
}

// Enabled reports whether client credentials are configured.
func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// GoogleProvider implements IdentityProvider with OpenID Connect discovery.
type GoogleProvider struct {
	oauth      *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithGoogleHTTPClient sets the client used for discovery, key fetches and
// the code exchange.
func WithGoogleHTTPClient(c *http.Client) GoogleOption {
	return func(g *GoogleProvider) { g.httpClient = c }
}

// NewGoogleProvider discovers the issuer's endpoints and signing keys.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig, opts ...GoogleOption) (*GoogleProvider, error) {
	if !cfg.Enabled() {
		return nil, errors.New("auth: google client id and secret are required")
	}

	g := &GoogleProvider{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(g)
	}

	// The key set keeps this context for later fetches, so it must outlive ctx.
	discoveryCtx := oidc.ClientContext(context.WithoutCancel(ctx), g.httpClient)
	provider, err := oidc.NewProvider(discoveryCtx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("auth: discover %s: %w", cfg.IssuerURL, err)
	}

	g.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
	g.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return g, nil
}

func (g *GoogleProvider) Name() string { return ProviderGoogle }

func (g *GoogleProvider) AuthCodeURL(state, nonce string) string {
	return g.oauth.AuthCodeURL(state, oidc.Nonce(nonce), oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (g *GoogleProvider) Exchange(ctx context.Context, code, nonce string) (*OAuthUserInfo, error) {
	ctx = oidc.ClientContext(ctx, g.httpClient)

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil &&
			re.Response.StatusCode >= http.StatusBadRequest && re.Response.StatusCode < http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCode, re.ErrorCode)
		}
		return nil, fmt.Errorf("%w: code exchange: %w", ErrUpstreamUnavailable, err)
	}

	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return nil, fmt.Errorf("%w: token response has no id_token", ErrUpstreamUnavailable)
	}

	idToken, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIDTokenVerification, err)
	}
	if subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(nonce)) != 1 {
		return nil, ErrNonceMismatch
	}

	var info OAuthUserInfo
	if err := idToken.Claims(&info); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %w", ErrIDTokenVerification, err)
	}
	info.Subject = idToken.Subject
	if strings.TrimSpace(info.Email) == "" {
		return nil, ErrMissingEmail
	}
	// Linking and sign-in match on email, so an unverified address could
	// take over the local account that owns it.
	if !info.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	if info.FirstName == "" {
		info.FirstName = defaultGivenName
	}
	return &info, nil
}
