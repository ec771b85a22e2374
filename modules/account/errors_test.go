package account_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/logsmart/authcore/modules/account"
	"github.com/logsmart/authcore/pkg/jwt"
	"github.com/logsmart/authcore/svc/auth"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", &auth.ValidationError{Message: "Missing required fields"}, http.StatusBadRequest, "Missing required fields"},
		{"wrapped validation", fmt.Errorf("register: %w", &auth.ValidationError{Message: "Invalid email format"}), http.StatusBadRequest, "Invalid email format"},
		{"missing token", jwt.ErrMissingToken, http.StatusUnauthorized, "Missing authentication token"},
		{"inconsistent claims", jwt.ErrInvalidClaims, http.StatusUnauthorized, "Invalid token"},
		{"expired", jwt.ErrExpiredToken, http.StatusUnauthorized, "Token has expired"},
		{"credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
		{"unverified google email", auth.ErrEmailNotVerified, http.StatusBadRequest, "Google account email is not verified"},
		{"forbidden", auth.ErrInsufficientPermissions, http.StatusForbidden, "Insufficient permissions"},
		{"invitation", auth.ErrInvitationRequired, http.StatusForbidden, "No account found. Please create an account first or use an invitation link to join a company."},
		{"no credentials", auth.ErrNoCredentials, http.StatusNotFound, "No passkeys found for this user"},
		{"session", auth.ErrSessionNotFound, http.StatusNotFound, "Authentication session expired or invalid"},
		{"email taken", auth.ErrEmailTaken, http.StatusConflict, "Email already exists"},
		{"identity linked", auth.ErrIdentityLinked, http.StatusConflict, "This Google account is already linked to another user"},
		{"id token", auth.ErrIDTokenVerification, http.StatusBadGateway, "Failed to verify ID token"},
		{"upstream", fmt.Errorf("%w: dial tcp", auth.ErrUpstreamUnavailable), http.StatusBadGateway, "Upstream service unavailable"},
		{"persistence", fmt.Errorf("%w: conn reset", auth.ErrPersistence), http.StatusInternalServerError, "Database error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, msg := account.StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, msg)
		})
	}
}
