package account

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/logsmart/authcore/pkg/jwt"
	"github.com/logsmart/authcore/pkg/logger"
	"github.com/logsmart/authcore/svc/auth"
)

// Public messages shared by several handlers.
const (
	msgInvalidBody     = "Invalid request body"
	msgInternal        = "Internal server error"
	msgRegSession      = "Registration session expired or invalid"
	msgDatabase        = "Database error"
	msgInvalidPasskey  = "Invalid passkey id"
	msgLinked          = "Google account linked successfully"
	msgUnlinked        = "Google account unlinked successfully"
	msgPasskeyDeleted  = "Passkey deleted successfully"
	msgLoggedOut       = "Logged out successfully"
	msgResetRequested  = "If an account exists with this email, a password reset link has been sent."
	msgPasswordChanged = "Password has been reset successfully."
)

type errorMapping struct {
	target  error
	status  int
	message string
}

// errorTable maps sentinels to a status and client message. The first
// match wins, so more specific errors come before the ones they wrap.
var errorTable = []errorMapping{
	{jwt.ErrMissingToken, http.StatusUnauthorized, "Missing authentication token"},
	{jwt.ErrExpiredToken, http.StatusUnauthorized, "Token has expired"},
	{jwt.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{auth.ErrInvalidState, http.StatusUnauthorized, "Invalid or expired state parameter"},
	{auth.ErrInvalidLinkToken, http.StatusUnauthorized, "Invalid or expired link token"},
	{auth.ErrNonceMismatch, http.StatusUnauthorized, "Failed to verify ID token"},
	{auth.ErrCounterNotIncreased, http.StatusUnauthorized, "Failed to verify credential"},

	{auth.ErrInvalidCode, http.StatusBadRequest, "Invalid authorization code"},
	{auth.ErrInvalidMode, http.StatusBadRequest, "Invalid mode parameter"},
	{auth.ErrMissingEmail, http.StatusBadRequest, "Email not provided by Google"},
	{auth.ErrEmailNotVerified, http.StatusBadRequest, "Google account email is not verified"},
	{auth.ErrInvalidResetToken, http.StatusBadRequest, "Invalid or expired reset token"},
	{auth.ErrPasswordRequired, http.StatusBadRequest, "Cannot unlink Google account. Please set a password first to maintain account access."},
	{auth.ErrNoProviderLink, http.StatusBadRequest, "No Google account linked"},
	{auth.ErrVerificationFailed, http.StatusBadRequest, "Failed to verify credential"},

	{auth.ErrInsufficientPermissions, http.StatusForbidden, "Insufficient permissions"},
	{auth.ErrInvitationRequired, http.StatusForbidden, "No account found. Please create an account first or use an invitation link to join a company."},

	{auth.ErrNoCredentials, http.StatusNotFound, "No passkeys found for this user"},
	{auth.ErrSessionNotFound, http.StatusNotFound, "Authentication session expired or invalid"},
	{auth.ErrPasskeyNotFound, http.StatusNotFound, "Passkey not found"},
	{auth.ErrUserNotFound, http.StatusNotFound, "User not found"},

	{auth.ErrEmailTaken, http.StatusConflict, "Email already exists"},
	{auth.ErrOAuthEmailExists, http.StatusConflict, "An account with this email already exists. Please login with your password or link your Google account in settings."},
	{auth.ErrIdentityLinked, http.StatusConflict, "This Google account is already linked to another user"},

	{auth.ErrIDTokenVerification, http.StatusBadGateway, "Failed to verify ID token"},
	{auth.ErrUpstreamUnavailable, http.StatusBadGateway, "Upstream service unavailable"},

	{auth.ErrPersistence, http.StatusInternalServerError, msgDatabase},
}

// StatusFor returns the HTTP status and client message for err.
// Unknown errors are 500 with a generic message.
func StatusFor(err error) (int, string) {
	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, verr.Message
	}
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, msgInternal
}

// writeError responds with the mapped status. Server side failures are
// logged with the full error, which the client never sees.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// ErrorHandler adapts writeError for the access gate.
func ErrorHandler(log *slog.Logger) auth.ErrorHandler {
	log = logger.OrDefault(log)
	return func(w http.ResponseWriter, r *http.Request, err error) {
		writeError(w, r, log, err)
	}
}
