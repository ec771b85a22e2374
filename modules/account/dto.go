package account

import (
	"encoding/json"
	"time"

	"github.com/logsmart/authcore/svc/auth"
)

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	CompanyName   *string `json:"company_name,omitempty"`
	Role          string  `json:"role"`
	OAuthProvider *string `json:"oauth_provider,omitempty"`
}

func newUserResponse(u *auth.User) userResponse {
	resp := userResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
	}
	if u.CompanyName != "" {
		resp.CompanyName = &u.CompanyName
	}
	if u.OAuthProvider != "" {
		resp.OAuthProvider = &u.OAuthProvider
	}
	return resp
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func newAuthResponse(s *auth.Session) authResponse {
	return authResponse{Token: s.Token, User: newUserResponse(s.User)}
}

type registerRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	CompanyName    string `json:"company_name"`
	CompanyAddress string `json:"company_address"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid bool         `json:"valid"`
	User  userResponse `json:"user"`
}

type profileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type linkConfirmRequest struct {
	LinkToken string `json:"link_token"`
}

type linkCodeRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type passkeyStartRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ceremonyResponse carries the WebAuthn options for the browser and the
// id the finish call must echo back.
type ceremonyResponse struct {
	Options any    `json:"options"`
	AuthID  string `json:"auth_id"`
}

type passkeyFinishRequest struct {
	AuthID     string          `json:"auth_id"`
	Credential json.RawMessage `json:"credential"`
}

type passkeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func newPasskeyResponse(p *auth.PasskeyCredential) passkeyResponse {
	return passkeyResponse{
		ID:         p.ID.String(),
		Name:       p.Name,
		CreatedAt:  p.CreatedAt,
		LastUsedAt: p.LastUsedAt,
	}
}
