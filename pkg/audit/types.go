package audit

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEventValidation = errors.New("audit: event validation failed")
	ErrLoggerClosed    = errors.New("audit: logger closed")
	ErrBufferFull      = errors.New("audit: buffer full")
)

// Result is the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actions emitted by the authentication service.
const (
	ActionRegister             = "auth.register"
	ActionLogin                = "auth.login"
	ActionProfileUpdate        = "auth.profile.update"
	ActionPasswordResetRequest = "auth.password.reset_request"
	ActionPasswordReset        = "auth.password.reset"
	ActionOAuthLogin           = "auth.oauth.login"
	ActionOAuthLink            = "auth.oauth.link"
	ActionOAuthUnlink          = "auth.oauth.unlink"
	ActionPasskeyRegister      = "auth.passkey.register"
	ActionPasskeyLogin         = "auth.passkey.login"
	ActionPasskeyDelete        = "auth.passkey.delete"
)

// Event is a single audit record.
type Event struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Email     string         `json:"email,omitempty"`
	Action    string         `json:"action"`
	Result    Result         `json:"result"`
	Error     string         `json:"error,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Validate checks required fields.
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	return nil
}

// EventOption mutates an Event before it is queued.
type EventOption func(*Event)

// WithUserID sets the acting user.
func WithUserID(id string) EventOption {
	return func(e *Event) { e.UserID = id }
}

// WithEmail records the address the action was attempted for.
func WithEmail(email string) EventOption {
	return func(e *Event) { e.Email = email }
}

// WithMetadata adds a metadata entry.
func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}
