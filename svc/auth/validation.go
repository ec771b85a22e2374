package auth

import (
	"strings"
)

// ValidationError is an input error whose Message can be shown to clients.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return "auth: validation failed: " + e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// passwordPolicyError turns password policy failures into one client message.
func passwordPolicyError(err error) error {
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, "Password "+strings.TrimPrefix(e.Error(), "password: "))
	}
	return invalid(strings.Join(msgs, "; "))
}
