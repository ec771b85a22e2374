package password_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/logsmart/authcore/pkg/password"
)

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	valid := []string{"user@example.com", "first.last+tag@sub.example.co", "a_b-c@x-y.io"}
	for _, e := range valid {
		assert.NoError(t, password.ValidateEmail(e), e)
	}

	invalid := []string{"", "plain", "@example.com", "user@", "user@example", "user..dots@example.com", "user@example.c", strings.Repeat("a", 250) + "@example.com"}
	for _, e := range invalid {
		assert.ErrorIs(t, password.ValidateEmail(e), password.ErrInvalidEmail, e)
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "user@example.com", password.NormalizeEmail("  User@Example.COM "))
}

func TestValidatePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []error
	}{
		{"valid", "Str0ng!pass", nil},
		{"too short", "Aa1!", []error{password.ErrTooShort}},
		{"too long", "Aa1!" + strings.Repeat("x", 125), []error{password.ErrTooLong}},
		{"no upper", "weak1!pass", []error{password.ErrNoUppercase}},
		{"no lower", "WEAK1!PASS", []error{password.ErrNoLowercase}},
		{"no digit", "Weak!pass", []error{password.ErrNoDigit}},
		{"no special", "Weak1pass", []error{password.ErrNoSpecial}},
		{"several", "alllowercase", []error{password.ErrNoUppercase, password.ErrNoDigit, password.ErrNoSpecial}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := password.ValidatePolicy(tt.in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			for _, w := range tt.want {
				assert.ErrorIs(t, err, w)
			}
		})
	}
}
