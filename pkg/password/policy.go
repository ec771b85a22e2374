package password

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minLength      = 8
	maxLength      = 128
	maxEmailLength = 254
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9_+-]+(\.[a-zA-Z0-9_+-]+)*@[a-zA-Z0-9-]+(\.[a-zA-Z0-9-]+)*\.[a-zA-Z]{2,}$`)

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address shape and length.
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength || !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePolicy checks password strength. Missing character classes are
// joined so callers can report them together.
func ValidatePolicy(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minLength {
		return ErrTooShort
	}
	if n > maxLength {
		return ErrTooLong
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsSpace(r):
			special = true
		}
	}

	var errs []error
	if !upper {
		errs = append(errs, ErrNoUppercase)
	}
	if !lower {
		errs = append(errs, ErrNoLowercase)
	}
	if !digit {
		errs = append(errs, ErrNoDigit)
	}
	if !special {
		errs = append(errs, ErrNoSpecial)
	}
	return errors.Join(errs...)
}
