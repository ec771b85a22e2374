package password

import "errors"

var (
	ErrMalformedHash = errors.New("password: malformed hash")
	ErrInvalidParams = errors.New("password: invalid argon2 parameters")

	ErrInvalidEmail = errors.New("password: invalid email format")
	ErrTooShort     = errors.New("password: must be at least 8 characters long")
	ErrTooLong      = errors.New("password: must be no more than 128 characters long")
	ErrNoUppercase  = errors.New("password: must contain at least one uppercase letter")
	ErrNoLowercase  = errors.New("password: must contain at least one lowercase letter")
	ErrNoDigit      = errors.New("password: must contain at least one number")
	ErrNoSpecial    = errors.New("password: must contain at least one special character")
)
