package ephemeral

import "errors"

var (
	ErrNotFound         = errors.New("ephemeral: entry not found or expired")
	ErrEmptyKey         = errors.New("ephemeral: empty key")
	ErrInvalidTTL       = errors.New("ephemeral: ttl must be positive")
	ErrCorruptEntry     = errors.New("ephemeral: corrupt entry")
	ErrStoreUnavailable = errors.New("ephemeral: store unavailable")
)
