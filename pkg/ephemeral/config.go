package ephemeral

import "time"

// Config selects and sizes the backend.
type Config struct {
	Backend         string        `env:"EPHEMERAL_BACKEND" envDefault:"memory"` // memory | redis
	MaxEntries      int           `env:"EPHEMERAL_MAX_ENTRIES" envDefault:"100000"`
	CleanupInterval time.Duration `env:"EPHEMERAL_CLEANUP_INTERVAL" envDefault:"1m"`
	KeyPrefix       string        `env:"EPHEMERAL_KEY_PREFIX" envDefault:"ephemeral:"`
}
