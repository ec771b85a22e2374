package ratelimiter

// Config holds the environment driven limiter settings.
type Config struct {
	Disabled   bool   `env:"DISABLE_RATE_LIMIT" envDefault:"false"`
	Backend    string `env:"RATE_LIMIT_BACKEND" envDefault:"memory"` // memory | redis
	MaxBuckets int    `env:"RATE_LIMIT_MAX_BUCKETS" envDefault:"100000"`
}
