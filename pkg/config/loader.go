package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("config: cannot parse environment")
	// ErrEnvFile means an explicitly requested dotenv file could not be read.
	ErrEnvFile = errors.New("config: cannot load env file")
)

var dotenvOnce sync.Once

type loadOptions struct {
	files       []string
	environment map[string]string
	prefix      string
}

// Option configures Load.
type Option func(*loadOptions)

// WithEnvFiles loads the given dotenv files instead of ./.env. Existing
// process variables are never overridden.
func WithEnvFiles(files ...string) Option {
	return func(o *loadOptions) { o.files = files }
}

// WithEnvironment parses from the given map instead of the process environment.
// Dotenv files are not read.
func WithEnvironment(vars map[string]string) Option {
	return func(o *loadOptions) { o.environment = vars }
}

// WithPrefix requires every variable name to carry prefix.
func WithPrefix(prefix string) Option {
	return func(o *loadOptions) { o.prefix = prefix }
}

// Load parses environment variables into a new T using `env` struct tags.
// Nested structs are parsed recursively, so an application config can embed
// the Config of every package it wires.
//
//	type AppConfig struct {
//		JWT  jwt.Config
//		HTTP httpserver.Config
//	}
//	cfg, err := config.Load[AppConfig]()
func Load[T any](opts ...Option) (T, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	var cfg T
	envOpts := env.Options{Prefix: o.prefix}

	if o.environment != nil {
		envOpts.Environment = o.environment
	} else if err := loadDotenv(o.files); err != nil {
		return cfg, err
	}

	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](opts ...Option) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return cfg
}

func loadDotenv(files []string) error {
	if len(files) > 0 {
		for _, f := range files {
			if err := godotenv.Load(f); err != nil {
				return errors.Join(ErrEnvFile, err)
			}
		}
		return nil
	}

	// The default .env is optional and read at most once per process.
	dotenvOnce.Do(func() {
		if _, err := os.Stat(".env"); err == nil {
			_ = godotenv.Load()
		}
	})
	return nil
}
