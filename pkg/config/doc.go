// Package config loads typed configuration from environment variables using
// github.com/caarlos0/env, after reading an optional .env file with
// github.com/joho/godotenv.
//
// Each package declares its own Config struct with `env` tags; the service
// binary composes them into one struct and calls Load once at startup.
// Required variables that are missing, and values that do not parse, are
// reported together as an error wrapping ErrParsingConfig.
package config
