// Package config loads environment-driven configuration structs.
//
// Structs declare their variables with caarlos0/env tags. A .env file in the
// working directory (or any files passed with WithEnvFiles) is read once per
// process before the first parse; variables already present in the
// environment are never overridden.
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("config: failed to parse environment variables")
	ErrNilPointer    = errors.New("config: nil pointer provided to loader")
)

var dotenvOnce sync.Once

// Option tunes a single Load call.
type Option func(*options)

type options struct {
	envFiles []string
	prefix   string
	environ  map[string]string
}

// WithEnvFiles replaces the default .env lookup. Missing files are ignored.
func WithEnvFiles(files ...string) Option {
	return func(o *options) { o.envFiles = files }
}

// WithPrefix prepends prefix to every variable name in the struct tags.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithEnvironment parses from the given map instead of the process environment.
func WithEnvironment(vars map[string]string) Option {
	return func(o *options) { o.environ = vars }
}

// Load parses environment variables into v.
//
//	type Config struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	o := &options{envFiles: []string{".env"}}
	for _, opt := range opts {
		opt(o)
	}

	if o.environ == nil {
		dotenvOnce.Do(func() {
			for _, f := range o.envFiles {
				// absent .env files are normal outside development
				_ = godotenv.Load(f)
			}
		})
	}

	parseOpts := env.Options{Prefix: o.prefix}
	if o.environ != nil {
		parseOpts.Environment = o.environ
	}

	if err := env.ParseWithOptions(v, parseOpts); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad is like Load but panics on failure. Use it for configuration the
// process cannot start without.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
