// Package config loads process configuration from the environment so main
// stays lean.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr        string `env:"AUTHGATE_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	Redis RedisConfig

	// Session cookies are Secure by default; switch off only for local dev
	// over plain HTTP.
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	OAuth OAuthConfig
}

// RedisConfig tunes the session store connection.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// OAuthConfig holds provider credentials and the redirect base registered
// with each provider. RedirectURLBase must match the provider registration
// exactly; a mismatch surfaces as a provider-side error, not something the
// server can recover from.
type OAuthConfig struct {
	RedirectURLBase    string        `env:"OAUTH_REDIRECT_URL_BASE"`
	StateTTL           time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
}

// FromEnv parses configuration from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
