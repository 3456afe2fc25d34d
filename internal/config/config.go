// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
// It is built once at startup and passed to components explicitly; nothing
// reads the environment after Load returns.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// TokenSecret is the HMAC secret used to sign identity tokens.
	TokenSecret string `mapstructure:"TOKEN_SECRET"`
	// TokenIssuer is the iss claim (e.g. "watchtrack-auth").
	TokenIssuer string `mapstructure:"TOKEN_ISSUER"`
	// TokenAudience is the aud claim (e.g. "watchtrack-api").
	TokenAudience string `mapstructure:"TOKEN_AUDIENCE"`
	// TokenTTL is the identity token lifetime (e.g. "168h" for 7 days).
	TokenTTL string `mapstructure:"TOKEN_TTL"`
	// SessionSecret is the HMAC secret used to sign the session cookie.
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	// SessionTTL is the server-side session lifetime (e.g. "720h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// SessionCookieName is the name of the session cookie.
	SessionCookieName string `mapstructure:"SESSION_COOKIE_NAME"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("TOKEN_SECRET", "")
	v.SetDefault("TOKEN_ISSUER", "watchtrack-auth")
	v.SetDefault("TOKEN_AUDIENCE", "watchtrack-api")
	v.SetDefault("TOKEN_TTL", "168h") // 7d
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_TTL", "720h") // 30d
	v.SetDefault("SESSION_COOKIE_NAME", "watchtrack_session")
	v.SetDefault("BCRYPT_COST", 12)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.TokenSecret == "" {
		return nil, errors.New("config: TOKEN_SECRET must be set")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("config: SESSION_SECRET must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// TokenLifetime parses TokenTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) TokenLifetime() time.Duration {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// SessionLifetime parses SessionTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) SessionLifetime() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}
