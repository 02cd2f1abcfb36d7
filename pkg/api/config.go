package api

import "time"

// APIConfig configures the status API HTTP server.
//
// When Enabled is false, no API server is started.
type APIConfig struct {
	// Enabled controls whether the API server is started.
	// Use a pointer to distinguish "not set" from "explicitly false".
	// Default: true
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// BindAddress is the interface to listen on. Default: all interfaces.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address" validate:"omitempty,ip"`

	// Port is the HTTP port. Default: 8080
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout. Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// Auth protects /api/v1 with bearer tokens when enabled.
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`
}

// AuthConfig configures JWT bearer authentication for /api/v1.
type AuthConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// JWTSecret is the HMAC key, at least 32 characters. Required when
	// Enabled. Prefer setting it through DITTOSMB_API_AUTH_JWT_SECRET.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty" validate:"omitempty,min=32"`

	// Issuer is checked on every token. Default: "dittosmb"
	Issuer string `mapstructure:"issuer" yaml:"issuer"`

	// TokenDuration is the lifetime of tokens minted by `dittosmb token`.
	// Default: 24h
	TokenDuration time.Duration `mapstructure:"token_duration" yaml:"token_duration" validate:"min=0"`
}

// IsEnabled returns whether the API server is enabled.
func (c *APIConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *APIConfig) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "dittosmb"
	}
	if c.Auth.TokenDuration == 0 {
		c.Auth.TokenDuration = 24 * time.Hour
	}
}
