package token

import "time"

// JwtConfig holds JWT service configuration
type JwtConfig struct {
	Secret         string
	Issuer         string
	Expiry         time.Duration
	CookieHttpOnly bool
	CookieSecure   bool
}

// JwtOption defines a function type for configuring JwtConfig
type JwtOption func(*JwtConfig)

// WithIssuer sets the token issuer claim
func WithIssuer(issuer string) JwtOption {
	return func(config *JwtConfig) {
		config.Issuer = issuer
	}
}

// WithExpiry sets the token lifetime
func WithExpiry(expiry time.Duration) JwtOption {
	return func(config *JwtConfig) {
		config.Expiry = expiry
	}
}

// WithCookieHttpOnly sets the HttpOnly flag for cookies
func WithCookieHttpOnly(httpOnly bool) JwtOption {
	return func(config *JwtConfig) {
		config.CookieHttpOnly = httpOnly
	}
}

// WithCookieSecure sets the Secure flag for cookies
func WithCookieSecure(secure bool) JwtOption {
	return func(config *JwtConfig) {
		config.CookieSecure = secure
	}
}

// NewJwtConfig creates a new JwtConfig with the given secret and options
func NewJwtConfig(secret string, opts ...JwtOption) *JwtConfig {
	config := &JwtConfig{
		Secret: secret,
		Issuer: "chatauth",
		Expiry: 24 * time.Hour,
	}

	for _, opt := range opts {
		opt(config)
	}

	return config
}
