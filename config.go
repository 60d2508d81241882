package applex

import (
	"os"
	"time"
)

const (
	// AppleIssuer is the canonical issuer of Apple identity tokens.
	// Compared with strict string equality, no normalization.
	AppleIssuer = "https://appleid.apple.com"

	// AppleKeysURL is Apple's well-known signing key publication endpoint.
	AppleKeysURL = "https://appleid.apple.com/auth/keys"

	defaultCacheTTL    = time.Hour
	defaultHTTPTimeout = 5 * time.Second
)

// Config contains verification parameters for Apple identity tokens.
type Config struct {
	// ClientID is the expected audience (the app's Apple client
	// identifier). An empty ClientID is tolerated at construction and
	// makes every verification fail with ErrCodeAudienceMismatch.
	ClientID string

	// Issuer overrides the expected issuer. Defaults to AppleIssuer.
	Issuer string

	// KeysURL overrides the key publication endpoint. Defaults to
	// AppleKeysURL.
	KeysURL string

	// CacheTTL bounds how long fetched signing keys are reused.
	// Defaults to one hour.
	CacheTTL time.Duration

	// HTTPTimeout applies to each key fetch. Defaults to 5s.
	HTTPTimeout time.Duration
}

// normalize sets default values for optional fields.
func (c *Config) normalize() {
	if c.Issuer == "" {
		c.Issuer = AppleIssuer
	}
	if c.KeysURL == "" {
		c.KeysURL = AppleKeysURL
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
}

// ConfigFromEnv builds a Config from process environment variables.
// APPLE_CLIENT_ID carries the expected audience; a missing value is
// not an error here, verification fails closed instead.
func ConfigFromEnv() Config {
	cfg := Config{
		ClientID: os.Getenv("APPLE_CLIENT_ID"),
		KeysURL:  os.Getenv("APPLE_KEYS_URL"),
	}
	if timeout := os.Getenv("APPLE_HTTP_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.HTTPTimeout = d
		}
	}
	return cfg
}
