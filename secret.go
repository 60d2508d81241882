package applex

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	// Apple rejects client secrets valid for more than six months.
	maxSecretTTL     = 15777000 * time.Second
	defaultSecretTTL = time.Hour

	// Secrets are reminted this long before they expire.
	secretRefreshMargin = time.Minute
)

// SecretConfig describes how Apple client secrets should be minted.
// The private key is the ES256 key downloaded from the Apple developer
// portal (.p8 file), identified by KeyID.
type SecretConfig struct {
	TeamID     string
	KeyID      string
	ClientID   string
	PrivateKey *ecdsa.PrivateKey
	TTL        time.Duration
}

func (c *SecretConfig) normalize() {
	if c.TTL <= 0 {
		c.TTL = defaultSecretTTL
	}
	if c.TTL > maxSecretTTL {
		c.TTL = maxSecretTTL
	}
}

func (c SecretConfig) validate() error {
	switch {
	case c.TeamID == "":
		return errors.New("team ID is required")
	case c.KeyID == "":
		return errors.New("key ID is required")
	case c.ClientID == "":
		return errors.New("client ID is required")
	case c.PrivateKey == nil:
		return errors.New("private key is required")
	}
	return nil
}

// SecretSource mints the ES256-signed client secret Apple's token
// endpoint requires, reusing each secret until shortly before it
// expires.
type SecretSource struct {
	cfg SecretConfig

	mu     sync.Mutex
	cached string
	expiry time.Time
}

// NewSecretSource constructs a SecretSource from the supplied
// configuration.
func NewSecretSource(cfg SecretConfig) (*SecretSource, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &SecretSource{cfg: cfg}, nil
}

// Secret returns a client secret valid for at least secretRefreshMargin.
func (s *SecretSource) Secret() (string, error) {
	now := timeNow().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && now.Before(s.expiry.Add(-secretRefreshMargin)) {
		return s.cached, nil
	}

	expiry := now.Add(s.cfg.TTL)
	token, err := jwt.NewBuilder().
		Issuer(s.cfg.TeamID).
		Subject(s.cfg.ClientID).
		Audience([]string{AppleIssuer}).
		IssuedAt(now).
		Expiration(expiry).
		Build()
	if err != nil {
		return "", fmt.Errorf("build client secret claims: %w", err)
	}

	key, err := jwk.FromRaw(s.cfg.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("wrap signing key: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, s.cfg.KeyID); err != nil {
		return "", fmt.Errorf("set kid: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256, key))
	if err != nil {
		return "", fmt.Errorf("sign client secret: %w", err)
	}

	s.cached = string(signed)
	s.expiry = expiry
	return s.cached, nil
}

// ParsePrivateKey reads an ES256 private key from the PEM contents of
// an Apple-issued .p8 file.
func ParsePrivateKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse PKCS#8 key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type %T, want *ecdsa.PrivateKey", parsed)
	}
	return key, nil
}
