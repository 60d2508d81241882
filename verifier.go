package applex

import (
	"context"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier verifies "Sign in with Apple" identity tokens.
//
// Verification is a fail-fast pipeline: structural decode, claim
// validation (issuer, audience, expiry), signing key resolution, then
// signature verification. No step is retried; every rejection carries
// a stable *Error code.
type Verifier struct {
	cfg  Config
	keys *keyStore
}

// NewVerifier builds a verifier from the given configuration.
func NewVerifier(cfg Config) *Verifier {
	cfg.normalize()
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
		},
	}
	return &Verifier{
		cfg:  cfg,
		keys: newKeyStore(cfg.KeysURL, cfg.CacheTTL, httpClient),
	}
}

// Verify decodes and cryptographically verifies token, returning its
// claims only when every check passes. Rejections never panic on
// attacker-controlled input; callers should surface them to clients as
// a generic invalid-token failure.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	decoded, err := decodeToken(token)
	if err != nil {
		return nil, err
	}

	if err := validateClaims(decoded, v.cfg.Issuer, v.cfg.ClientID); err != nil {
		return nil, err
	}

	key, err := v.keys.resolveKey(ctx, decoded.header.Kid)
	if err != nil {
		return nil, newError(ErrCodeKeyUnavailable, err)
	}

	if err := jwt.SigningMethodRS256.Verify(decoded.signingInput(), decoded.signature, key); err != nil {
		return nil, newError(ErrCodeSignatureInvalid, err)
	}

	return normalizeClaims(decoded.claims), nil
}

// Authenticate verifies token and, on success, forwards the Apple
// identity to resolver. A rejected token returns no user and never
// reaches the resolver.
func (v *Verifier) Authenticate(ctx context.Context, token string, resolver UserResolver) (*User, error) {
	claims, err := v.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := resolver.FindOrCreateUser(ctx, SocialProfile{
		Provider:      "apple",
		SocialID:      claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return user, nil
}
