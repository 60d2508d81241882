package applex

import (
	"errors"
	"fmt"
	"time"
)

// timeNow is swapped out by tests that need a fixed clock.
var timeNow = time.Now

// validateClaims enforces the claim invariants before any network or
// cryptographic work. Check order is fixed: key binding, issuer,
// audience, expiry. Expiry is a strict second-resolution comparison
// with no leeway.
func validateClaims(token *compactToken, issuer, clientID string) error {
	if token.header.Alg == "" || token.header.Kid == "" {
		return newError(ErrCodeMissingKeyBinding, errors.New("header missing alg or kid"))
	}

	if token.claims.Issuer == "" || token.claims.Issuer != issuer {
		return newError(ErrCodeIssuerMismatch, fmt.Errorf("issuer %q, want %q", token.claims.Issuer, issuer))
	}

	// An unconfigured client ID fails closed here rather than letting
	// tokens through unchecked.
	if clientID == "" || token.claims.Audience != clientID {
		return newError(ErrCodeAudienceMismatch, fmt.Errorf("audience %q not accepted", token.claims.Audience))
	}

	if token.claims.ExpiresAt == 0 || token.claims.ExpiresAt < timeNow().Unix() {
		return newError(ErrCodeTokenExpired, fmt.Errorf("token expired at %d", token.claims.ExpiresAt))
	}

	return nil
}
