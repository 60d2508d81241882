package applex

// DevBypassClaims holds attributes used when issuing synthetic claims in dev mode.
type DevBypassClaims struct {
	Subject string
	Email   string
}

// ToCallerIdentity converts the dev bypass configuration into a caller
// identity, flagged so downstream consumers can tell it apart from a
// verified token.
func (d DevBypassClaims) ToCallerIdentity() CallerIdentity {
	claims := &Claims{
		Subject:       d.Subject,
		Issuer:        "applex.dev",
		Email:         d.Email,
		EmailVerified: d.Email != "",
	}
	return CallerIdentity{
		Claims:    claims,
		DevBypass: true,
	}
}

// DefaultDevBypassClaims returns a baseline identity suitable for
// local development.
func DefaultDevBypassClaims() DevBypassClaims {
	return DevBypassClaims{
		Subject: "000000.devbypass.0000",
		Email:   "dev@example.com",
	}
}
