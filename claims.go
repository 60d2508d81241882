package applex

import (
	"encoding/json"
	"fmt"
	"time"
)

// TokenHeader carries the unverified JOSE header of an Apple identity
// token. Alg and Kid are both required before any key lookup happens.
type TokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ,omitempty"`
}

// TokenClaims is the claim set of an Apple identity token, produced by
// decoding the second token segment. It lives only for the duration of
// a single verification call and is never cached.
type TokenClaims struct {
	Subject        string       `json:"sub"`
	Issuer         string       `json:"iss"`
	Audience       string       `json:"aud"`
	ExpiresAt      int64        `json:"exp"`
	IssuedAt       int64        `json:"iat"`
	Email          string       `json:"email,omitempty"`
	EmailVerified  tolerantBool `json:"email_verified,omitempty"`
	IsPrivateEmail tolerantBool `json:"is_private_email,omitempty"`
}

// Claims represents verified, normalized Apple identity claims handed
// back to callers after a successful verification.
type Claims struct {
	Subject        string
	Issuer         string
	Audience       string
	ExpiresAt      time.Time
	IssuedAt       time.Time
	Email          string
	EmailVerified  bool
	IsPrivateEmail bool
}

func normalizeClaims(tc TokenClaims) *Claims {
	claims := &Claims{
		Subject:        tc.Subject,
		Issuer:         tc.Issuer,
		Audience:       tc.Audience,
		Email:          tc.Email,
		EmailVerified:  bool(tc.EmailVerified),
		IsPrivateEmail: bool(tc.IsPrivateEmail),
	}
	if tc.ExpiresAt != 0 {
		claims.ExpiresAt = time.Unix(tc.ExpiresAt, 0).UTC()
	}
	if tc.IssuedAt != 0 {
		claims.IssuedAt = time.Unix(tc.IssuedAt, 0).UTC()
	}
	return claims
}

// tolerantBool accepts the JSON encodings Apple has used for boolean
// claims over time: true, "true", false, "false".
type tolerantBool bool

func (b *tolerantBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case bool:
		*b = tolerantBool(value)
	case string:
		switch value {
		case "true":
			*b = true
		case "false":
			*b = false
		default:
			return fmt.Errorf("invalid boolean claim %q", value)
		}
	default:
		return fmt.Errorf("invalid boolean claim of type %T", v)
	}
	return nil
}
