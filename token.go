package applex

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// compactToken holds the decoded parts of an identity token alongside
// the raw segments, which the signature check needs byte-exact.
type compactToken struct {
	header    TokenHeader
	claims    TokenClaims
	signature []byte

	// headerSegment + "." + claimsSegment is the signing input.
	headerSegment string
	claimsSegment string
}

func (t *compactToken) signingInput() string {
	return t.headerSegment + "." + t.claimsSegment
}

// decodeToken splits and decodes a compact token without verifying
// anything. Purely structural; every failure maps to
// ErrCodeMalformedToken.
func decodeToken(token string) (*compactToken, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, newError(ErrCodeMalformedToken, fmt.Errorf("expected 3 segments, got %d", len(parts)))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, newError(ErrCodeMalformedToken, fmt.Errorf("decode header segment: %w", err))
	}
	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, newError(ErrCodeMalformedToken, fmt.Errorf("decode claims segment: %w", err))
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, newError(ErrCodeMalformedToken, fmt.Errorf("decode signature segment: %w", err))
	}

	decoded := &compactToken{
		signature:     signature,
		headerSegment: parts[0],
		claimsSegment: parts[1],
	}
	if err := unmarshalObject(headerJSON, &decoded.header); err != nil {
		return nil, newError(ErrCodeMalformedToken, fmt.Errorf("decode header: %w", err))
	}
	if err := unmarshalObject(claimsJSON, &decoded.claims); err != nil {
		return nil, newError(ErrCodeMalformedToken, fmt.Errorf("decode claims: %w", err))
	}
	return decoded, nil
}

// unmarshalObject rejects non-object JSON (null, arrays, scalars) that
// json.Unmarshal would otherwise tolerate.
func unmarshalObject(data []byte, v any) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("segment is not a JSON object")
	}
	return json.Unmarshal(data, v)
}
