package applex

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
)

// applePublicKey is one entry of Apple's published key set: an RSA
// public key in JWK form with base64url big-endian modulus and
// exponent.
type applePublicKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type appleKeySet struct {
	Keys []applePublicKey `json:"keys"`
}

// rsaPublicKey constructs a usable *rsa.PublicKey from the descriptor.
// Apple publishes RSA keys only; any other kty, and any malformed
// field, surfaces ErrKeyConversionFailed rather than a panic.
func (k applePublicKey) rsaPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("%w: unsupported kty %q", ErrKeyConversionFailed, k.Kty)
	}
	n, err := decodeBigInt(k.N)
	if err != nil {
		return nil, fmt.Errorf("%w: modulus: %v", ErrKeyConversionFailed, err)
	}
	e, err := decodeBigInt(k.E)
	if err != nil {
		return nil, fmt.Errorf("%w: exponent: %v", ErrKeyConversionFailed, err)
	}
	if !e.IsInt64() || e.Int64() > math.MaxInt32 || e.Int64() < 2 {
		return nil, fmt.Errorf("%w: exponent out of range", ErrKeyConversionFailed)
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func decodeBigInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("empty base64url value")
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}
