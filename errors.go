package applex

import (
	"errors"
	"fmt"
)

// ErrorCode represents verification error categories.
type ErrorCode string

const (
	ErrCodeMalformedToken    ErrorCode = "malformed_token"
	ErrCodeMissingKeyBinding ErrorCode = "missing_key_binding"
	ErrCodeIssuerMismatch    ErrorCode = "issuer_mismatch"
	ErrCodeAudienceMismatch  ErrorCode = "audience_mismatch"
	ErrCodeTokenExpired      ErrorCode = "token_expired"
	ErrCodeKeyUnavailable    ErrorCode = "key_unavailable"
	ErrCodeSignatureInvalid  ErrorCode = "signature_invalid"
)

// Causes surfaced by the key store underneath ErrCodeKeyUnavailable.
// Reachable from a wrapped *Error via errors.Is.
var (
	ErrKeyNotFound         = errors.New("signing key not found for kid")
	ErrKeyFetchFailed      = errors.New("signing key fetch failed")
	ErrKeyConversionFailed = errors.New("signing key conversion failed")
)

var errorMessages = map[ErrorCode]string{
	ErrCodeMalformedToken:    "Malformed token",
	ErrCodeMissingKeyBinding: "Token header missing key binding",
	ErrCodeIssuerMismatch:    "Issuer mismatch",
	ErrCodeAudienceMismatch:  "Audience mismatch",
	ErrCodeTokenExpired:      "Token expired",
	ErrCodeKeyUnavailable:    "Signing key unavailable",
	ErrCodeSignatureInvalid:  "Invalid signature",
}

// Error wraps verification errors with a stable code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the error code from err, or an empty code if err was
// not produced by this package.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}
