package jwt

import "errors"

// Supported signing algorithms.
const (
	AlgHS256 = "HS256"
	AlgHS384 = "HS384"
	AlgHS512 = "HS512"
)

// Sentinel errors for token verification.
var (
	// ErrEmptyToken indicates that the token is empty.
	ErrEmptyToken = errors.New("token is empty")

	// ErrTokenExpired indicates that the token has expired.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenNotYetValid indicates that the token is not yet valid.
	ErrTokenNotYetValid = errors.New("token is not yet valid")

	// ErrTokenInvalid indicates a malformed token or a bad signature.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrTokenMissingClaim indicates that a required claim is missing.
	ErrTokenMissingClaim = errors.New("required claim is missing")

	// ErrUnsupportedAlgorithm indicates that the signing algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.New("signing algorithm is not supported")

	// ErrInvalidKey indicates that the signing key is invalid.
	ErrInvalidKey = errors.New("signing key is invalid")
)
