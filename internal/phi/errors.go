package phi

import "errors"

var (
	// ErrMissingKey is returned when a cipher is constructed without key
	// material. There is no built-in fallback key.
	ErrMissingKey = errors.New("phi: missing key material")

	// ErrMalformedBlob is returned when a stored blob cannot be decoded
	// into nonce, tag and ciphertext.
	ErrMalformedBlob = errors.New("phi: malformed blob")

	// ErrIntegrityFailure is returned when authentication of a blob fails.
	// It deliberately carries no detail about which part failed.
	ErrIntegrityFailure = errors.New("phi: integrity check failed")
)
