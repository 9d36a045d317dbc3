package crypto

import "github.com/go-errors/errors"

// Sentinel errors returned by this package. Never leak timing
// information about the secret material involved.
var (
	// ErrMalformedKey is returned when a key does not decode to the
	// expected length or encoding.
	ErrMalformedKey = errors.New("crypto: malformed key")

	// ErrInvalidSignature is returned when strict verification fails.
	ErrInvalidSignature = errors.New("crypto: invalid signature")
)
