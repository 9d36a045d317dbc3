package crypto

import (
	"crypto/rand"

	"github.com/go-errors/errors"
)

// SecureRandomBytes returns n cryptographically secure random bytes
// drawn from the operating system source. Used for escrow attestation
// challenges (GenerateKeypair draws from crypto/ed25519's own OS-backed
// source instead); nothing else is permitted to substitute a seeded
// PRNG for this call (spec.md section 9).
func SecureRandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Errorf("secure random bytes: %v", err)
	}
	return buf, nil
}
