package crypto

import (
	stded25519 "crypto/ed25519"
	"crypto/subtle"

	"github.com/go-errors/errors"
)

// SigningKey is an Ed25519 private key. It lives only inside a wallet
// for its entire lifetime; see identity.Wallet.Destroy for scrubbing.
type SigningKey struct {
	raw stded25519.PrivateKey
}

// VerifyingKey is an Ed25519 public key, 32 bytes.
type VerifyingKey struct {
	raw stded25519.PublicKey
}

// GenerateKeypair draws key material from the operating system's
// cryptographic random source (never a thread-local or seeded PRNG,
// per spec.md section 4.1 / section 9).
func GenerateKeypair() (SigningKey, VerifyingKey, error) {
	pub, priv, err := stded25519.GenerateKey(nil)
	if err != nil {
		return SigningKey{}, VerifyingKey{}, errors.Errorf("generate keypair: %v", err)
	}
	return SigningKey{raw: priv}, VerifyingKey{raw: pub}, nil
}

// VerifyingKeyFromBytes parses a 32-byte Ed25519 public key.
func VerifyingKeyFromBytes(b []byte) (VerifyingKey, error) {
	if len(b) != stded25519.PublicKeySize {
		return VerifyingKey{}, ErrMalformedKey
	}
	cp := make([]byte, stded25519.PublicKeySize)
	copy(cp, b)
	return VerifyingKey{raw: cp}, nil
}

// Bytes returns the 32-byte encoding of the verifying key.
func (vk VerifyingKey) Bytes() []byte {
	out := make([]byte, len(vk.raw))
	copy(out, vk.raw)
	return out
}

// Equal reports byte equality of the two verifying keys. This is the
// only equality relation PeerIdentity uses (identity.PeerIdentity
// wraps VerifyingKey directly).
func (vk VerifyingKey) Equal(other VerifyingKey) bool {
	if len(vk.raw) != len(other.raw) {
		return false
	}
	return subtle.ConstantTimeCompare(vk.raw, other.raw) == 1
}

// IsZero reports whether the key was never populated.
func (vk VerifyingKey) IsZero() bool {
	return len(vk.raw) == 0
}

// Bytes returns the 64-byte encoding of the signing key. Callers that
// need to scrub key material (identity.Wallet.Destroy) operate on this
// slice directly; SigningKey itself holds no other copies.
func (sk SigningKey) Bytes() []byte {
	return sk.raw
}

// SigningKeyFromBytes parses a 64-byte Ed25519 private key, as used
// when restoring a wallet from sealed storage.
func SigningKeyFromBytes(b []byte) (SigningKey, error) {
	if len(b) != stded25519.PrivateKeySize {
		return SigningKey{}, ErrMalformedKey
	}
	cp := make([]byte, stded25519.PrivateKeySize)
	copy(cp, b)
	return SigningKey{raw: cp}, nil
}

// Public derives the verifying key from the signing key.
func (sk SigningKey) Public() VerifyingKey {
	pub := sk.raw.Public().(stded25519.PublicKey)
	return VerifyingKey{raw: pub}
}
