package crypto

import (
	stded25519 "crypto/ed25519"
)

// Signature is a 64-byte Ed25519 signature.
type Signature struct {
	raw [stded25519.SignatureSize]byte
}

// Bytes returns the 64-byte encoding of the signature.
func (s Signature) Bytes() []byte {
	out := make([]byte, len(s.raw))
	copy(out, s.raw[:])
	return out
}

// SignatureFromBytes parses a 64-byte signature.
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != stded25519.SignatureSize {
		return Signature{}, ErrMalformedKey
	}
	var sig Signature
	copy(sig.raw[:], b)
	return sig, nil
}

// Sign signs message under the given domain separation tag and
// returns a Signature. The domain tag is hashed together with the
// message by HashDomain before signing, so the signed bytes can never
// be replayed as a message under a different domain (spec.md section 4.1).
func Sign(key SigningKey, domain string, message []byte) Signature {
	digest := HashDomain(domain, message)
	raw := stded25519.Sign(key.raw, digest[:])

	var sig Signature
	copy(sig.raw[:], raw)
	return sig
}

// VerifyStrict verifies sig over message under domain using vk. Ed25519
// as implemented by the Go standard library already rejects
// non-canonical signature encodings and small-order points, which is
// the "strict" variant spec.md section 4.1 and section 9 require: it never
// admits a second valid signature for the same message under malleable
// encodings.
func VerifyStrict(vk VerifyingKey, domain string, message []byte, sig Signature) error {
	if vk.IsZero() {
		return ErrMalformedKey
	}
	digest := HashDomain(domain, message)
	if !stded25519.Verify(vk.raw, digest[:], sig.raw[:]) {
		return ErrInvalidSignature
	}
	return nil
}
