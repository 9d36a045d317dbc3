// Package attestation implements the hardware and execution
// attestation schemes of spec.md section 4.3: signed records binding a
// claim to a specific (challenge, verifier) pair so they cannot be
// replayed outside the exchange they were issued for.
//
// Grounded on discovery/validation.go's DataToSign-then-hash-then-verify
// structure (backend-engineer1-land), generalized with the
// challenge/verifier binding spec.md requires.
package attestation

import (
	"time"

	molcrypto "github.com/molt-labs/molt-core/crypto"
	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/wire"
)

const (
	hardwareDomain  = "hardware_attestation_v2"
	executionDomain = "execution_attestation_v1"
)

// Challenge is 32 random bytes issued by a verifier and bound into the
// signed payload to prevent replay.
type Challenge [32]byte

// NewChallenge draws a fresh challenge from the OS random source.
func NewChallenge() (Challenge, error) {
	b, err := molcrypto.SecureRandomBytes(32)
	if err != nil {
		return Challenge{}, err
	}
	var c Challenge
	copy(c[:], b)
	return c, nil
}

// Envelope is the common shape shared by hardware and execution
// attestations: {signer, timestamp, expires_at, challenge, verifier,
// payload_hash, signature}, per spec.md section 3.
type Envelope struct {
	Signer      identity.PeerIdentity
	Timestamp   time.Time
	ExpiresAt   time.Time
	Challenge   Challenge
	Verifier    identity.PeerIdentity
	PayloadHash [32]byte
	Signature   molcrypto.Signature
}

// signedMessage returns the canonical bytes the envelope's signature
// covers: every field except the signature itself, in fixed order.
// Binding payloadHash here (rather than the raw payload) lets the
// envelope's signature attest to an arbitrarily large payload without
// growing the signed message.
func signedMessage(signer identity.PeerIdentity, timestamp, expiresAt time.Time,
	challenge Challenge, verifier identity.PeerIdentity, payloadHash [32]byte) []byte {

	w := wire.NewWriter()
	w.WriteBytes(signer.Bytes())
	w.WriteInt64(timestamp.Unix())
	w.WriteInt64(expiresAt.Unix())
	w.WriteFixed(challenge[:])
	w.WriteBytes(verifier.Bytes())
	w.WriteFixed(payloadHash[:])
	return w.Bytes()
}

// verifyEnvelope runs the checks common to both attestation kinds:
// expiry, challenge binding, verifier binding, then strict signature
// verification, in that order (spec.md section 4.3 lists failures in
// this priority).
func verifyEnvelope(env Envelope, domain string, expectedChallenge Challenge,
	expectedVerifier identity.PeerIdentity, now time.Time) error {

	if !now.Before(env.ExpiresAt) {
		return ErrExpired
	}
	if env.Challenge != expectedChallenge {
		return ErrChallengeMismatch
	}
	if !env.Verifier.Equal(expectedVerifier) {
		return ErrVerifierMismatch
	}

	msg := signedMessage(env.Signer, env.Timestamp, env.ExpiresAt, env.Challenge,
		env.Verifier, env.PayloadHash)

	if err := molcrypto.VerifyStrict(env.Signer.VerifyingKey(), domain, msg, env.Signature); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
