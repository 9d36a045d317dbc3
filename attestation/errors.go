package attestation

import "github.com/go-errors/errors"

// Sentinel errors per spec.md section 7's AttestationError taxonomy.
var (
	ErrExpired           = errors.New("attestation: expired")
	ErrChallengeMismatch = errors.New("attestation: challenge mismatch")
	ErrVerifierMismatch  = errors.New("attestation: verifier mismatch")
	ErrInvalidSignature  = errors.New("attestation: invalid signature")
)
