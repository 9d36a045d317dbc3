package attestation

import (
	"time"

	molcrypto "github.com/molt-labs/molt-core/crypto"
	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/molttypes"
	"github.com/molt-labs/molt-core/wire"
)

// HardwarePayload carries the peer's GPU descriptors, per spec.md
// section 3.
type HardwarePayload struct {
	Gpus []molttypes.GpuDescriptor
}

func (p HardwarePayload) encode() []byte {
	w := wire.NewWriter()
	molttypes.WriteGpuList(w, p.Gpus)
	return w.Bytes()
}

func (p HardwarePayload) hash() [32]byte {
	return molcrypto.HashDomain(hardwareDomain, p.encode())
}

// HardwareAttestation is a signed claim that Envelope.Signer possesses
// the GPUs in Payload.
type HardwareAttestation struct {
	Envelope
	Payload HardwarePayload
}

// IssueHardwareAttestation builds and signs a hardware attestation
// using signer's wallet, bound to challenge and verifier.
func IssueHardwareAttestation(signer *identity.Wallet, payload HardwarePayload,
	challenge Challenge, verifier identity.PeerIdentity, now time.Time,
	ttl time.Duration) HardwareAttestation {

	expiresAt := now.Add(ttl)
	payloadHash := payload.hash()

	msg := signedMessage(signer.Identity(), now, expiresAt, challenge, verifier, payloadHash)
	sig := signer.Sign(hardwareDomain, msg)

	return HardwareAttestation{
		Envelope: Envelope{
			Signer:      signer.Identity(),
			Timestamp:   now,
			ExpiresAt:   expiresAt,
			Challenge:   challenge,
			Verifier:    verifier,
			PayloadHash: payloadHash,
			Signature:   sig,
		},
		Payload: payload,
	}
}

// VerifyHardwareAttestation checks att against the expected
// (challenge, verifier) pair and its own embedded signer key, per
// spec.md section 4.3.
func VerifyHardwareAttestation(att HardwareAttestation, expectedChallenge Challenge,
	expectedVerifier identity.PeerIdentity, now time.Time) error {

	if err := verifyEnvelope(att.Envelope, hardwareDomain, expectedChallenge, expectedVerifier, now); err != nil {
		return err
	}
	if att.Payload.hash() != att.PayloadHash {
		return ErrInvalidSignature
	}
	return nil
}
