package attestation

import (
	"time"

	molcrypto "github.com/molt-labs/molt-core/crypto"
	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/wire"
)

// JobID identifies a single job order, a 128-bit value shared with
// escrow.ID.
type JobID [16]byte

// ExecutionPayload carries the result of running a job, per spec.md
// section 3.
type ExecutionPayload struct {
	JobID            JobID
	InputHash        [32]byte
	OutputHash       [32]byte
	CheckpointHash   [32]byte
	DurationSeconds  uint32
	GpuMetricsDigest [32]byte
}

func (p ExecutionPayload) encode() []byte {
	w := wire.NewWriter()
	w.WriteFixed(p.JobID[:])
	w.WriteFixed(p.InputHash[:])
	w.WriteFixed(p.OutputHash[:])
	w.WriteFixed(p.CheckpointHash[:])
	w.WriteUint32(p.DurationSeconds)
	w.WriteFixed(p.GpuMetricsDigest[:])
	return w.Bytes()
}

func (p ExecutionPayload) hash() [32]byte {
	return molcrypto.HashDomain(executionDomain, p.encode())
}

// ExecutionAttestation is a signed claim that Envelope.Signer executed
// the job named in Payload, with Payload.DurationSeconds of runtime,
// bound to the challenge issued at escrow funding.
type ExecutionAttestation struct {
	Envelope
	Payload ExecutionPayload
}

// IssueExecutionAttestation builds and signs an execution attestation.
func IssueExecutionAttestation(signer *identity.Wallet, payload ExecutionPayload,
	challenge Challenge, verifier identity.PeerIdentity, now time.Time,
	ttl time.Duration) ExecutionAttestation {

	expiresAt := now.Add(ttl)
	payloadHash := payload.hash()

	msg := signedMessage(signer.Identity(), now, expiresAt, challenge, verifier, payloadHash)
	sig := signer.Sign(executionDomain, msg)

	return ExecutionAttestation{
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

// VerifyExecutionAttestation checks att against the expected
// (challenge, verifier) pair and its own embedded signer key.
func VerifyExecutionAttestation(att ExecutionAttestation, expectedChallenge Challenge,
	expectedVerifier identity.PeerIdentity, now time.Time) error {

	if err := verifyEnvelope(att.Envelope, executionDomain, expectedChallenge, expectedVerifier, now); err != nil {
		return err
	}
	if att.Payload.hash() != att.PayloadHash {
		return ErrInvalidSignature
	}
	return nil
}

// Encode appends the full wire encoding of att, signature included,
// so it can travel as a wire.TypeAttestation payload.
func (att ExecutionAttestation) Encode(w *wire.Writer) {
	w.WriteBytes(att.Signer.Bytes())
	w.WriteInt64(att.Timestamp.Unix())
	w.WriteInt64(att.ExpiresAt.Unix())
	w.WriteFixed(att.Challenge[:])
	w.WriteBytes(att.Verifier.Bytes())
	w.WriteFixed(att.PayloadHash[:])
	w.WriteFixed(att.Signature.Bytes())
	w.WriteFixed(att.Payload.JobID[:])
	w.WriteFixed(att.Payload.InputHash[:])
	w.WriteFixed(att.Payload.OutputHash[:])
	w.WriteFixed(att.Payload.CheckpointHash[:])
	w.WriteUint32(att.Payload.DurationSeconds)
	w.WriteFixed(att.Payload.GpuMetricsDigest[:])
}

// DecodeExecutionAttestation parses bytes written by Encode. It does
// not call VerifyExecutionAttestation; callers that receive an
// attestation over the wire are responsible for verifying it against
// the challenge they actually issued before trusting its contents.
func DecodeExecutionAttestation(b []byte) (ExecutionAttestation, error) {
	r := wire.NewReader(b)
	signerBytes := r.ReadBytes(32)
	timestamp := r.ReadInt64()
	expiresAt := r.ReadInt64()
	challengeBytes := r.ReadFixed(32)
	verifierBytes := r.ReadBytes(32)
	payloadHashBytes := r.ReadFixed(32)
	sigBytes := r.ReadFixed(64)
	jobIDBytes := r.ReadFixed(16)
	inputHashBytes := r.ReadFixed(32)
	outputHashBytes := r.ReadFixed(32)
	checkpointHashBytes := r.ReadFixed(32)
	duration := r.ReadUint32()
	gpuDigestBytes := r.ReadFixed(32)
	if r.Err() != nil {
		return ExecutionAttestation{}, r.Err()
	}

	signer, err := identity.PeerIdentityFromBytes(signerBytes)
	if err != nil {
		return ExecutionAttestation{}, err
	}
	verifier, err := identity.PeerIdentityFromBytes(verifierBytes)
	if err != nil {
		return ExecutionAttestation{}, err
	}
	sig, err := molcrypto.SignatureFromBytes(sigBytes)
	if err != nil {
		return ExecutionAttestation{}, err
	}

	var challenge Challenge
	copy(challenge[:], challengeBytes)
	var payloadHash [32]byte
	copy(payloadHash[:], payloadHashBytes)
	var jobID JobID
	copy(jobID[:], jobIDBytes)
	var inputHash, outputHash, checkpointHash, gpuDigest [32]byte
	copy(inputHash[:], inputHashBytes)
	copy(outputHash[:], outputHashBytes)
	copy(checkpointHash[:], checkpointHashBytes)
	copy(gpuDigest[:], gpuDigestBytes)

	return ExecutionAttestation{
		Envelope: Envelope{
			Signer:      signer,
			Timestamp:   time.Unix(timestamp, 0).UTC(),
			ExpiresAt:   time.Unix(expiresAt, 0).UTC(),
			Challenge:   challenge,
			Verifier:    verifier,
			PayloadHash: payloadHash,
			Signature:   sig,
		},
		Payload: ExecutionPayload{
			JobID:            jobID,
			InputHash:        inputHash,
			OutputHash:       outputHash,
			CheckpointHash:   checkpointHash,
			DurationSeconds:  duration,
			GpuMetricsDigest: gpuDigest,
		},
	}, nil
}
