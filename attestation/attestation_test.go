package attestation

import (
	"testing"
	"time"

	"github.com/molt-labs/molt-core/molttypes"
	"github.com/stretchr/testify/require"
)

func TestHardwareAttestationVerifyHappyPath(t *testing.T) {
	provider := newTestWallet(t)
	verifier := newTestWallet(t)

	challenge, err := NewChallenge()
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	payload := HardwarePayload{Gpus: []molttypes.GpuDescriptor{{Model: "H100", VramGB: 80, Index: 0}}}

	att := IssueHardwareAttestation(provider, payload, challenge, verifier.Identity(), now, time.Hour)

	err = VerifyHardwareAttestation(att, challenge, verifier.Identity(), now.Add(time.Minute))
	require.NoError(t, err)
}

func TestHardwareAttestationExpired(t *testing.T) {
	provider := newTestWallet(t)
	verifier := newTestWallet(t)
	challenge, _ := NewChallenge()

	now := time.Unix(1_700_000_000, 0)
	att := IssueHardwareAttestation(provider, HardwarePayload{}, challenge, verifier.Identity(), now, time.Hour)

	err := VerifyHardwareAttestation(att, challenge, verifier.Identity(), now.Add(2*time.Hour))
	require.ErrorIs(t, err, ErrExpired)
}

func TestExecutionAttestationReplayResistance(t *testing.T) {
	// P7: an attestation issued for (challenge X, verifier V) fails
	// verify against any (X', V') differing in either coordinate.
	provider := newTestWallet(t)
	buyer := newTestWallet(t)
	otherBuyer := newTestWallet(t)

	challengeX, _ := NewChallenge()
	challengeY, _ := NewChallenge()

	now := time.Unix(1_700_000_000, 0)
	payload := ExecutionPayload{DurationSeconds: 3600}
	att := IssueExecutionAttestation(provider, payload, challengeX, buyer.Identity(), now, time.Hour)

	// Wrong verifier, same challenge.
	err := VerifyExecutionAttestation(att, challengeX, otherBuyer.Identity(), now)
	require.ErrorIs(t, err, ErrVerifierMismatch)

	// Right verifier, wrong challenge (the replay scenario of spec.md
	// section 8 scenario 2: attacker replays to a different buyer who
	// issued a different challenge).
	err = VerifyExecutionAttestation(att, challengeY, buyer.Identity(), now)
	require.ErrorIs(t, err, ErrChallengeMismatch)

	// Both wrong.
	err = VerifyExecutionAttestation(att, challengeY, otherBuyer.Identity(), now)
	require.Error(t, err)

	// Original pair still verifies.
	err = VerifyExecutionAttestation(att, challengeX, buyer.Identity(), now)
	require.NoError(t, err)
}

func TestExecutionAttestationTamperedPayloadFailsSignature(t *testing.T) {
	provider := newTestWallet(t)
	verifier := newTestWallet(t)
	challenge, _ := NewChallenge()
	now := time.Unix(1_700_000_000, 0)

	att := IssueExecutionAttestation(provider, ExecutionPayload{DurationSeconds: 60}, challenge,
		verifier.Identity(), now, time.Hour)

	att.Payload.DurationSeconds = 999999

	err := VerifyExecutionAttestation(att, challenge, verifier.Identity(), now)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTrustScoreDecayHasNonzeroFloor(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	history := []Record{
		{Passed: true, At: now.Add(-365 * 24 * time.Hour)},
	}
	score := TrustScore(history, now)
	require.Greater(t, score, 0.0)
}

func TestTrustScoreAllFailuresIsZero(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	history := []Record{
		{Passed: false, At: now},
		{Passed: false, At: now.Add(-time.Hour)},
	}
	require.Equal(t, 0.0, TrustScore(history, now))
}

func TestTrustScoreRecentPassWeighsMoreThanOldPass(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	recent := TrustScore([]Record{{Passed: true, At: now}, {Passed: false, At: now.Add(-365 * 24 * time.Hour)}}, now)
	old := TrustScore([]Record{{Passed: false, At: now}, {Passed: true, At: now.Add(-365 * 24 * time.Hour)}}, now)
	require.Greater(t, recent, old)
}
