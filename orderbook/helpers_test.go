package orderbook

import (
	"testing"
	"time"

	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/molttypes"
)

func newTestWallet(t *testing.T) *identity.Wallet {
	t.Helper()
	w, err := identity.NewWallet()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	t.Cleanup(w.Destroy)
	return w
}

func baseAnnouncement(t *testing.T, w *identity.Wallet, now time.Time, sequence uint64) CapacityAnnouncement {
	t.Helper()
	ann := CapacityAnnouncement{
		Peer: w.Identity(),
		Gpus: []molttypes.GpuDescriptor{
			{Model: "H100", VramGB: 80, Index: 0},
			{Model: "H100", VramGB: 80, Index: 1},
		},
		PricePerHour:   10,
		AvailableHours: 48,
		Features:       molttypes.NewFeatureSet(),
		IssuedAt:       now,
		ExpiresAt:      now.Add(time.Hour),
		Sequence:       sequence,
	}
	ann.Sign(w)
	return ann
}
