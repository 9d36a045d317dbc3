package gossip

import (
	"sync"
	"testing"
	"time"

	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/molttypes"
	"github.com/molt-labs/molt-core/orderbook"
	"github.com/molt-labs/molt-core/wire"
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

func baseAnnouncement(t *testing.T, w *identity.Wallet, now time.Time, sequence uint64) orderbook.CapacityAnnouncement {
	t.Helper()
	ann := orderbook.CapacityAnnouncement{
		Peer: w.Identity(),
		Gpus: []molttypes.GpuDescriptor{
			{Model: "H100", VramGB: 80, Index: 0},
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

// fakeDirectory is an in-memory PeerDirectory test double recording
// every frame handed to Send and every peer handed to Disconnect.
type fakeDirectory struct {
	mu           sync.Mutex
	peers        []identity.PeerIdentity
	sent         map[string][]wire.Frame
	disconnected map[string]bool
}

func newFakeDirectory(peers ...identity.PeerIdentity) *fakeDirectory {
	return &fakeDirectory{
		peers:        peers,
		sent:         make(map[string][]wire.Frame),
		disconnected: make(map[string]bool),
	}
}

func (f *fakeDirectory) ConnectedPeers() []identity.PeerIdentity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]identity.PeerIdentity, len(f.peers))
	copy(out, f.peers)
	return out
}

func (f *fakeDirectory) Send(peer identity.PeerIdentity, frame wire.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[peerKey(peer)] = append(f.sent[peerKey(peer)], frame)
	return nil
}

func (f *fakeDirectory) Disconnect(peer identity.PeerIdentity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected[peerKey(peer)] = true
}

func (f *fakeDirectory) sentTo(peer identity.PeerIdentity) []wire.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[peerKey(peer)]
}

func (f *fakeDirectory) sentToCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, frames := range f.sent {
		n += len(frames)
	}
	return n
}

func (f *fakeDirectory) wasDisconnected(peer identity.PeerIdentity) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected[peerKey(peer)]
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }
