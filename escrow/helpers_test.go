package escrow

import (
	"context"
	"sync"
	"testing"

	"github.com/molt-labs/molt-core/attestation"
	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/token"
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

func newTestChallenge(t *testing.T) attestation.Challenge {
	t.Helper()
	c, err := attestation.NewChallenge()
	if err != nil {
		t.Fatalf("new challenge: %v", err)
	}
	return c
}

// fakeLedger is an in-memory token.Ledger test double that records
// every Lock/Settle call it sees, de-duplicating by ref the same way
// a real Ledger implementation must.
type fakeLedger struct {
	mu      sync.Mutex
	locked  map[token.TransactionRef]uint64
	settled map[token.TransactionRef]identity.PeerIdentity
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		locked:  make(map[token.TransactionRef]uint64),
		settled: make(map[token.TransactionRef]identity.PeerIdentity),
	}
}

func (f *fakeLedger) Lock(ctx context.Context, ref token.TransactionRef, payer identity.PeerIdentity, amount uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.locked[ref]; ok {
		return nil
	}
	f.locked[ref] = amount
	return nil
}

func (f *fakeLedger) Settle(ctx context.Context, ref token.TransactionRef, recipient identity.PeerIdentity, amount uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.settled[ref]; ok {
		return nil
	}
	f.settled[ref] = recipient
	return nil
}

func (f *fakeLedger) settledTo(ref token.TransactionRef) (identity.PeerIdentity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.settled[ref]
	return p, ok
}
