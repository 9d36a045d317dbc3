package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/token"
	"github.com/molt-labs/molt-core/wire"
	"github.com/stretchr/testify/require"
)

func newTestWallet(t *testing.T) *identity.Wallet {
	t.Helper()
	w, err := identity.NewWallet()
	require.NoError(t, err)
	t.Cleanup(w.Destroy)
	return w
}

// fakeConn is an in-memory transport.Conn that never touches a real
// socket, used to exercise the agent's dispatch logic without the
// overhead of a websocket round trip. newPipe wires two of them
// together so each side's Send feeds the other's Receive.
type fakeConn struct {
	remote identity.PeerIdentity
	out    chan<- wire.Frame
	in     <-chan wire.Frame

	closeOnce sync.Once
	closed    chan struct{}
}

func newPipe(aliceIdentity, bobIdentity identity.PeerIdentity) (*fakeConn, *fakeConn) {
	aliceToBob := make(chan wire.Frame, 16)
	bobToAlice := make(chan wire.Frame, 16)

	alice := &fakeConn{remote: bobIdentity, out: aliceToBob, in: bobToAlice, closed: make(chan struct{})}
	bob := &fakeConn{remote: aliceIdentity, out: bobToAlice, in: aliceToBob, closed: make(chan struct{})}
	return alice, bob
}

func (c *fakeConn) Send(ctx context.Context, frame wire.Frame) error {
	select {
	case c.out <- frame:
		return nil
	case <-c.closed:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Receive(ctx context.Context) (wire.Frame, error) {
	select {
	case f := <-c.in:
		return f, nil
	case <-c.closed:
		return wire.Frame{}, ErrNotConnected
	case <-ctx.Done():
		return wire.Frame{}, ctx.Err()
	}
}

func (c *fakeConn) RemoteIdentity() identity.PeerIdentity { return c.remote }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// fakeLedger is an in-memory token.Ledger whose Lock and Settle calls
// are idempotent per TransactionRef, matching the real contract well
// enough to exercise the multi-peer signal-mirroring path in
// handleEscrowSignal.
type fakeLedger struct {
	mu      sync.Mutex
	locked  map[token.TransactionRef]bool
	settled map[token.TransactionRef]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		locked:  make(map[token.TransactionRef]bool),
		settled: make(map[token.TransactionRef]bool),
	}
}

func (l *fakeLedger) Lock(ctx context.Context, ref token.TransactionRef, payer identity.PeerIdentity, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked[ref] = true
	return nil
}

func (l *fakeLedger) Settle(ctx context.Context, ref token.TransactionRef, recipient identity.PeerIdentity, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settled[ref] = true
	return nil
}
