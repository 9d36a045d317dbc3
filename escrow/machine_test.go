package escrow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFundRequiresBuyerCaller(t *testing.T) {
	buyer, provider, arbiter := newTestWallet(t), newTestWallet(t), newTestWallet(t)
	now := time.Now()
	ledger := newFakeLedger()
	m := NewMachine(ledger)

	acct := m.Open(buyer.Identity(), provider.Identity(), arbiter.Identity(), 1000, 250, newTestChallenge(t), now.Add(time.Hour), now)

	err := m.Fund(context.Background(), acct.ID, provider.Identity(), now)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, m.Fund(context.Background(), acct.ID, buyer.Identity(), now))

	got, err := m.Get(acct.ID)
	require.NoError(t, err)
	require.Equal(t, StateFunded, got.State)
}

func TestFundRejectsDoubleFund(t *testing.T) {
	buyer, provider, arbiter := newTestWallet(t), newTestWallet(t), newTestWallet(t)
	now := time.Now()
	m := NewMachine(newFakeLedger())
	acct := m.Open(buyer.Identity(), provider.Identity(), arbiter.Identity(), 1000, 250, newTestChallenge(t), now.Add(time.Hour), now)

	require.NoError(t, m.Fund(context.Background(), acct.ID, buyer.Identity(), now))
	err := m.Fund(context.Background(), acct.ID, buyer.Identity(), now)
	require.ErrorIs(t, err, ErrAlreadyFunded)
}

func TestReleaseRequiresBuyerOrArbiterCaller(t *testing.T) {
	buyer, provider, arbiter := newTestWallet(t), newTestWallet(t), newTestWallet(t)
	now := time.Now()
	ledger := newFakeLedger()
	m := NewMachine(ledger)
	acct := m.Open(buyer.Identity(), provider.Identity(), arbiter.Identity(), 1000, 250, newTestChallenge(t), now.Add(time.Hour), now)
	require.NoError(t, m.Fund(context.Background(), acct.ID, buyer.Identity(), now))

	err := m.Release(context.Background(), acct.ID, provider.Identity(), now)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, m.Release(context.Background(), acct.ID, arbiter.Identity(), now))
	recipient, ok := ledger.settledTo(ref(acct.ID))
	require.True(t, ok)
	require.True(t, recipient.Equal(provider.Identity()))
}

func TestRefundRejectsBeforeLockedUntil(t *testing.T) {
	buyer, provider, arbiter := newTestWallet(t), newTestWallet(t), newTestWallet(t)
	now := time.Now()
	m := NewMachine(newFakeLedger())
	acct := m.Open(buyer.Identity(), provider.Identity(), arbiter.Identity(), 1000, 250, newTestChallenge(t), now.Add(time.Hour), now)
	require.NoError(t, m.Fund(context.Background(), acct.ID, buyer.Identity(), now))

	err := m.Refund(context.Background(), acct.ID, buyer.Identity(), now)
	require.ErrorIs(t, err, ErrNotYetUnlocked)

	require.NoError(t, m.Refund(context.Background(), acct.ID, buyer.Identity(), now.Add(2*time.Hour)))
	got, err := m.Get(acct.ID)
	require.NoError(t, err)
	require.Equal(t, StateRefunded, got.State)
}

func TestRefundAllowsProviderOrArbiterBeforeLockedUntil(t *testing.T) {
	// spec.md section 4.5: the provider or the arbiter may refund a
	// funded escrow early, e.g. a provider voluntarily returning funds
	// it cannot honor.
	buyer, provider, arbiter := newTestWallet(t), newTestWallet(t), newTestWallet(t)
	now := time.Now()
	ledger := newFakeLedger()
	m := NewMachine(ledger)
	acct := m.Open(buyer.Identity(), provider.Identity(), arbiter.Identity(), 1000, 250, newTestChallenge(t), now.Add(time.Hour), now)
	require.NoError(t, m.Fund(context.Background(), acct.ID, buyer.Identity(), now))

	require.NoError(t, m.Refund(context.Background(), acct.ID, provider.Identity(), now))
	recipient, ok := ledger.settledTo(ref(acct.ID))
	require.True(t, ok)
	require.True(t, recipient.Equal(buyer.Identity()))
}

func TestRefundAnyCallerAfterTimeout(t *testing.T) {
	// spec.md section 4.5 liveness: any caller, not just the buyer, may
	// trigger a refund once locked_until has passed.
	buyer, provider, arbiter := newTestWallet(t), newTestWallet(t), newTestWallet(t)
	stranger := newTestWallet(t)
	now := time.Now()
	ledger := newFakeLedger()
	m := NewMachine(ledger)
	acct := m.Open(buyer.Identity(), provider.Identity(), arbiter.Identity(), 1000, 250, newTestChallenge(t), now.Add(time.Minute), now)
	require.NoError(t, m.Fund(context.Background(), acct.ID, buyer.Identity(), now))

	require.NoError(t, m.Refund(context.Background(), acct.ID, stranger.Identity(), now.Add(time.Hour)))
	recipient, ok := ledger.settledTo(ref(acct.ID))
	require.True(t, ok)
	require.True(t, recipient.Equal(buyer.Identity()))
}

func TestDisputeRequiresBuyerOrProvider(t *testing.T) {
	buyer, provider, arbiter := newTestWallet(t), newTestWallet(t), newTestWallet(t)
	stranger := newTestWallet(t)
	now := time.Now()
	m := NewMachine(newFakeLedger())
	acct := m.Open(buyer.Identity(), provider.Identity(), arbiter.Identity(), 1000, 250, newTestChallenge(t), now.Add(time.Hour), now)
	require.NoError(t, m.Fund(context.Background(), acct.ID, buyer.Identity(), now))

	err := m.Dispute(acct.ID, stranger.Identity(), now)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, m.Dispute(acct.ID, provider.Identity(), now))
	got, err := m.Get(acct.ID)
	require.NoError(t, err)
	require.Equal(t, StateDisputed, got.State)
}

func TestResolveRequiresArbiterCaller(t *testing.T) {
	buyer, provider, arbiter := newTestWallet(t), newTestWallet(t), newTestWallet(t)
	now := time.Now()
	ledger := newFakeLedger()
	m := NewMachine(ledger)
	acct := m.Open(buyer.Identity(), provider.Identity(), arbiter.Identity(), 1000, 250, newTestChallenge(t), now.Add(time.Hour), now)
	require.NoError(t, m.Fund(context.Background(), acct.ID, buyer.Identity(), now))
	require.NoError(t, m.Dispute(acct.ID, buyer.Identity(), now))

	err := m.Resolve(context.Background(), acct.ID, buyer.Identity(), true, now)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, m.Resolve(context.Background(), acct.ID, arbiter.Identity(), true, now))
	recipient, ok := ledger.settledTo(ref(acct.ID))
	require.True(t, ok)
	require.True(t, recipient.Equal(provider.Identity()))
}

func TestReleaseRejectedOnceDisputed(t *testing.T) {
	buyer, provider, arbiter := newTestWallet(t), newTestWallet(t), newTestWallet(t)
	now := time.Now()
	m := NewMachine(newFakeLedger())
	acct := m.Open(buyer.Identity(), provider.Identity(), arbiter.Identity(), 1000, 250, newTestChallenge(t), now.Add(time.Hour), now)
	require.NoError(t, m.Fund(context.Background(), acct.ID, buyer.Identity(), now))
	require.NoError(t, m.Dispute(acct.ID, buyer.Identity(), now))

	err := m.Release(context.Background(), acct.ID, buyer.Identity(), now)
	var transitionErr *InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)
}

func TestFundLockIsIdempotentAcrossLedgerRetries(t *testing.T) {
	buyer, provider, arbiter := newTestWallet(t), newTestWallet(t), newTestWallet(t)
	now := time.Now()
	ledger := newFakeLedger()

	// Simulate a caller that calls Lock directly twice with the same
	// ref, as Machine.Fund's ledger call might be retried after a
	// transient failure.
	id := NewID()
	require.NoError(t, ledger.Lock(context.Background(), ref(id), buyer.Identity(), 500))
	require.NoError(t, ledger.Lock(context.Background(), ref(id), buyer.Identity(), 999))
	require.Equal(t, uint64(500), ledger.locked[ref(id)])
	_ = provider
	_ = arbiter
}
