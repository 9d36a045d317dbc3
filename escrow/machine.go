package escrow

import (
	"context"
	"sync"
	"time"

	"github.com/molt-labs/molt-core/attestation"
	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/token"
)

// Machine holds the in-memory set of open escrow accounts and
// enforces spec.md section 4.5's authorized-transition table:
//
//	Open     -> Created     : system (no caller check; account creation)
//	Fund     -> Funded      : buyer only
//	Release  -> Released    : buyer or arbiter, and only while not disputed
//	Refund   -> Refunded    : provider or arbiter at any time; any other caller once locked_until has passed
//	Dispute  -> Disputed    : buyer or provider
//	Resolve  -> Released/Refunded : arbiter only, from Disputed
type Machine struct {
	mu     sync.Mutex
	ledger token.Ledger
	store  *Store

	accounts map[ID]*EscrowAccount
}

// NewMachine returns an empty escrow machine backed by ledger, with no
// durable log.
func NewMachine(ledger token.Ledger) *Machine {
	return &Machine{
		ledger:   ledger,
		accounts: make(map[ID]*EscrowAccount),
	}
}

// NewMachineFromStore rebuilds a Machine's accounts by replaying
// store's append-only log, then keeps logging subsequent transitions
// to it — the durability property spec.md section 6 requires for
// escrow.log, mirroring channeldb's restart-durability of channel
// state.
func NewMachineFromStore(ledger token.Ledger, store *Store) (*Machine, error) {
	m := &Machine{
		ledger:   ledger,
		store:    store,
		accounts: make(map[ID]*EscrowAccount),
	}
	err := store.Replay(func(ev Event) error {
		acct := ev.Account
		m.accounts[acct.ID] = &acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// logEvent best-effort appends ev to the durable log, if one is
// attached. A logging failure is reported but never rolled back into
// the in-memory state transition that already committed against the
// ledger; the ledger call, not the log, is the source of truth for
// whether value actually moved.
func (m *Machine) logEvent(kind EventKind, acct EscrowAccount, now time.Time) {
	if m.store == nil {
		return
	}
	if err := m.store.Append(Event{Kind: kind, Account: acct, At: now}); err != nil {
		log.Warnf("escrow: failed to append %s event for %s to log: %v", acct.State, acct.ID, err)
	}
}

// Open creates a new escrow account in the Created state, with its ID
// derived from challenge via IDFromChallenge, binding the account to
// the attestation that must later name the same challenge. There is no
// caller-identity check here: any peer may open an account naming
// itself as buyer.
//
// Two peers each holding their own local Machine mirror the same
// logical escrow account simply by calling Open with the same
// challenge (the provider mints it and names it in the EscrowRequest
// it sends the buyer); both sides derive the identical ID. If an
// account with that ID already exists, it is returned unchanged rather
// than re-created.
func (m *Machine) Open(buyer, provider, arbiter identity.PeerIdentity, amount uint64, feeBasisPoints uint32, challenge attestation.Challenge, lockedUntil, now time.Time) *EscrowAccount {
	id := IDFromChallenge(challenge)

	m.mu.Lock()
	if existing, ok := m.accounts[id]; ok {
		m.mu.Unlock()
		return existing
	}
	m.mu.Unlock()

	acct := &EscrowAccount{
		ID:             id,
		Buyer:          buyer,
		Provider:       provider,
		Arbiter:        arbiter,
		Amount:         amount,
		FeeBasisPoints: feeBasisPoints,
		Challenge:      challenge,
		State:          StateCreated,
		CreatedAt:      now,
		LockedUntil:    lockedUntil,
	}

	m.mu.Lock()
	m.accounts[acct.ID] = acct
	m.mu.Unlock()

	m.logEvent(EventOpened, *acct, now)
	log.Debugf("opened escrow %s for %d between buyer=%s provider=%s", acct.ID, amount, buyer, provider)
	return acct
}

// Get returns a copy of the account's current state.
func (m *Machine) Get(id ID) (EscrowAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	if !ok {
		return EscrowAccount{}, ErrNotFound
	}
	return *acct, nil
}

// ref derives the ledger transaction reference for an escrow account.
// TransactionRef is wider than an escrow ID so it can also name
// transactions that have no associated escrow; the ID simply occupies
// the low 16 bytes, zero-padded.
func ref(id ID) token.TransactionRef {
	var r token.TransactionRef
	copy(r[:], id[:])
	return r
}

// Fund locks the account's funds via the ledger and moves it from
// Created to Funded. Only the buyer may fund an escrow.
func (m *Machine) Fund(ctx context.Context, id ID, caller identity.PeerIdentity, now time.Time) error {
	m.mu.Lock()
	acct, ok := m.accounts[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if !caller.Equal(acct.Buyer) {
		m.mu.Unlock()
		return ErrUnauthorized
	}
	if acct.State != StateCreated {
		m.mu.Unlock()
		return ErrAlreadyFunded
	}
	m.mu.Unlock()

	if err := m.ledger.Lock(ctx, ref(id), acct.Buyer, acct.Amount); err != nil {
		return err
	}

	m.mu.Lock()
	acct.State = StateFunded
	snapshot := *acct
	m.mu.Unlock()

	m.logEvent(EventFunded, snapshot, now)
	log.Debugf("funded escrow %s", id)
	return nil
}

// Release settles the locked funds to the provider and moves the
// account to Released. The buyer or the arbiter may release a funded
// account; if the account is disputed, only Resolve (not this call)
// may settle it.
func (m *Machine) Release(ctx context.Context, id ID, caller identity.PeerIdentity, now time.Time) error {
	m.mu.Lock()
	acct, ok := m.accounts[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if acct.State == StateDisputed {
		m.mu.Unlock()
		return &InvalidStateTransitionError{From: acct.State, To: StateReleased}
	}
	if acct.State != StateFunded {
		m.mu.Unlock()
		return &InvalidStateTransitionError{From: acct.State, To: StateReleased}
	}
	if !caller.Equal(acct.Buyer) && !caller.Equal(acct.Arbiter) {
		m.mu.Unlock()
		return ErrUnauthorized
	}
	provider, amount := acct.Provider, acct.Amount
	m.mu.Unlock()

	if err := m.ledger.Settle(ctx, ref(id), provider, amount); err != nil {
		return err
	}

	m.mu.Lock()
	acct.State = StateReleased
	snapshot := *acct
	m.mu.Unlock()

	m.logEvent(EventReleased, snapshot, now)
	log.Debugf("released escrow %s to provider", id)
	return nil
}

// Refund settles the locked funds back to the buyer and moves the
// account to Refunded. The provider or the arbiter may refund a funded
// account at any time (e.g. a provider voluntarily returning funds it
// cannot honor); any other caller may only do so once locked_until has
// passed, the liveness guarantee spec.md section 4.5 requires.
func (m *Machine) Refund(ctx context.Context, id ID, caller identity.PeerIdentity, now time.Time) error {
	m.mu.Lock()
	acct, ok := m.accounts[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if acct.State != StateFunded {
		m.mu.Unlock()
		return &InvalidStateTransitionError{From: acct.State, To: StateRefunded}
	}
	authorized := caller.Equal(acct.Provider) || caller.Equal(acct.Arbiter) || !now.Before(acct.LockedUntil)
	if !authorized {
		m.mu.Unlock()
		return ErrNotYetUnlocked
	}
	buyer, amount := acct.Buyer, acct.Amount
	m.mu.Unlock()

	if err := m.ledger.Settle(ctx, ref(id), buyer, amount); err != nil {
		return err
	}

	m.mu.Lock()
	acct.State = StateRefunded
	snapshot := *acct
	m.mu.Unlock()

	m.logEvent(EventRefunded, snapshot, now)
	log.Debugf("refunded escrow %s to buyer", id)
	return nil
}

// Dispute moves a funded account into the Disputed state, halting
// Release/Refund until the arbiter calls Resolve. Only the buyer or
// the provider may raise a dispute.
func (m *Machine) Dispute(id ID, caller identity.PeerIdentity, now time.Time) error {
	m.mu.Lock()

	acct, ok := m.accounts[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if acct.State != StateFunded {
		m.mu.Unlock()
		return &InvalidStateTransitionError{From: acct.State, To: StateDisputed}
	}
	if !caller.Equal(acct.Buyer) && !caller.Equal(acct.Provider) {
		m.mu.Unlock()
		return ErrUnauthorized
	}

	acct.State = StateDisputed
	acct.Disputed = true
	snapshot := *acct
	m.mu.Unlock()

	m.logEvent(EventDisputed, snapshot, now)
	log.Infof("escrow %s disputed", id)
	return nil
}

// Resolve settles a disputed account, releasing to the provider if
// releaseToProvider is true or refunding the buyer otherwise. Only the
// account's named arbiter may call Resolve.
func (m *Machine) Resolve(ctx context.Context, id ID, caller identity.PeerIdentity, releaseToProvider bool, now time.Time) error {
	m.mu.Lock()
	acct, ok := m.accounts[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if acct.State != StateDisputed {
		m.mu.Unlock()
		return &InvalidStateTransitionError{From: acct.State, To: StateResolved}
	}
	if !caller.Equal(acct.Arbiter) {
		m.mu.Unlock()
		return ErrUnauthorized
	}
	recipient := acct.Buyer
	if releaseToProvider {
		recipient = acct.Provider
	}
	amount := acct.Amount
	m.mu.Unlock()

	if err := m.ledger.Settle(ctx, ref(id), recipient, amount); err != nil {
		return err
	}

	m.mu.Lock()
	acct.State = StateResolved
	snapshot := *acct
	m.mu.Unlock()

	m.logEvent(EventResolved, snapshot, now)
	log.Infof("escrow %s resolved by arbiter, releaseToProvider=%v", id, releaseToProvider)
	return nil
}

// FundedAccounts returns a snapshot of every account currently in the
// Funded state, for the timeout resolver to scan.
func (m *Machine) FundedAccounts() []EscrowAccount {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]EscrowAccount, 0, len(m.accounts))
	for _, acct := range m.accounts {
		if acct.State == StateFunded {
			out = append(out, *acct)
		}
	}
	return out
}
