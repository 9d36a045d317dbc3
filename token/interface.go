// Package token defines the injected interface escrow uses to move
// value. spec.md section 4.5 explicitly puts the on-chain or
// off-chain mechanics of actually transferring value out of scope;
// MOLT only needs two idempotent calls against whatever ledger a
// deployment wires in.
package token

import (
	"context"

	"github.com/molt-labs/molt-core/identity"
)

// TransactionRef uniquely identifies one escrow's fund movement, so a
// Ledger implementation can de-duplicate a retried Lock or Settle call
// against the same escrow.
type TransactionRef [32]byte

// Ledger is the abstract value-movement backend escrow.Machine is
// built against. A concrete Ledger might be a custodial balance table,
// a payment channel, or an on-chain contract; none of that is MOLT's
// concern.
type Ledger interface {
	// Lock reserves amount from payer's balance under ref. Calling
	// Lock again with the same ref after a prior successful call is a
	// no-op that returns nil, not a double-lock.
	Lock(ctx context.Context, ref TransactionRef, payer identity.PeerIdentity, amount uint64) error

	// Settle releases the amount previously locked under ref to
	// recipient — the provider on a release, or the original payer on
	// a refund. Calling Settle again with the same ref and recipient
	// after a prior successful call is a no-op that returns nil.
	Settle(ctx context.Context, ref TransactionRef, recipient identity.PeerIdentity, amount uint64) error
}
