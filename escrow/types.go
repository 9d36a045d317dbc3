// Package escrow implements the per-job escrow state machine of
// spec.md section 4.5: Created -> Funded -> {Released, Refunded,
// Disputed -> Resolved}, with every transition gated by an explicit
// caller identity check.
//
// Grounded on contractcourt's resolver state model (a contract that
// moves through a small set of terminal/non-terminal states only via
// explicit authorized calls) and htlcswitch/switch.go's
// caller-checked mutation pattern.
package escrow

import (
	"time"

	"github.com/google/uuid"
	"github.com/molt-labs/molt-core/attestation"
	"github.com/molt-labs/molt-core/crypto"
	"github.com/molt-labs/molt-core/identity"
)

// State is one of the escrow account's lifecycle states.
type State uint8

const (
	StateCreated State = iota
	StateFunded
	StateReleased
	StateRefunded
	StateDisputed
	StateResolved
)

var stateNames = map[State]string{
	StateCreated:  "created",
	StateFunded:   "funded",
	StateReleased: "released",
	StateRefunded: "refunded",
	StateDisputed: "disputed",
	StateResolved: "resolved",
}

// String renders the state's name, or "unknown" outside the
// enumeration.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether s is a state the account never leaves.
func (s State) IsTerminal() bool {
	return s == StateReleased || s == StateRefunded || s == StateResolved
}

// ID uniquely identifies one escrow account.
type ID [16]byte

// NewID draws a fresh random escrow ID, for callers that need a bare
// identifier unrelated to any particular EscrowAccount (e.g. a ledger
// transaction ref in a test). An account opened through Machine.Open
// never uses this: its ID is derived from its challenge instead.
func NewID() ID {
	return ID(uuid.New())
}

// escrowIDDomain domain-separates the challenge-to-ID derivation from
// every other use of crypto.HashDomain in this module.
const escrowIDDomain = "escrow_id_v1"

// IDFromChallenge derives an escrow account's ID from its attestation
// challenge, per spec.md section 4.5: "the escrow record hashes
// challenge into its identifier, binding it to the attestation that
// must later name the same challenge." Two peers who agree on the same
// challenge (the provider mints it and sends it to the buyer in an
// EscrowRequest) therefore always derive the same account ID without
// needing to exchange one separately.
func IDFromChallenge(challenge attestation.Challenge) ID {
	digest := crypto.HashDomain(escrowIDDomain, challenge[:])
	var id ID
	copy(id[:], digest[:len(id)])
	return id
}

// String renders the ID in canonical UUID form.
func (i ID) String() string {
	return uuid.UUID(i).String()
}

// EscrowAccount is one job's locked funds and lifecycle state, per
// spec.md section 3.
type EscrowAccount struct {
	ID             ID
	Buyer          identity.PeerIdentity
	Provider       identity.PeerIdentity
	Arbiter        identity.PeerIdentity
	Amount         uint64
	FeeBasisPoints uint32
	Challenge      attestation.Challenge
	State          State
	CreatedAt      time.Time
	LockedUntil    time.Time
	Disputed       bool
}
