// Package agent wires every other package into one running node:
// identity, orderbook, escrow, settlement, policy, gossip, and
// transport, dispatched from a single event loop per spec.md section
// 5's single-writer discipline.
//
// Grounded on peer.go's inbound-message-switch shape (one loop reading
// frames off a connection and dispatching by type to handler methods)
// and lnd.go's top-level wiring of subsystems into one daemon struct.
package agent

import (
	"time"

	"github.com/google/uuid"
	"github.com/molt-labs/molt-core/attestation"
	"github.com/molt-labs/molt-core/escrow"
	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/orderbook"
	"github.com/molt-labs/molt-core/wire"
)

// OrderID correlates an OrderRequest with its OrderResponse, since a
// node may have several outstanding negotiations with the same peer at
// once.
type OrderID [16]byte

// NewOrderID draws a fresh random order ID.
func NewOrderID() OrderID {
	return OrderID(uuid.New())
}

func (o OrderID) String() string {
	return uuid.UUID(o).String()
}

// OrderRequest is a buyer's point-to-point proposal of a job order to
// a specific provider it has already selected from a local
// orderbook.MatchOrder call. It rides a wire.TypeOrderRequest frame
// over an already-handshake-authenticated transport connection, so
// unlike CapacityAnnouncement it carries no signature of its own: the
// connection itself vouches for the sender's identity, and this
// message is never relayed by a third party the way a gossiped
// announcement is.
type OrderRequest struct {
	ID    OrderID
	Order orderbook.JobOrder
}

func (m OrderRequest) encode() []byte {
	w := wire.NewWriter()
	w.WriteFixed(m.ID[:])
	m.Order.Encode(w)
	return w.Bytes()
}

// DecodeOrderRequest parses a wire.TypeOrderRequest payload.
func DecodeOrderRequest(b []byte) (OrderRequest, error) {
	r := wire.NewReader(b)
	idBytes := r.ReadFixed(16)
	order, err := orderbook.DecodeJobOrder(r)
	if err != nil {
		return OrderRequest{}, err
	}
	if r.Err() != nil {
		return OrderRequest{}, r.Err()
	}
	var id OrderID
	copy(id[:], idBytes)
	return OrderRequest{ID: id, Order: order}, nil
}

// OrderResponse is the provider's reply to an OrderRequest: acceptance
// or denial, and if accepted, the escrow account the buyer must fund
// next.
type OrderResponse struct {
	ID       OrderID
	Accepted bool
	Reason   string
	EscrowID escrow.ID
}

func (m OrderResponse) encode() []byte {
	w := wire.NewWriter()
	w.WriteFixed(m.ID[:])
	if m.Accepted {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
	w.WriteString(m.Reason)
	w.WriteFixed(m.EscrowID[:])
	return w.Bytes()
}

const maxReasonLen = 256

// DecodeOrderResponse parses a wire.TypeOrderResponse payload.
func DecodeOrderResponse(b []byte) (OrderResponse, error) {
	r := wire.NewReader(b)
	idBytes := r.ReadFixed(16)
	accepted := r.ReadUint8()
	reason := r.ReadString(maxReasonLen)
	escrowIDBytes := r.ReadFixed(16)
	if r.Err() != nil {
		return OrderResponse{}, r.Err()
	}
	var id OrderID
	copy(id[:], idBytes)
	var escrowID escrow.ID
	copy(escrowID[:], escrowIDBytes)
	return OrderResponse{
		ID:       id,
		Accepted: accepted != 0,
		Reason:   reason,
		EscrowID: escrowID,
	}, nil
}

// EscrowRequest proposes opening an escrow account for an accepted
// job order, sent provider -> buyer (the provider names the arbiter
// and the agreed amount once OrderResponse.Accepted is true) alongside
// the attestation challenge the provider will later need to redeem.
type EscrowRequest struct {
	EscrowID       escrow.ID
	OrderID        OrderID
	Buyer          identity.PeerIdentity
	Provider       identity.PeerIdentity
	Arbiter        identity.PeerIdentity
	Amount         uint64
	FeeBasisPoints uint32
	LockedUntil    time.Time
	Challenge      attestation.Challenge
}

func (m EscrowRequest) encode() []byte {
	w := wire.NewWriter()
	w.WriteFixed(m.EscrowID[:])
	w.WriteFixed(m.OrderID[:])
	w.WriteBytes(m.Buyer.Bytes())
	w.WriteBytes(m.Provider.Bytes())
	w.WriteBytes(m.Arbiter.Bytes())
	w.WriteUint64(m.Amount)
	w.WriteUint32(m.FeeBasisPoints)
	w.WriteInt64(m.LockedUntil.Unix())
	w.WriteFixed(m.Challenge[:])
	return w.Bytes()
}

// DecodeEscrowRequest parses a wire.TypeEscrowRequest payload.
func DecodeEscrowRequest(b []byte) (EscrowRequest, error) {
	r := wire.NewReader(b)
	escrowIDBytes := r.ReadFixed(16)
	orderIDBytes := r.ReadFixed(16)
	buyerBytes := r.ReadBytes(32)
	providerBytes := r.ReadBytes(32)
	arbiterBytes := r.ReadBytes(32)
	amount := r.ReadUint64()
	feeBasisPoints := r.ReadUint32()
	lockedUntil := r.ReadInt64()
	challengeBytes := r.ReadFixed(32)
	if r.Err() != nil {
		return EscrowRequest{}, r.Err()
	}

	buyer, err := identity.PeerIdentityFromBytes(buyerBytes)
	if err != nil {
		return EscrowRequest{}, err
	}
	provider, err := identity.PeerIdentityFromBytes(providerBytes)
	if err != nil {
		return EscrowRequest{}, err
	}
	arbiter, err := identity.PeerIdentityFromBytes(arbiterBytes)
	if err != nil {
		return EscrowRequest{}, err
	}

	var escrowID escrow.ID
	copy(escrowID[:], escrowIDBytes)
	var orderID OrderID
	copy(orderID[:], orderIDBytes)
	var challenge attestation.Challenge
	copy(challenge[:], challengeBytes)

	return EscrowRequest{
		EscrowID:       escrowID,
		OrderID:        orderID,
		Buyer:          buyer,
		Provider:       provider,
		Arbiter:        arbiter,
		Amount:         amount,
		FeeBasisPoints: feeBasisPoints,
		LockedUntil:    time.Unix(lockedUntil, 0).UTC(),
		Challenge:      challenge,
	}, nil
}

// SignalKind is the escrow state-machine call an EscrowSignal carries.
type SignalKind uint8

const (
	SignalFund SignalKind = iota + 1
	SignalRelease
	SignalDispute
	SignalResolve
)

func (k SignalKind) String() string {
	switch k {
	case SignalFund:
		return "fund"
	case SignalRelease:
		return "release"
	case SignalDispute:
		return "dispute"
	case SignalResolve:
		return "resolve"
	default:
		return "unknown"
	}
}

// EscrowSignal carries one escrow.Machine state transition between
// peers: fund, release, dispute, or (arbiter only) resolve.
// ResolveReleaseToProvider is only meaningful when Signal is
// SignalResolve.
type EscrowSignal struct {
	EscrowID                 escrow.ID
	Signal                   SignalKind
	ResolveReleaseToProvider bool
}

func (m EscrowSignal) encode() []byte {
	w := wire.NewWriter()
	w.WriteFixed(m.EscrowID[:])
	w.WriteUint8(uint8(m.Signal))
	if m.ResolveReleaseToProvider {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
	return w.Bytes()
}

// DecodeEscrowSignal parses a wire.TypeEscrowSignal payload.
func DecodeEscrowSignal(b []byte) (EscrowSignal, error) {
	r := wire.NewReader(b)
	escrowIDBytes := r.ReadFixed(16)
	signal := r.ReadUint8()
	releaseToProvider := r.ReadUint8()
	if r.Err() != nil {
		return EscrowSignal{}, r.Err()
	}
	var escrowID escrow.ID
	copy(escrowID[:], escrowIDBytes)
	return EscrowSignal{
		EscrowID:                 escrowID,
		Signal:                   SignalKind(signal),
		ResolveReleaseToProvider: releaseToProvider != 0,
	}, nil
}
