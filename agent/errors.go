package agent

import "github.com/go-errors/errors"

var (
	// ErrUnknownOrder is returned when an OrderResponse, EscrowRequest,
	// or EscrowSignal names an order or escrow this node has no record
	// of originating or accepting.
	ErrUnknownOrder = errors.New("agent: unknown order")

	// ErrNotConnected is returned when a caller asks to message a peer
	// with no open transport connection.
	ErrNotConnected = errors.New("agent: peer not connected")

	// ErrPolicyDeferred is returned when the configured autonomy tier
	// defers a decision to a human operator rather than accepting or
	// denying automatically.
	ErrPolicyDeferred = errors.New("agent: policy deferred to manual approval")
)
