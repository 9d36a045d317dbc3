// Package transport realizes the "authenticated point-to-point
// datagram channel between peers" spec.md section 1 explicitly
// assumes and places out of scope (mesh-VPN transport itself is an
// external collaborator); this package only needs to provide one
// concrete, idiomatic default so the rest of the core has something
// to run against. The wire framing and message types the channel
// carries are entirely owned by the wire package; Conn only moves
// already-framed bytes.
//
// Grounded on peer.go's conn-handling shape (a single goroutine owns
// socket writes, reads are dispatched to the owning subsystem by
// message type) generalized from net.Conn plus lnwire's custom framing
// to gorilla/websocket plus this module's own wire.Frame.
package transport

import (
	"context"

	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/wire"
)

// Conn is the point-to-point channel agent and gossip send and
// receive wire.Frames over. It is already authenticated by the time a
// caller obtains one: RemoteIdentity returns the verified peer
// identity established during connection setup, never an
// unauthenticated placeholder.
type Conn interface {
	// Send writes one frame, blocking until it has been handed to the
	// underlying transport or ctx is done.
	Send(ctx context.Context, frame wire.Frame) error

	// Receive blocks until the next frame arrives or ctx is done.
	Receive(ctx context.Context) (wire.Frame, error)

	// RemoteIdentity returns the authenticated identity of the peer at
	// the other end of the connection.
	RemoteIdentity() identity.PeerIdentity

	// Close tears down the underlying connection. Safe to call more
	// than once.
	Close() error
}
