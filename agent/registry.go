package agent

import (
	"context"
	"sync"

	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/transport"
	"github.com/molt-labs/molt-core/wire"
)

// connRegistry is the live set of authenticated transport connections
// this node currently holds open, keyed by remote identity. It
// implements gossip.PeerDirectory, the only view gossip is given of
// the connection layer.
type connRegistry struct {
	mu    sync.Mutex
	conns map[string]transport.Conn
}

func newConnRegistry() *connRegistry {
	return &connRegistry{conns: make(map[string]transport.Conn)}
}

func registryKey(p identity.PeerIdentity) string {
	return string(p.Bytes())
}

// add registers conn under its own remote identity, closing and
// discarding any prior connection already on file for that peer.
func (r *connRegistry) add(conn transport.Conn) {
	key := registryKey(conn.RemoteIdentity())

	r.mu.Lock()
	old, ok := r.conns[key]
	r.conns[key] = conn
	r.mu.Unlock()

	if ok {
		old.Close()
	}
}

func (r *connRegistry) get(peer identity.PeerIdentity) (transport.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[registryKey(peer)]
	return conn, ok
}

// ConnectedPeers returns the identities of every currently registered
// connection, satisfying gossip.PeerDirectory.
func (r *connRegistry) ConnectedPeers() []identity.PeerIdentity {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]identity.PeerIdentity, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn.RemoteIdentity())
	}
	return out
}

// Send writes frame to peer's connection, satisfying
// gossip.PeerDirectory. Each transport.Conn implementation (WSConn)
// serializes its own writes internally, so no additional locking is
// needed here beyond the map lookup.
func (r *connRegistry) Send(peer identity.PeerIdentity, frame wire.Frame) error {
	conn, ok := r.get(peer)
	if !ok {
		return ErrNotConnected
	}
	return conn.Send(context.Background(), frame)
}

// Disconnect closes and forgets peer's connection, satisfying
// gossip.PeerDirectory.
func (r *connRegistry) Disconnect(peer identity.PeerIdentity) {
	key := registryKey(peer)

	r.mu.Lock()
	conn, ok := r.conns[key]
	delete(r.conns, key)
	r.mu.Unlock()

	if ok {
		conn.Close()
	}
}

// remove drops peer's connection from the registry without closing
// it, for the case where the connection already closed itself (a read
// error in the agent's own serve loop) and only bookkeeping remains.
func (r *connRegistry) remove(peer identity.PeerIdentity) {
	r.mu.Lock()
	delete(r.conns, registryKey(peer))
	r.mu.Unlock()
}
