package agent

import (
	"context"
	"sync"
	"time"

	"github.com/molt-labs/molt-core/escrow"
	"github.com/molt-labs/molt-core/gossip"
	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/internal/clockutil"
	"github.com/molt-labs/molt-core/orderbook"
	"github.com/molt-labs/molt-core/policy"
	"github.com/molt-labs/molt-core/token"
	"github.com/molt-labs/molt-core/transport"
	"github.com/molt-labs/molt-core/wire"
)

// pendingOrder is a buyer's bookkeeping for an OrderRequest awaiting a
// response, so the eventual OrderResponse or EscrowRequest can be
// checked against what was actually asked for.
type pendingOrder struct {
	provider identity.PeerIdentity
	order    orderbook.JobOrder
	result   chan OrderResponse
}

// Agent is one running MOLT node: the event-loop-owned bundle of
// every other package, wired together and dispatched from a single
// per-connection reader goroutine per spec.md section 5's
// single-writer discipline (each transport.Conn is read by exactly
// one goroutine, and every write to it funnels through the conn's own
// internal write lock).
//
// Grounded on server.go's subsystem-struct wiring and peer.go's
// readHandler/queueHandler split, collapsed here into a synchronous
// per-connection handler since MOLT's message volume does not warrant
// a second dedicated writer goroutine per peer (gossip already owns
// its own outgoing trickle queue upstream of Conn.Send).
type Agent struct {
	wallet *identity.Wallet

	book     *orderbook.Orderbook
	gossiper *gossip.Gossiper
	machine  *escrow.Machine
	ledger   token.Ledger

	tier         policy.AutonomyTier
	policyCfg    policy.Config
	spending     *policy.SpendingTracker
	escrowLock   time.Duration
	settlementFeeBp uint32
	arbiter      identity.PeerIdentity

	clock clockutil.Clock

	conns *connRegistry

	mu          sync.Mutex
	activeJobs  map[string]uint32
	pendingByID map[OrderID]*pendingOrder
}

// New builds an Agent. arbiter is the identity trusted to resolve
// disputes for escrows this node opens as provider; if it is the zero
// identity, the node names itself as its own arbiter (a placeholder
// appropriate for a single-operator deployment or local testing, not
// for production use where buyer and provider should agree on a
// neutral third party out of band).
func New(wallet *identity.Wallet, book *orderbook.Orderbook, gossiper *gossip.Gossiper,
	machine *escrow.Machine, ledger token.Ledger, tier policy.AutonomyTier, policyCfg policy.Config,
	spending *policy.SpendingTracker, escrowLock time.Duration, settlementFeeBp uint32,
	arbiter identity.PeerIdentity, clock clockutil.Clock) *Agent {

	if arbiter.IsZero() {
		arbiter = wallet.Identity()
	}

	return &Agent{
		wallet:          wallet,
		book:            book,
		gossiper:        gossiper,
		machine:         machine,
		ledger:          ledger,
		tier:            tier,
		policyCfg:       policyCfg,
		spending:        spending,
		escrowLock:      escrowLock,
		settlementFeeBp: settlementFeeBp,
		arbiter:         arbiter,
		clock:           clock,
		conns:           newConnRegistry(),
		activeJobs:      make(map[string]uint32),
		pendingByID:     make(map[OrderID]*pendingOrder),
	}
}

// SetGossiper attaches the gossiper this agent dispatches
// TypeAnnouncement frames to. Building a Gossiper requires a
// gossip.PeerDirectory, which this Agent only exposes once
// constructed (see PeerDirectory), so callers typically construct the
// Agent with a nil gossiper, build the Gossiper against
// agent.PeerDirectory(), and attach it here before serving any
// connection.
func (a *Agent) SetGossiper(gossiper *gossip.Gossiper) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gossiper = gossiper
}

// Identity returns this node's own peer identity.
func (a *Agent) Identity() identity.PeerIdentity {
	return a.wallet.Identity()
}

// PeerDirectory exposes the agent's connection registry as the
// gossip.PeerDirectory gossip.New must be constructed against.
func (a *Agent) PeerDirectory() gossip.PeerDirectory {
	return a.conns
}

// Dial opens an outbound transport connection to addr and begins
// serving it, blocking until the handshake completes.
func (a *Agent) Dial(addr string, maxPayload int) error {
	conn, err := transport.Dial(addr, a.wallet, maxPayload)
	if err != nil {
		return err
	}
	a.conns.add(conn)
	go a.serve(conn)
	return nil
}

// ServeConn registers an already-handshaken inbound connection (e.g.
// one accepted by transport.Upgrade from an HTTP handler) and begins
// serving it.
func (a *Agent) ServeConn(conn transport.Conn) {
	a.conns.add(conn)
	go a.serve(conn)
}

// serve is the single reader loop for one connection: every inbound
// frame is dispatched synchronously and in order, so two messages
// from the same peer are never reordered or handled concurrently with
// each other.
func (a *Agent) serve(conn transport.Conn) {
	peer := conn.RemoteIdentity()
	defer a.conns.remove(peer)

	for {
		frame, err := conn.Receive(context.Background())
		if err != nil {
			log.Debugf("agent: connection to %s closed: %v", peer, err)
			return
		}
		if err := a.dispatch(peer, frame); err != nil {
			log.Warnf("agent: handling %v from %s failed: %v", frame.Type, peer, err)
		}
	}
}

// dispatch routes an inbound frame to the handler for its message
// type, per spec.md section 6's closed MessageType enumeration.
func (a *Agent) dispatch(from identity.PeerIdentity, frame wire.Frame) error {
	switch frame.Type {
	case wire.TypeAnnouncement:
		return a.gossiper.Handle(from, frame)
	case wire.TypeOrderRequest:
		return a.handleOrderRequest(from, frame)
	case wire.TypeOrderResponse:
		return a.handleOrderResponse(from, frame)
	case wire.TypeEscrowRequest:
		return a.handleEscrowRequest(from, frame)
	case wire.TypeEscrowSignal:
		return a.handleEscrowSignal(from, frame)
	case wire.TypeAttestation:
		return a.handleAttestation(from, frame)
	default:
		return wire.ErrUnknownMessageType
	}
}

func activeJobsKey(p identity.PeerIdentity) string { return string(p.Bytes()) }

func (a *Agent) incrActiveJobs(peer identity.PeerIdentity, delta int32) {
	key := activeJobsKey(peer)
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := int32(a.activeJobs[key]) + delta
	if cur < 0 {
		cur = 0
	}
	a.activeJobs[key] = uint32(cur)
}

func (a *Agent) activeJobCount(peer identity.PeerIdentity) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeJobs[activeJobsKey(peer)]
}

// PublishCapacity signs ann with this node's wallet and floods it to
// the network via the gossiper.
func (a *Agent) PublishCapacity(ann orderbook.CapacityAnnouncement) error {
	ann.Sign(a.wallet)
	return a.gossiper.Publish(ann)
}

// SubmitJobOrder sends order to provider as an OrderRequest and
// returns a channel that receives the eventual OrderResponse. The
// caller should select on ctx.Done() alongside the returned channel.
func (a *Agent) SubmitJobOrder(provider identity.PeerIdentity, order orderbook.JobOrder) (OrderID, <-chan OrderResponse, error) {
	order.Status = orderbook.JobPending

	id := NewOrderID()
	result := make(chan OrderResponse, 1)

	a.mu.Lock()
	a.pendingByID[id] = &pendingOrder{provider: provider, order: order, result: result}
	a.mu.Unlock()

	msg := OrderRequest{ID: id, Order: order}
	frame := wire.Frame{Type: wire.TypeOrderRequest, Payload: msg.encode()}
	if err := a.conns.Send(provider, frame); err != nil {
		a.mu.Lock()
		delete(a.pendingByID, id)
		a.mu.Unlock()
		return OrderID{}, nil, err
	}
	return id, result, nil
}
