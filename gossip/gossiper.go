// Package gossip implements the flood-with-deduplication broadcast
// protocol of spec.md section 4.7: publishing a signed capacity
// announcement to a random fanout of peers, and handling inbound
// announcements with rate limiting, seen-set deduplication, per-peer
// caching, and bounded re-broadcast.
//
// Grounded on discovery.AuthenticatedGossiper's accept-then-trickle
// shape (validate, cache, batch the re-broadcast behind a timer)
// though its gossiper.go source was not present in the retrieval pack
// — only discovery/validation.go and discovery/gossiper_test.go were —
// so the trickle and fanout mechanics here are reimplemented from the
// well-known pattern described by spec.md section 4.7 rather than
// ported line for line.
package gossip

import (
	prand "math/rand"
	"sync"
	"time"

	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/internal/clockutil"
	"github.com/molt-labs/molt-core/internal/queueutil"
	"github.com/molt-labs/molt-core/internal/tickerutil"
	"github.com/molt-labs/molt-core/orderbook"
	"github.com/molt-labs/molt-core/wire"
)

// Config holds the tunables of spec.md section 4.7 and section 6,
// each defaulted by DefaultConfig.
type Config struct {
	Fanout                      int
	TTLHops                     uint8
	MaxSeenEntries              int
	MaxMessagesPerPeerPerMinute int
	AnnouncementCacheTTL        time.Duration
	ReputationThreshold         int
	TrickleInterval             time.Duration
}

// DefaultConfig returns the defaults named throughout spec.md section
// 4.7 and section 6.
func DefaultConfig() Config {
	return Config{
		Fanout:                      DefaultFanout,
		TTLHops:                     DefaultTTLHops,
		MaxSeenEntries:              DefaultMaxSeenEntries,
		MaxMessagesPerPeerPerMinute: DefaultMaxMessagesPerPeerPerMinute,
		AnnouncementCacheTTL:        DefaultAnnouncementCacheTTL,
		ReputationThreshold:         DefaultReputationThreshold,
		TrickleInterval:             200 * time.Millisecond,
	}
}

// PeerDirectory is the connection-layer dependency gossip is built
// against: the set of currently connected peers and the ability to
// send a framed message to, or drop, one of them. The concrete
// implementation is the agent package's connRegistry; gossip only ever
// sees this interface, matching spec.md section 5's "peer set ...
// mutated only by the event loop's writer path" by keeping the
// authoritative peer list outside this package entirely.
type PeerDirectory interface {
	ConnectedPeers() []identity.PeerIdentity
	Send(peer identity.PeerIdentity, frame wire.Frame) error
	Disconnect(peer identity.PeerIdentity)
}

type trickleItem struct {
	envelope gossipEnvelope
	exclude  identity.PeerIdentity
}

// Gossiper is the per-node gossip state bundle: the seen set, per-peer
// cache, rate limiter, and reputation tracker spec.md section 5 groups
// under one logical mutex alongside the orderbook. All public methods
// are safe to call concurrently; single-writer discipline is enforced
// internally rather than left to the caller.
type Gossiper struct {
	cfg   Config
	book  *orderbook.Orderbook
	peers PeerDirectory
	clock clockutil.Clock

	mu   sync.Mutex
	seen *seenSet
	cache        *announcementCache
	limiter      *peerRateLimiter
	reputation   *reputationTracker
	rng          *prand.Rand

	trickle  *queueutil.FIFO[trickleItem]
	ticker   tickerutil.Ticker
	wg       sync.WaitGroup
	quit     chan struct{}
	quitOnce sync.Once
}

// New builds a Gossiper over book, wired to peers for send/disconnect
// and clock for deterministic-in-tests time.
func New(book *orderbook.Orderbook, peers PeerDirectory, clock clockutil.Clock, cfg Config) *Gossiper {
	return &Gossiper{
		cfg:        cfg,
		book:       book,
		peers:      peers,
		clock:      clock,
		seen:       newSeenSet(cfg.MaxSeenEntries),
		cache:      newAnnouncementCache(cfg.AnnouncementCacheTTL),
		limiter:    newPeerRateLimiter(cfg.MaxMessagesPerPeerPerMinute),
		reputation: newReputationTracker(cfg.ReputationThreshold),
		rng:        prand.New(prand.NewSource(time.Now().UnixNano())),
		trickle:    queueutil.New[trickleItem](),
		ticker:     tickerutil.New(cfg.TrickleInterval),
		quit:       make(chan struct{}),
	}
}

// Start launches the background trickle loop that batches re-broadcast
// of messages accepted by Handle, per the trickle-delay supplemented
// feature.
func (g *Gossiper) Start() {
	g.ticker.Start()
	g.wg.Add(1)
	go g.run()
}

// Stop halts the trickle loop and waits for it to exit.
func (g *Gossiper) Stop() {
	g.quitOnce.Do(func() { close(g.quit) })
	g.ticker.Stop()
	g.wg.Wait()
}

func (g *Gossiper) run() {
	defer g.wg.Done()
	for {
		select {
		case <-g.ticker.Ticks():
			g.flushTrickle()
		case <-g.quit:
			return
		}
	}
}

// flushTrickle drains every batched re-broadcast and floods it to a
// fresh fanout selection, excluding the peer each item arrived from.
func (g *Gossiper) flushTrickle() {
	items := g.trickle.Drain()
	for _, item := range items {
		g.flood(item.envelope, item.exclude)
	}
}

// Publish signs nothing itself — spec.md section 5 keeps signing
// inside the wallet only — but expects ann to already carry a valid
// signature. It inserts ann into the local orderbook, marks it seen,
// and floods it immediately (not trickle-batched: a locally originated
// announcement has no from_peer to protect by delaying).
func (g *Gossiper) Publish(ann orderbook.CapacityAnnouncement) error {
	now := g.clock.Now()

	if err := ann.Verify(); err != nil {
		return err
	}
	if err := g.book.InsertOffer(ann, now); err != nil {
		return err
	}

	g.mu.Lock()
	g.seen.observe(ann.Peer, ann.Sequence)
	g.cache.put(ann, now)
	g.mu.Unlock()

	g.flood(gossipEnvelope{TTL: g.cfg.TTLHops, Announcement: ann}, identity.PeerIdentity{})
	return nil
}

// flood sends env to min(fanout, peers) connected peers, excluding
// exclude, padding with random-with-replacement picks per spec.md
// section 4.7's deterministic fanout padding.
func (g *Gossiper) flood(env gossipEnvelope, exclude identity.PeerIdentity) {
	candidates := g.peers.ConnectedPeers()

	g.mu.Lock()
	targets := selectFanout(g.rng, candidates, exclude, g.cfg.Fanout)
	g.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	frame := wire.Frame{Type: wire.TypeAnnouncement, Payload: env.encode()}
	for _, peer := range targets {
		if err := g.peers.Send(peer, frame); err != nil {
			log.Warnf("gossip: send to %s failed: %v", peer, err)
		}
	}
}

// Handle processes one inbound announcement frame from from, per
// spec.md section 4.7's five-step contract. A non-nil error is always
// one of the closed GossipError/CryptoError/WireError/AttestationError
// variants named in spec.md section 7 and is never fatal to the
// connection itself; callers log and continue, except when Handle
// itself has already disconnected the offending peer via
// PeerDirectory.
func (g *Gossiper) Handle(from identity.PeerIdentity, frame wire.Frame) error {
	now := g.clock.Now()

	g.mu.Lock()
	allowed := g.limiter.allow(from, now)
	g.mu.Unlock()
	if !allowed {
		g.penalizeAndMaybeDisconnect(from, reputationPenaltyRateLimited)
		return ErrRateLimited
	}

	env, err := decodeGossipEnvelope(frame.Payload)
	if err != nil {
		g.penalizeAndMaybeDisconnect(from, reputationPenaltyMalformed)
		return err
	}

	if err := env.Announcement.Verify(); err != nil {
		g.penalizeAndMaybeDisconnect(from, reputationPenaltyBadSig)
		return err
	}

	if env.Announcement.IsExpired(now) {
		return ErrExpired
	}

	g.mu.Lock()
	duplicate := g.seen.observe(env.Announcement.Peer, env.Announcement.Sequence)
	g.mu.Unlock()
	if duplicate {
		return ErrDuplicate
	}

	if err := g.book.InsertOffer(env.Announcement, now); err != nil {
		return err
	}

	g.mu.Lock()
	g.cache.put(env.Announcement, now)
	g.mu.Unlock()

	if env.TTL > 0 {
		g.trickle.Push(trickleItem{
			envelope: gossipEnvelope{TTL: env.TTL - 1, Announcement: env.Announcement},
			exclude:  from,
		})
	}

	return nil
}

func (g *Gossiper) penalizeAndMaybeDisconnect(peer identity.PeerIdentity, delta int) {
	g.mu.Lock()
	shouldDisconnect := g.reputation.penalize(peer, delta)
	g.mu.Unlock()

	if shouldDisconnect {
		g.peers.Disconnect(peer)
		g.mu.Lock()
		g.reputation.forget(peer)
		g.limiter.forget(peer)
		g.mu.Unlock()
	}
}

// CachedAnnouncement returns the most recent still-fresh announcement
// cached from peer, if any.
func (g *Gossiper) CachedAnnouncement(peer identity.PeerIdentity) (orderbook.CapacityAnnouncement, bool) {
	now := g.clock.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.get(peer, now)
}

// Reputation returns peer's current standing, 0 if never penalized.
func (g *Gossiper) Reputation(peer identity.PeerIdentity) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reputation.score(peer)
}

// SeenCount returns the number of entries currently tracked in the
// seen set, for tests and metrics.
func (g *Gossiper) SeenCount() int {
	return g.seen.len()
}
