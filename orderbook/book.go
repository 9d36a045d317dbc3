package orderbook

import (
	"container/list"
	"sync"
	"time"

	"github.com/molt-labs/molt-core/identity"
)

// DefaultMaxOffersTotal is the aggregate cap MAX_OFFERS_TOTAL spec.md
// section 6 lists as a tunable default.
const DefaultMaxOffersTotal = 1000

// DefaultMaxOffersPerPeer is MAX_OFFERS_PER_PEER. The book keeps at
// most one current offer per peer (see the design note below), so
// this cap only guards against a future multi-offer-per-peer model
// and a peer can never exceed it in practice.
const DefaultMaxOffersPerPeer = 1

// Orderbook holds the set of live capacity announcements and matches
// job orders against them.
//
// Design note: spec.md section 4.4 states the book "never contains two
// offers with the same (peer, sequence)" and that "a higher sequence
// from the same peer replaces a lower one." Read literally and
// together, those two sentences describe a single versioned slot per
// peer rather than an unbounded history: a provider re-announces to
// update its price or availability, and the new announcement replaces
// the old one for that peer. The book is therefore keyed by peer, with
// sequence acting as that peer's monotonic version counter. The
// aggregate cap MAX_OFFERS_TOTAL is what the sybil-flood scenario in
// spec.md section 8 actually exercises: many distinct single-offer
// peers, evicted oldest-first once the book is full.
type Orderbook struct {
	mu sync.Mutex

	maxTotal int

	byPeer map[string]*bookEntry
	lru    *list.List // front = least recently inserted/updated
}

type bookEntry struct {
	announcement CapacityAnnouncement
	elem         *list.Element // Value is the peer key string
}

// New returns an empty Orderbook with the given aggregate capacity. A
// maxTotal of 0 uses DefaultMaxOffersTotal.
func New(maxTotal int) *Orderbook {
	if maxTotal <= 0 {
		maxTotal = DefaultMaxOffersTotal
	}
	return &Orderbook{
		maxTotal: maxTotal,
		byPeer:   make(map[string]*bookEntry),
		lru:      list.New(),
	}
}

func peerKey(p identity.PeerIdentity) string {
	return string(p.Bytes())
}

// InsertOffer validates and stores ann, replacing any existing offer
// from the same peer if ann's sequence is strictly greater. An
// announcement with a sequence not strictly greater than the peer's
// current one is rejected as stale or a duplicate resend.
func (b *Orderbook) InsertOffer(ann CapacityAnnouncement, now time.Time) error {
	if err := ann.Verify(); err != nil {
		return err
	}

	key := peerKey(ann.Peer)

	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.byPeer[key]
	if ok && ann.Sequence <= existing.announcement.Sequence {
		return ErrDuplicateSequence
	}

	if !ok {
		if len(b.byPeer) >= b.maxTotal {
			b.evictOldestLocked()
		}
		elem := b.lru.PushBack(key)
		b.byPeer[key] = &bookEntry{announcement: ann, elem: elem}
		return nil
	}

	existing.announcement = ann
	b.lru.MoveToBack(existing.elem)
	return nil
}

// evictOldestLocked removes the least-recently-inserted offer. Callers
// must hold b.mu.
func (b *Orderbook) evictOldestLocked() {
	front := b.lru.Front()
	if front == nil {
		return
	}
	b.lru.Remove(front)
	delete(b.byPeer, front.Value.(string))
}

// RemoveOffer removes the peer's current offer if its sequence
// matches, e.g. an explicit withdrawal. Returns ErrNotFound if the
// peer has no current offer or the sequence does not match the one on
// file.
func (b *Orderbook) RemoveOffer(peer identity.PeerIdentity, sequence uint64) error {
	key := peerKey(peer)

	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.byPeer[key]
	if !ok || entry.announcement.Sequence != sequence {
		return ErrNotFound
	}
	b.lru.Remove(entry.elem)
	delete(b.byPeer, key)
	return nil
}

// PruneExpired removes every offer whose expires_at is no later than
// now, and returns how many were removed.
func (b *Orderbook) PruneExpired(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for e := b.lru.Front(); e != nil; {
		next := e.Next()
		key := e.Value.(string)
		entry := b.byPeer[key]
		if entry.announcement.IsExpired(now) {
			b.lru.Remove(e)
			delete(b.byPeer, key)
			removed++
		}
		e = next
	}
	return removed
}

// CurrentOffer returns peer's live offer, if it has one on file.
func (b *Orderbook) CurrentOffer(peer identity.PeerIdentity) (CapacityAnnouncement, bool) {
	key := peerKey(peer)

	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.byPeer[key]
	if !ok {
		return CapacityAnnouncement{}, false
	}
	return entry.announcement, true
}

// Len reports the number of live offers currently held.
func (b *Orderbook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byPeer)
}

// Prices returns the price_per_hour of every live, non-expired offer
// currently in the book, for policy.Evaluate's Aggressive-tier market
// percentile floor.
func (b *Orderbook) Prices(now time.Time) []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]uint64, 0, len(b.byPeer))
	for _, entry := range b.byPeer {
		if entry.announcement.IsExpired(now) {
			continue
		}
		out = append(out, entry.announcement.PricePerHour)
	}
	return out
}

// snapshot returns a copy of all live, non-expired offers for matching
// against, so MatchOrder never holds the book's lock while scoring.
func (b *Orderbook) snapshot(now time.Time) []CapacityAnnouncement {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]CapacityAnnouncement, 0, len(b.byPeer))
	for _, entry := range b.byPeer {
		if entry.announcement.IsExpired(now) {
			continue
		}
		out = append(out, entry.announcement)
	}
	return out
}

// TrustLookup returns the current trust score in [0,1] for a peer, as
// computed by attestation.TrustScore over that peer's attestation
// history. MatchOrder takes this as a dependency rather than importing
// package attestation directly, keeping the scoring function pure and
// independently testable with synthetic trust values.
type TrustLookup func(peer identity.PeerIdentity) float64

// MatchOrder scores every live, non-expired offer against order's
// requirements and returns the survivors in descending score order,
// per spec.md section 4.4. trustLookup may be nil, in which case every
// offer is treated as having zero trust history.
func (b *Orderbook) MatchOrder(order JobOrder, now time.Time, trustLookup TrustLookup) ([]Match, error) {
	if err := order.Requirements.Validate(); err != nil {
		return nil, err
	}
	if trustLookup == nil {
		trustLookup = func(identity.PeerIdentity) float64 { return 0 }
	}
	offers := b.snapshot(now)
	return matchOffers(order.Requirements, offers, trustLookup), nil
}
