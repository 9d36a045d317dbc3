package gossip

import (
	"container/list"
	"sync"

	molcrypto "github.com/molt-labs/molt-core/crypto"
	"github.com/molt-labs/molt-core/identity"
)

// DefaultMaxSeenEntries is the seen set's default capacity, per
// spec.md section 4.7.
const DefaultMaxSeenEntries = 10000

const seenDomain = "gossip_seen_v1"

// seenKey digests a (peer, sequence) pair with Blake3 under a
// dedicated domain tag, per spec.md section 4.7's "keyed by a Blake3
// digest" requirement.
func seenKey(peer identity.PeerIdentity, sequence uint64) [molcrypto.DigestSize]byte {
	var seqBytes [8]byte
	for i := 0; i < 8; i++ {
		seqBytes[7-i] = byte(sequence >> (8 * i))
	}
	return molcrypto.HashDomain(seenDomain, peer.Bytes(), seqBytes[:])
}

// seenSet is a bounded, FIFO-evicted record of (peer, sequence) pairs
// already handled, deduplicating re-flooded gossip. Structurally the
// same front-evicts-oldest container/list pattern orderbook.Orderbook
// uses for its aggregate cap.
type seenSet struct {
	mu       sync.Mutex
	max      int
	entries  map[[molcrypto.DigestSize]byte]*list.Element
	order    *list.List
}

func newSeenSet(max int) *seenSet {
	if max <= 0 {
		max = DefaultMaxSeenEntries
	}
	return &seenSet{
		max:     max,
		entries: make(map[[molcrypto.DigestSize]byte]*list.Element),
		order:   list.New(),
	}
}

// observe records (peer, sequence) as seen and reports whether it was
// already present. Evicts the oldest entry once at capacity.
func (s *seenSet) observe(peer identity.PeerIdentity, sequence uint64) (alreadySeen bool) {
	key := seenKey(peer, sequence)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return true
	}

	if s.order.Len() >= s.max {
		oldest := s.order.Front()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.entries, oldest.Value.([molcrypto.DigestSize]byte))
		}
	}

	s.entries[key] = s.order.PushBack(key)
	return false
}

// len reports the current number of tracked entries, for tests and
// metrics.
func (s *seenSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
