package gossip

import (
	"time"

	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/orderbook"
)

// DefaultAnnouncementCacheTTL is how long a gossiper keeps a peer's
// most recently handled announcement around for quick resend, per
// spec.md section 4.7's "Announcement cache TTL. 600 seconds."
// This is distinct from an announcement's own signed expires_at: it
// bounds how long the gossip layer itself considers a copy fresh
// enough to hand back to a newly connected peer without a fresh
// flood round.
const DefaultAnnouncementCacheTTL = 600 * time.Second

type cacheEntry struct {
	announcement orderbook.CapacityAnnouncement
	cachedAt     time.Time
}

// announcementCache holds the single latest announcement seen from
// each peer, independent of the orderbook's own offer storage.
type announcementCache struct {
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newAnnouncementCache(ttl time.Duration) *announcementCache {
	if ttl <= 0 {
		ttl = DefaultAnnouncementCacheTTL
	}
	return &announcementCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func peerKey(p identity.PeerIdentity) string {
	return string(p.Bytes())
}

// put records ann as the latest announcement seen from its peer.
func (c *announcementCache) put(ann orderbook.CapacityAnnouncement, now time.Time) {
	c.entries[peerKey(ann.Peer)] = cacheEntry{announcement: ann, cachedAt: now}
}

// get returns the cached announcement for peer if one exists and has
// not aged past the cache TTL.
func (c *announcementCache) get(peer identity.PeerIdentity, now time.Time) (orderbook.CapacityAnnouncement, bool) {
	entry, ok := c.entries[peerKey(peer)]
	if !ok {
		return orderbook.CapacityAnnouncement{}, false
	}
	if now.Sub(entry.cachedAt) > c.ttl {
		delete(c.entries, peerKey(peer))
		return orderbook.CapacityAnnouncement{}, false
	}
	return entry.announcement, true
}

// prune drops every entry older than the cache TTL as of now.
func (c *announcementCache) prune(now time.Time) {
	for k, entry := range c.entries {
		if now.Sub(entry.cachedAt) > c.ttl {
			delete(c.entries, k)
		}
	}
}
