package gossip

import (
	"sync"
	"time"

	"github.com/molt-labs/molt-core/identity"
	"golang.org/x/time/rate"
)

// DefaultMaxMessagesPerPeerPerMinute bounds how many gossip messages
// one peer may deliver per minute before being rate limited, per
// spec.md section 4.7.
const DefaultMaxMessagesPerPeerPerMinute = 100

// peerRateLimiter enforces a per-from_peer sliding-window message
// budget using the teacher's own golang.org/x/time/rate dependency as
// the token bucket, one bucket per peer, refilled continuously at
// limit/minute rather than reset per wall-clock minute boundary.
type peerRateLimiter struct {
	mu       sync.Mutex
	limit    int
	limiters map[string]*rate.Limiter
}

func newPeerRateLimiter(messagesPerMinute int) *peerRateLimiter {
	if messagesPerMinute <= 0 {
		messagesPerMinute = DefaultMaxMessagesPerPeerPerMinute
	}
	return &peerRateLimiter{
		limit:    messagesPerMinute,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (p *peerRateLimiter) limiterFor(peer identity.PeerIdentity) *rate.Limiter {
	key := peerKey(peer)

	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(p.limit)/60.0), p.limit)
		p.limiters[key] = l
	}
	return l
}

// allow reports whether peer may deliver one more message right now,
// consuming one token from its bucket if so.
func (p *peerRateLimiter) allow(peer identity.PeerIdentity, now time.Time) bool {
	return p.limiterFor(peer).AllowN(now, 1)
}

// forget drops a peer's bucket, e.g. once it has been disconnected
// for repeated abuse.
func (p *peerRateLimiter) forget(peer identity.PeerIdentity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.limiters, peerKey(peer))
}
