package gossip

import (
	"sync"

	"github.com/molt-labs/molt-core/identity"
)

// Default reputation parameters for the supplemented scoring scheme
// (SPEC_FULL.md's "Peer reputation scoring in gossip"), grounded in
// discovery's ban/score handling and htlcswitch's link-quality
// bookkeeping: every peer starts at zero and accumulates penalties;
// crossing the threshold disconnects it.
const (
	DefaultReputationThreshold   = -100
	reputationPenaltyRateLimited = -5
	reputationPenaltyBadSig      = -20
	reputationPenaltyMalformed   = -10
)

// reputationTracker keeps a running score per peer, decremented on
// misbehavior and never incremented. A peer's score is forgotten when
// it is disconnected, so a reconnect under the same identity starts
// again from zero.
type reputationTracker struct {
	mu        sync.Mutex
	threshold int
	scores    map[string]int
}

func newReputationTracker(threshold int) *reputationTracker {
	if threshold == 0 {
		threshold = DefaultReputationThreshold
	}
	return &reputationTracker{threshold: threshold, scores: make(map[string]int)}
}

// penalize lowers peer's score by delta (a negative number) and
// reports whether the peer has now crossed the disconnect threshold.
func (r *reputationTracker) penalize(peer identity.PeerIdentity, delta int) (shouldDisconnect bool) {
	key := peerKey(peer)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.scores[key] += delta
	return r.scores[key] <= r.threshold
}

// score returns peer's current standing, 0 for a peer never
// penalized.
func (r *reputationTracker) score(peer identity.PeerIdentity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scores[peerKey(peer)]
}

// forget drops a peer's score, e.g. once it has been disconnected.
func (r *reputationTracker) forget(peer identity.PeerIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scores, peerKey(peer))
}
