package gossip

import (
	prand "math/rand"

	"github.com/molt-labs/molt-core/identity"
)

// selectFanout picks min(fanout, len(candidates)) peers from
// candidates, excluding exclude, for broadcast or relay. Per spec.md
// section 4.7's "deterministic fanout padding": when fewer eligible
// peers exist than fanout, selection still draws fanout picks with
// replacement from the eligible set rather than returning a shorter
// list, so an observer cannot infer the node's true peer count from
// the size of what it forwards.
func selectFanout(rng *prand.Rand, candidates []identity.PeerIdentity, exclude identity.PeerIdentity, fanout int) []identity.PeerIdentity {
	eligible := make([]identity.PeerIdentity, 0, len(candidates))
	for _, p := range candidates {
		if p.Equal(exclude) {
			continue
		}
		eligible = append(eligible, p)
	}
	if len(eligible) == 0 || fanout <= 0 {
		return nil
	}

	if len(eligible) >= fanout {
		// Fisher-Yates partial shuffle: pick fanout distinct peers
		// without revealing the full membership order.
		shuffled := make([]identity.PeerIdentity, len(eligible))
		copy(shuffled, eligible)
		for i := 0; i < fanout; i++ {
			j := i + rng.Intn(len(shuffled)-i)
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		}
		return shuffled[:fanout]
	}

	// Fewer eligible peers than fanout: pad with random-with-replacement
	// picks so the output size never betrays the true peer count.
	out := make([]identity.PeerIdentity, fanout)
	for i := range out {
		out[i] = eligible[rng.Intn(len(eligible))]
	}
	return out
}
