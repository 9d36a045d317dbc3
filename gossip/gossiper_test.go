package gossip

import (
	"testing"
	"time"

	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/internal/clockutil"
	"github.com/molt-labs/molt-core/orderbook"
	"github.com/molt-labs/molt-core/wire"
	"github.com/stretchr/testify/require"
)

func newTestGossiper(t *testing.T, dir *fakeDirectory, now time.Time, cfg Config) *Gossiper {
	t.Helper()
	book := orderbook.New(orderbook.DefaultMaxOffersTotal)
	return New(book, dir, fixedClock{at: now}, cfg)
}

func frameFor(t *testing.T, ann orderbook.CapacityAnnouncement, ttl uint8) wire.Frame {
	t.Helper()
	env := gossipEnvelope{TTL: ttl, Announcement: ann}
	return wire.Frame{Type: wire.TypeAnnouncement, Payload: env.encode()}
}

func TestPublishFloodsToFanoutPeers(t *testing.T) {
	now := time.Now()
	peerA, peerB, peerC, peerD := newTestWallet(t).Identity(), newTestWallet(t).Identity(),
		newTestWallet(t).Identity(), newTestWallet(t).Identity()
	dir := newFakeDirectory(peerA, peerB, peerC, peerD)

	cfg := DefaultConfig()
	cfg.Fanout = 2
	g := newTestGossiper(t, dir, now, cfg)

	w := newTestWallet(t)
	ann := baseAnnouncement(t, w, now, 1)

	require.NoError(t, g.Publish(ann))
	require.Equal(t, 2, dir.sentToCount())
	require.Equal(t, 1, g.book.Len())
}

func TestPublishPadsFanoutWhenFewerPeersThanFanout(t *testing.T) {
	now := time.Now()
	peerA, peerB := newTestWallet(t).Identity(), newTestWallet(t).Identity()
	dir := newFakeDirectory(peerA, peerB)

	cfg := DefaultConfig()
	cfg.Fanout = 5
	g := newTestGossiper(t, dir, now, cfg)

	w := newTestWallet(t)
	ann := baseAnnouncement(t, w, now, 1)

	require.NoError(t, g.Publish(ann))
	// Padded with replacement: exactly 5 sends total, spread over only
	// the 2 real peers, never revealing that only 2 peers exist via a
	// shorter send list.
	require.Equal(t, 5, dir.sentToCount())
}

func TestHandleAcceptsValidAnnouncement(t *testing.T) {
	now := time.Now()
	from, to := newTestWallet(t), newTestWallet(t)
	dir := newFakeDirectory(from.Identity(), to.Identity())
	g := newTestGossiper(t, dir, now, DefaultConfig())

	provider := newTestWallet(t)
	ann := baseAnnouncement(t, provider, now, 1)

	err := g.Handle(from.Identity(), frameFor(t, ann, DefaultTTLHops))
	require.NoError(t, err)
	require.Equal(t, 1, g.book.Len())
	require.Equal(t, 1, g.SeenCount())
}

func TestHandleRejectsDuplicateSequence(t *testing.T) {
	now := time.Now()
	from := newTestWallet(t)
	dir := newFakeDirectory(from.Identity())
	g := newTestGossiper(t, dir, now, DefaultConfig())

	provider := newTestWallet(t)
	ann := baseAnnouncement(t, provider, now, 1)
	frame := frameFor(t, ann, DefaultTTLHops)

	require.NoError(t, g.Handle(from.Identity(), frame))
	err := g.Handle(from.Identity(), frame)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestHandleRejectsInvalidSignature(t *testing.T) {
	now := time.Now()
	from := newTestWallet(t)
	dir := newFakeDirectory(from.Identity())
	cfg := DefaultConfig()
	cfg.ReputationThreshold = -1000 // avoid disconnect noise in this test
	g := newTestGossiper(t, dir, now, cfg)

	provider := newTestWallet(t)
	ann := baseAnnouncement(t, provider, now, 1)

	// Corrupt the signed payload by mutating price after signing.
	ann.PricePerHour = 999999

	err := g.Handle(from.Identity(), frameFor(t, ann, DefaultTTLHops))
	require.Error(t, err)
}

func TestHandleRejectsExpiredAnnouncement(t *testing.T) {
	now := time.Now()
	from := newTestWallet(t)
	dir := newFakeDirectory(from.Identity())
	g := newTestGossiper(t, dir, now.Add(2*time.Hour), DefaultConfig())

	provider := newTestWallet(t)
	ann := baseAnnouncement(t, provider, now, 1) // expires now+1h

	err := g.Handle(from.Identity(), frameFor(t, ann, DefaultTTLHops))
	require.ErrorIs(t, err, ErrExpired)
}

func TestHandleRateLimitsAndDisconnectsOnRepeatedAbuse(t *testing.T) {
	now := time.Now()
	from := newTestWallet(t)
	dir := newFakeDirectory(from.Identity())

	cfg := DefaultConfig()
	cfg.MaxMessagesPerPeerPerMinute = 1
	cfg.ReputationThreshold = -1
	g := newTestGossiper(t, dir, now, cfg)

	provider := newTestWallet(t)
	ann1 := baseAnnouncement(t, provider, now, 1)
	require.NoError(t, g.Handle(from.Identity(), frameFor(t, ann1, DefaultTTLHops)))

	ann2 := baseAnnouncement(t, provider, now, 2)
	err := g.Handle(from.Identity(), frameFor(t, ann2, DefaultTTLHops))
	require.ErrorIs(t, err, ErrRateLimited)
	require.True(t, dir.wasDisconnected(from.Identity()))
}

func TestHandleQueuesRelayWithDecrementedTTL(t *testing.T) {
	now := time.Now()
	from, peerB, peerC := newTestWallet(t), newTestWallet(t), newTestWallet(t)
	dir := newFakeDirectory(from.Identity(), peerB.Identity(), peerC.Identity())

	cfg := DefaultConfig()
	cfg.Fanout = 2
	g := newTestGossiper(t, dir, now, cfg)

	provider := newTestWallet(t)
	ann := baseAnnouncement(t, provider, now, 1)

	require.NoError(t, g.Handle(from.Identity(), frameFor(t, ann, 3)))
	require.Equal(t, 1, g.trickle.Len())

	g.flushTrickle()

	// Relayed to the other two peers, never back to the sender.
	require.Empty(t, dir.sentTo(from.Identity()))
	require.NotEmpty(t, dir.sentTo(peerB.Identity()))
	require.NotEmpty(t, dir.sentTo(peerC.Identity()))

	frames := dir.sentTo(peerB.Identity())
	env, err := decodeGossipEnvelope(frames[0].Payload)
	require.NoError(t, err)
	require.EqualValues(t, 2, env.TTL)
}

func TestHandleDoesNotRelayWhenTTLExhausted(t *testing.T) {
	now := time.Now()
	from, peerB := newTestWallet(t), newTestWallet(t)
	dir := newFakeDirectory(from.Identity(), peerB.Identity())
	g := newTestGossiper(t, dir, now, DefaultConfig())

	provider := newTestWallet(t)
	ann := baseAnnouncement(t, provider, now, 1)

	require.NoError(t, g.Handle(from.Identity(), frameFor(t, ann, 0)))
	require.Equal(t, 0, g.trickle.Len())
}

func TestCachedAnnouncementExpiresAfterTTL(t *testing.T) {
	now := time.Now()
	from := newTestWallet(t)
	dir := newFakeDirectory(from.Identity())
	cfg := DefaultConfig()
	cfg.AnnouncementCacheTTL = time.Minute
	g := newTestGossiper(t, dir, now, cfg)

	provider := newTestWallet(t)
	ann := baseAnnouncement(t, provider, now, 1)
	require.NoError(t, g.Handle(from.Identity(), frameFor(t, ann, DefaultTTLHops)))

	_, ok := g.CachedAnnouncement(provider.Identity())
	require.True(t, ok)

	g.clock = fixedClock{at: now.Add(2 * time.Minute)}
	_, ok = g.CachedAnnouncement(provider.Identity())
	require.False(t, ok)
}

var _ clockutil.Clock = fixedClock{}
