package orderbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInsertOfferRejectsStaleSequence(t *testing.T) {
	w := newTestWallet(t)
	now := time.Now()
	book := New(0)

	require.NoError(t, book.InsertOffer(baseAnnouncement(t, w, now, 5), now))
	err := book.InsertOffer(baseAnnouncement(t, w, now, 5), now)
	require.ErrorIs(t, err, ErrDuplicateSequence)
	err = book.InsertOffer(baseAnnouncement(t, w, now, 4), now)
	require.ErrorIs(t, err, ErrDuplicateSequence)
	require.Equal(t, 1, book.Len())
}

func TestInsertOfferHigherSequenceReplaces(t *testing.T) {
	w := newTestWallet(t)
	now := time.Now()
	book := New(0)

	require.NoError(t, book.InsertOffer(baseAnnouncement(t, w, now, 1), now))
	updated := baseAnnouncement(t, w, now, 2)
	updated.PricePerHour = 20
	require.NoError(t, book.InsertOffer(updated, now))
	require.Equal(t, 1, book.Len())
}

func TestInsertOfferRejectsBadSignature(t *testing.T) {
	w := newTestWallet(t)
	other := newTestWallet(t)
	now := time.Now()
	book := New(0)

	ann := baseAnnouncement(t, w, now, 1)
	ann.Signature = other.Sign(announcementDomain, []byte("not the real payload"))
	require.Error(t, book.InsertOffer(ann, now))
}

func TestInsertOfferRejectsExcessiveLifetime(t *testing.T) {
	w := newTestWallet(t)
	now := time.Now()
	book := New(0)

	ann := baseAnnouncement(t, w, now, 1)
	ann.ExpiresAt = now.Add(MaxOfferLifetime + time.Hour)
	ann.Sign(w)
	require.ErrorIs(t, book.InsertOffer(ann, now), ErrInvalidAnnouncement)
}

func TestRemoveOfferRequiresMatchingSequence(t *testing.T) {
	w := newTestWallet(t)
	now := time.Now()
	book := New(0)
	ann := baseAnnouncement(t, w, now, 7)
	require.NoError(t, book.InsertOffer(ann, now))

	require.ErrorIs(t, book.RemoveOffer(w.Identity(), 6), ErrNotFound)
	require.NoError(t, book.RemoveOffer(w.Identity(), 7))
	require.Equal(t, 0, book.Len())
}

func TestPruneExpiredRemovesOnlyExpiredOffers(t *testing.T) {
	now := time.Now()
	book := New(0)

	stale := newTestWallet(t)
	fresh := newTestWallet(t)

	staleAnn := baseAnnouncement(t, stale, now, 1)
	staleAnn.ExpiresAt = now.Add(time.Second)
	staleAnn.Sign(stale)
	require.NoError(t, book.InsertOffer(staleAnn, now))
	require.NoError(t, book.InsertOffer(baseAnnouncement(t, fresh, now, 1), now))

	removed := book.PruneExpired(now.Add(2 * time.Second))
	require.Equal(t, 1, removed)
	require.Equal(t, 1, book.Len())
}

func TestAggregateCapEvictsOldestOffer(t *testing.T) {
	// spec.md section 8 scenario 3: 10,000 distinct peers each send one
	// announcement against an aggregate cap of 1000; the book holds
	// exactly 1000 afterward and the survivors are the most recent
	// arrivals.
	const cap = 1000
	const flood = 10_000

	now := time.Now()
	book := New(cap)

	for i := 0; i < flood; i++ {
		w := newTestWallet(t)
		require.NoError(t, book.InsertOffer(baseAnnouncement(t, w, now, 1), now))
	}

	require.Equal(t, cap, book.Len())
}
