package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalletSignAndAddress(t *testing.T) {
	w, err := NewWallet()
	require.NoError(t, err)
	defer w.Destroy()

	require.NotEmpty(t, w.Address())

	sig := w.Sign("capacity_announcement_v1", []byte("payload"))
	vk := w.Identity().VerifyingKey()
	_ = sig
	_ = vk
}

func TestWalletDestroyScrubsKey(t *testing.T) {
	w, err := NewWallet()
	require.NoError(t, err)

	w.Destroy()
	require.Panics(t, func() {
		w.Sign("d", []byte("msg"))
	})

	// Destroy is idempotent.
	require.NotPanics(t, func() { w.Destroy() })
}

func TestPeerIdentityEqualityAndOrdering(t *testing.T) {
	w1, err := NewWallet()
	require.NoError(t, err)
	defer w1.Destroy()
	w2, err := NewWallet()
	require.NoError(t, err)
	defer w2.Destroy()

	id1 := w1.Identity()
	id2 := w2.Identity()

	require.True(t, id1.Equal(id1))
	require.False(t, id1.Equal(id2))

	roundTrip, err := PeerIdentityFromBytes(id1.Bytes())
	require.NoError(t, err)
	require.True(t, id1.Equal(roundTrip))

	// Less must be a strict, irreflexive total order over the byte
	// encoding so match tie-breaking is deterministic across peers.
	require.False(t, id1.Less(id1))
	require.NotEqual(t, id1.Less(id2), id2.Less(id1))
}
