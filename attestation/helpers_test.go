package attestation

import (
	"testing"

	"github.com/molt-labs/molt-core/identity"
)

func newTestWallet(t *testing.T) *identity.Wallet {
	t.Helper()
	w, err := identity.NewWallet()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	t.Cleanup(w.Destroy)
	return w
}
