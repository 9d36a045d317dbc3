package identity

import (
	"crypto/subtle"

	"github.com/decred/base58"
	molcrypto "github.com/molt-labs/molt-core/crypto"
)

// Wallet is the exclusive owner of a signing key for its entire
// lifetime. No other component ever holds a copy of the key; signing
// always happens inside the wallet.
type Wallet struct {
	signing  molcrypto.SigningKey
	identity PeerIdentity
	wiped    bool
}

// NewWallet generates a fresh keypair and wraps it in a Wallet.
func NewWallet() (*Wallet, error) {
	sk, vk, err := molcrypto.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	return &Wallet{
		signing:  sk,
		identity: NewPeerIdentity(vk),
	}, nil
}

// WalletFromSigningKey wraps an existing signing key, e.g. loaded from
// sealed storage at startup.
func WalletFromSigningKey(sk molcrypto.SigningKey) *Wallet {
	return &Wallet{
		signing:  sk,
		identity: NewPeerIdentity(sk.Public()),
	}
}

// Identity returns the wallet's public identity.
func (w *Wallet) Identity() PeerIdentity {
	return w.identity
}

// Address returns the canonical base58 encoding of the wallet's
// verifying key, the wallet address spec.md section 3 defines.
func (w *Wallet) Address() string {
	return base58.Encode(w.identity.Bytes())
}

// Sign signs message under domain using the wallet's exclusively-owned
// signing key. It panics if the wallet has been destroyed, since
// signing after Destroy is a programming error, not a runtime
// condition callers should branch on.
func (w *Wallet) Sign(domain string, message []byte) molcrypto.Signature {
	if w.wiped {
		panic("identity: Sign called on a destroyed wallet")
	}
	return molcrypto.Sign(w.signing, domain, message)
}

// Destroy scrubs the signing key from memory. After Destroy, the
// Wallet must not be used for signing again. Comparable in spirit to
// RAII-style key teardown; Go has no destructors, so callers must call
// this explicitly (e.g. via defer) when a wallet goes out of scope.
func (w *Wallet) Destroy() {
	if w.wiped {
		return
	}
	raw := w.signing.Bytes()
	zero := make([]byte, len(raw))
	subtle.ConstantTimeCopy(1, raw, zero)
	w.wiped = true
}
