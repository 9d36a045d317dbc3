// Package identity defines peer identity (an Ed25519 verifying key)
// and the Wallet that exclusively owns the matching signing key for
// its lifetime, mirroring the way the teacher treats a node's public
// key as its identity throughout lnwire and discovery.
package identity

import (
	"encoding/hex"

	molcrypto "github.com/molt-labs/molt-core/crypto"
)

// PeerIdentity is a node's Ed25519 verifying key. Equality is byte
// equality of the underlying key; there is no other notion of peer
// identity in MOLT.
type PeerIdentity struct {
	vk molcrypto.VerifyingKey
}

// NewPeerIdentity wraps a verifying key as a PeerIdentity.
func NewPeerIdentity(vk molcrypto.VerifyingKey) PeerIdentity {
	return PeerIdentity{vk: vk}
}

// PeerIdentityFromBytes parses a 32-byte verifying key into a
// PeerIdentity.
func PeerIdentityFromBytes(b []byte) (PeerIdentity, error) {
	vk, err := molcrypto.VerifyingKeyFromBytes(b)
	if err != nil {
		return PeerIdentity{}, err
	}
	return PeerIdentity{vk: vk}, nil
}

// VerifyingKey returns the underlying verifying key, e.g. to pass to
// crypto.VerifyStrict.
func (p PeerIdentity) VerifyingKey() molcrypto.VerifyingKey {
	return p.vk
}

// Bytes returns the 32-byte encoding of the identity.
func (p PeerIdentity) Bytes() []byte {
	return p.vk.Bytes()
}

// Equal reports whether two identities name the same peer.
func (p PeerIdentity) Equal(other PeerIdentity) bool {
	return p.vk.Equal(other.vk)
}

// IsZero reports whether the identity was never populated.
func (p PeerIdentity) IsZero() bool {
	return p.vk.IsZero()
}

// Less provides the deterministic byte-order comparison spec.md
// section 4.4 uses to break matching ties: "ties are broken by lower
// peer identity byte order".
func (p PeerIdentity) Less(other PeerIdentity) bool {
	a, b := p.Bytes(), other.Bytes()
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// String renders the identity as a hex string, for logs and debug
// dumps (spew.Sdump prints the struct directly; this is for %s/Print
// call sites that want a short form).
func (p PeerIdentity) String() string {
	return hex.EncodeToString(p.Bytes())
}
