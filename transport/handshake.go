package transport

import (
	"crypto/rand"
	"io"

	molcrypto "github.com/molt-labs/molt-core/crypto"
	"github.com/molt-labs/molt-core/identity"
)

const handshakeDomain = "transport_handshake_v1"

// rawConn is the minimal send/recv primitive handshake needs, so it
// can run over any framed byte-message transport (today only
// websocket.go's wsRawConn adapter over *websocket.Conn satisfies it).
type rawConn interface {
	writeBinary(b []byte) error
	readBinary() ([]byte, error)
}

// handshake performs a symmetric mutual identity proof over conn: each
// side sends a random nonce, then proves ownership of its claimed
// identity by signing the nonce it received from the other side. A
// connection that completes this exchange is authenticated in the
// sense spec.md section 1 assumes transport already provides; no
// further identity check happens above this layer.
func handshake(conn rawConn, self *identity.Wallet) (identity.PeerIdentity, error) {
	localNonce := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, localNonce); err != nil {
		return identity.PeerIdentity{}, ErrHandshakeFailed
	}
	if err := conn.writeBinary(localNonce); err != nil {
		return identity.PeerIdentity{}, ErrHandshakeFailed
	}

	remoteNonce, err := conn.readBinary()
	if err != nil || len(remoteNonce) != 32 {
		return identity.PeerIdentity{}, ErrHandshakeFailed
	}

	sig := self.Sign(handshakeDomain, remoteNonce)
	proof := append(append([]byte{}, self.Identity().Bytes()...), sig.Bytes()...)
	if err := conn.writeBinary(proof); err != nil {
		return identity.PeerIdentity{}, ErrHandshakeFailed
	}

	remoteProof, err := conn.readBinary()
	if err != nil || len(remoteProof) != 32+64 {
		return identity.PeerIdentity{}, ErrHandshakeFailed
	}

	remotePeer, err := identity.PeerIdentityFromBytes(remoteProof[:32])
	if err != nil {
		return identity.PeerIdentity{}, ErrHandshakeFailed
	}
	remoteSig, err := molcrypto.SignatureFromBytes(remoteProof[32:])
	if err != nil {
		return identity.PeerIdentity{}, ErrHandshakeFailed
	}

	if err := molcrypto.VerifyStrict(remotePeer.VerifyingKey(), handshakeDomain, localNonce, remoteSig); err != nil {
		return identity.PeerIdentity{}, ErrHandshakeFailed
	}

	return remotePeer, nil
}
