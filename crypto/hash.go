package crypto

import (
	"lukechampine.com/blake3"
)

// DigestSize is the length in bytes of a domain-separated digest.
const DigestSize = 32

// HashDomain hashes the concatenation of pieces under a unique domain
// tag, so the same bytes signed or hashed under one protocol (e.g.
// "capacity_announcement_v1") can never be confused with another
// (e.g. "execution_attestation_v1"). This is the cross-protocol
// attack prevention spec.md section 4.1 describes.
func HashDomain(domain string, pieces ...[]byte) [DigestSize]byte {
	h := blake3.New(DigestSize, nil)

	// Length-prefix the domain tag so "ab"+"c" and "a"+"bc" never
	// collide across calls with a different piece count.
	h.Write(lengthPrefix(domain))
	for _, p := range pieces {
		h.Write(lengthPrefix(p))
	}

	var out [DigestSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// lengthPrefix accepts either a string or []byte and returns a
// 4-byte-big-endian-length-prefixed encoding.
func lengthPrefix[T string | []byte](v T) []byte {
	b := []byte(v)
	out := make([]byte, 4+len(b))
	out[0] = byte(len(b) >> 24)
	out[1] = byte(len(b) >> 16)
	out[2] = byte(len(b) >> 8)
	out[3] = byte(len(b))
	copy(out[4:], b)
	return out
}
