package gossip

import "github.com/go-errors/errors"

// Failures surfaced to the caller of Handle, per spec.md section 4.7:
// "RateLimited, Duplicate, InvalidSignature, Expired, MalformedWire,
// UnknownMessageType, UnsupportedVersion, TooLarge". None are fatal;
// the caller logs and the peer continues. InvalidSignature,
// UnknownMessageType, UnsupportedVersion, and TooLarge are surfaced
// directly from the crypto and wire packages rather than re-declared
// here.
var (
	ErrRateLimited   = errors.New("gossip: rate limited")
	ErrDuplicate     = errors.New("gossip: duplicate announcement")
	ErrExpired       = errors.New("gossip: announcement expired")
	ErrDisconnected  = errors.New("gossip: peer disconnected")
	ErrUnknownSender = errors.New("gossip: message from unrecognized peer")
)
