package gossip

import (
	"github.com/molt-labs/molt-core/orderbook"
	"github.com/molt-labs/molt-core/wire"
)

// DefaultTTLHops is the hop budget a freshly published announcement
// starts with, per spec.md section 4.7.
const DefaultTTLHops = 6

// DefaultFanout is the number of peers a message is forwarded to at
// each hop, per spec.md section 4.7.
const DefaultFanout = 3

// gossipEnvelope is the payload carried inside a wire.Frame of type
// TypeAnnouncement: the signed announcement plus the hop budget
// decremented at every relay. The base wire envelope (version, type,
// length) has no room for protocol metadata beyond the payload
// length, so TTL travels as the payload's own first field.
type gossipEnvelope struct {
	TTL          uint8
	Announcement orderbook.CapacityAnnouncement
}

func (e gossipEnvelope) encode() []byte {
	w := wire.NewWriter()
	w.WriteUint8(e.TTL)
	e.Announcement.Encode(w)
	return w.Bytes()
}

func decodeGossipEnvelope(b []byte) (gossipEnvelope, error) {
	r := wire.NewReader(b)
	ttl := r.ReadUint8()
	if r.Err() != nil {
		return gossipEnvelope{}, r.Err()
	}
	// The remaining bytes belong to the announcement; hand the reader's
	// unread tail to the announcement decoder by re-slicing, since
	// orderbook.DecodeAnnouncement takes a byte slice, not a Reader.
	rest := b[1:]
	ann, err := orderbook.DecodeAnnouncement(rest)
	if err != nil {
		return gossipEnvelope{}, err
	}
	return gossipEnvelope{TTL: ttl, Announcement: ann}, nil
}
