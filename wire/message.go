// Package wire implements the MOLT framing layer: a version byte, a
// type discriminator, and a length-prefixed payload with an enforced
// maximum, per spec.md section 4.2 and section 6. It is deliberately the
// lowest-level, dependency-free component in the module — it knows
// nothing about announcements, orders, or attestations, only about
// framing opaque payload bytes. Concrete message payloads are defined
// and canonically encoded by their owning packages (orderbook,
// attestation, escrow) using the element helpers in elements.go.
//
// Grounded on lnwire.WriteMessage/ReadMessage (backend-engineer1-land
// lnwire/message.go), generalized from lnd's 2-byte type-only header
// to the version+type+u32-length header spec.md section 6 specifies.
package wire

import (
	"encoding/binary"
	"io"
)

// CurrentVersion is the only protocol version this core speaks. Higher
// versions are rejected outright; a handshake to negotiate downgrade,
// if ever added, lives outside this package.
const CurrentVersion uint8 = 2

// Recommended maximum payload sizes from spec.md section 4.2.
const (
	MaxMessageBytesGossip = 64 * 1024
	MaxMessageBytesP2P    = 1 * 1024 * 1024
)

// MessageType is the closed enumeration of recognized payload kinds.
type MessageType uint8

const (
	TypeAnnouncement  MessageType = 1
	TypeOrderRequest  MessageType = 2
	TypeOrderResponse MessageType = 3
	TypeAttestation   MessageType = 4
	TypeEscrowRequest MessageType = 5
	TypeEscrowSignal  MessageType = 6
)

// Valid reports whether t is one of the recognized message types.
func (t MessageType) Valid() bool {
	switch t {
	case TypeAnnouncement, TypeOrderRequest, TypeOrderResponse,
		TypeAttestation, TypeEscrowRequest, TypeEscrowSignal:
		return true
	}
	return false
}

// Frame is a decoded wire envelope: the type discriminator plus the
// raw payload bytes. The caller (agent) is responsible for dispatching
// Payload to the right package's unmarshaler based on Type.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// WriteFrame writes version, type, length, and payload to w, enforcing
// maxPayload on the encoded length before writing anything.
func WriteFrame(w io.Writer, f Frame, maxPayload int) error {
	if !f.Type.Valid() {
		return ErrUnknownMessageType
	}
	if len(f.Payload) > maxPayload {
		return ErrTooLarge
	}

	var header [6]byte
	header[0] = CurrentVersion
	header[1] = byte(f.Type)
	binary.BigEndian.PutUint32(header[2:6], uint32(len(f.Payload)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(f.Payload) == 0 {
		return nil
	}
	_, err := w.Write(f.Payload)
	return err
}

// ReadFrame reads and validates a wire envelope from r, enforcing
// maxPayload on the declared length before allocating a buffer for it.
func ReadFrame(r io.Reader, maxPayload int) (Frame, error) {
	var header [6]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, ErrMalformed
	}

	version := header[0]
	if version > CurrentVersion {
		return Frame{}, ErrUnsupportedVersion
	}

	msgType := MessageType(header[1])
	if !msgType.Valid() {
		return Frame{}, ErrUnknownMessageType
	}

	length := binary.BigEndian.Uint32(header[2:6])
	if int(length) > maxPayload {
		return Frame{}, ErrTooLarge
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, ErrMalformed
		}
	}

	return Frame{Type: msgType, Payload: payload}, nil
}
