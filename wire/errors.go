package wire

import "github.com/go-errors/errors"

// Sentinel errors for the framing layer, per spec.md section 7's WireError
// taxonomy.
var (
	// ErrTooLarge is returned when a frame's declared or actual
	// payload length exceeds the caller-supplied maximum.
	ErrTooLarge = errors.New("wire: payload too large")

	// ErrUnsupportedVersion is returned when a frame's version byte is
	// higher than CurrentVersion.
	ErrUnsupportedVersion = errors.New("wire: unsupported version")

	// ErrUnknownMessageType is returned when a frame's type byte is
	// not one of the closed enumeration of MessageType values.
	ErrUnknownMessageType = errors.New("wire: unknown message type")

	// ErrMalformed is returned for any other structurally invalid
	// frame (truncated header, truncated payload, bad element
	// encoding).
	ErrMalformed = errors.New("wire: malformed message")
)
