package orderbook

import "github.com/go-errors/errors"

// Sentinel errors per spec.md section 7's OrderbookError taxonomy, plus
// ErrInvalidAnnouncement for the structural timestamp/lifetime checks
// spec.md section 3 requires at the data-model layer.
var (
	ErrUnknown             = errors.New("orderbook: unknown offer")
	ErrDuplicateSequence   = errors.New("orderbook: duplicate or stale sequence")
	ErrCapacity            = errors.New("orderbook: capacity exceeded")
	ErrNotFound            = errors.New("orderbook: not found")
	ErrInvalidAnnouncement = errors.New("orderbook: invalid announcement")
	ErrInvalidRequirements = errors.New("orderbook: invalid requirements")
)
