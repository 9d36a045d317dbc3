package escrow

import (
	"fmt"

	"github.com/go-errors/errors"
)

var (
	// ErrUnauthorized is returned when the calling identity is not
	// permitted to perform the requested state transition, per spec.md
	// section 4.5's per-transition caller table.
	ErrUnauthorized = errors.New("escrow: caller not authorized for this transition")

	// ErrNotYetUnlocked is returned when Refund is attempted before
	// locked_until has passed and no dispute has been raised.
	ErrNotYetUnlocked = errors.New("escrow: locked_until has not yet passed")

	// ErrAlreadyFunded is returned when Fund is called on an account
	// that has already left the Created state.
	ErrAlreadyFunded = errors.New("escrow: already funded")

	// ErrNotFound is returned when an operation names an escrow ID the
	// store has no record of.
	ErrNotFound = errors.New("escrow: account not found")
)

// InvalidStateTransitionError reports an attempt to move an account
// between two states with no edge between them in the state machine.
type InvalidStateTransitionError struct {
	From State
	To   State
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("escrow: invalid transition %s -> %s", e.From, e.To)
}
