package settlement

import "github.com/go-errors/errors"

// ErrOverflow is returned when the 128-bit intermediate computation in
// compute_payout would not fit back into an unsigned 64-bit result.
var ErrOverflow = errors.New("settlement: overflow")
