package ledger

import "errors"

// Sentinel kinds for ledger bookkeeping failures. Request-level failures use the fault kinds.
var (
	ErrInvariantViolated   = errors.New("capacity invariant violated")
	ErrReservationMismatch = errors.New("allocation does not match reservation")
)
