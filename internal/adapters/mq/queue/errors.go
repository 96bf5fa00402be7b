package queue

import (
	"fmt"

	"github.com/okian/allot/internal/domain/fault"
)

// Sentinel kinds for enqueue failures. Both report backpressure to callers.
var (
	ErrClosed = fmt.Errorf("solve queue closed: %w", fault.ErrBackpressure)
	ErrFull   = fmt.Errorf("solve queue full: %w", fault.ErrBackpressure)
)
