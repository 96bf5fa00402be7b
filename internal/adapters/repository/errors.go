package repository

import (
	"errors"
	"fmt"

	"github.com/okian/allot/internal/domain/fault"
)

// Sentinel kinds for repository errors. ErrNotFound matches fault.ErrNotFound.
var (
	ErrNotFound      = fmt.Errorf("record %w", fault.ErrNotFound)
	ErrInvalidRecord = errors.New("invalid record")
	ErrClosed        = errors.New("repository closed")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}
