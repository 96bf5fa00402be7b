package fixture

import "errors"

// Sentinel errors for working set files.
var (
	ErrInvalidFixture = errors.New("invalid fixture")
)
