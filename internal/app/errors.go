package service

import "errors"

// Service errors.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrUnknownDriver = errors.New("unknown repository driver")
)
