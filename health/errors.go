package health

import "errors"

var (
	// ErrCheckFailed indicates a health check failed.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a health check exceeded its timeout. It is
	// recorded in the check's history; unrelated callers never see it.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckNotFound indicates no check is registered under the name.
	ErrCheckNotFound = errors.New("health: check not found")
)
