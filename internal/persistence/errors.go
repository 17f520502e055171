package persistence

import "errors"

var (
	// ErrUnknownDriver is returned when a target names an unsupported database driver.
	ErrUnknownDriver = errors.New("persistence: unknown database driver")
	// ErrEmptyDSN is returned when a target carries no connection string.
	ErrEmptyDSN = errors.New("persistence: empty connection string")
)
