package domain

import "errors"

var (
	// ErrNotFound is returned when an operation references an unknown target id.
	ErrNotFound = errors.New("target not found")

	// ErrInvalidConfig is returned when target parameters are rejected.
	ErrInvalidConfig = errors.New("invalid target config")

	// ErrConflict is returned when a target with the same URL already exists.
	ErrConflict = errors.New("target already exists")
)
