package ecs

import "errors"

var (
	// ErrEntityNotFound is returned when an operation names an entity that
	// does not exist (no components attached).
	ErrEntityNotFound = errors.New("entity not found")

	// ErrNotOwned is returned when a module view attempts to mutate an
	// entity that does not carry the view's flag component.
	ErrNotOwned = errors.New("entity not owned by this module")
)
