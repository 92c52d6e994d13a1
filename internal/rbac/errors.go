package rbac

import "errors"

var (
	ErrNotFound     = errors.New("rbac: not found")
	ErrConflict     = errors.New("rbac: conflict")
	ErrCycle        = errors.New("rbac: module hierarchy cycle")
	ErrInvalidInput = errors.New("rbac: invalid input")

	// ErrResolution wraps repository or cache failures that occur while
	// computing an effective permission set. The decision layer converts it
	// to a denial, never to an allow.
	ErrResolution = errors.New("rbac: permission resolution failed")
)
