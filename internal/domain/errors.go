package domain

import "errors"

var (
	// ErrValidation marks malformed or duplicate submissions. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks lookups for a batch that has no record at all.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a registration that is already in flight or whose
	// record moved state underneath a guarded update.
	ErrConflict = errors.New("conflict")

	// ErrNotRecorded marks a batch that exists but has not reached RECORDED,
	// so it is not yet verifiable.
	ErrNotRecorded = errors.New("not recorded")
)
