package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrStale indicates a conditional update lost against a concurrent writer:
	// the row exists but its guarded column no longer matches the expectation.
	ErrStale = errors.New("repository: stale state")
	// ErrDuplicate indicates a uniqueness constraint was violated.
	ErrDuplicate = errors.New("repository: duplicate")
)
