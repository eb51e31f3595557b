package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same key already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrStaleState is returned when a conditional update finds the record in
	// a different state than expected.
	ErrStaleState = errors.New("persistence: record changed concurrently")
)
