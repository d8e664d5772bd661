package store

import "errors"

var (
	// ErrNotFound is returned when a write targets a record that doesn't exist or is deleted.
	ErrNotFound = errors.New("cookhouse/store: record not found")

	// ErrAlreadyExists is returned when Create or Push finds a live record at the key.
	ErrAlreadyExists = errors.New("cookhouse/store: record already exists")

	// ErrInvalidPath is returned for empty paths, empty segments, or operations
	// the path level doesn't support (e.g. overwriting a whole collection).
	ErrInvalidPath = errors.New("cookhouse/store: invalid path")

	// ErrInvalidValue is returned when a record-level write is not a map or struct.
	ErrInvalidValue = errors.New("cookhouse/store: invalid value")

	// ErrTooManyPaths is returned when a multi-path update spans more records
	// than a single transaction can hold.
	ErrTooManyPaths = errors.New("cookhouse/store: too many records in one update")

	// ErrOverlappingPaths is returned when a multi-path update writes a path and one of its ancestors.
	ErrOverlappingPaths = errors.New("cookhouse/store: overlapping paths in one update")
)
