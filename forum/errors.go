package forum

import (
	"errors"

	"github.com/jacentio/cookhouse/store"
)

var (
	// ErrNotFound is the kind of errors for reads of missing posts, comments or users.
	ErrNotFound = errors.New("cookhouse/forum: not found")

	// ErrStoreWrite is the kind of errors for failed create, update or remove
	// calls, including writes that target a missing record.
	ErrStoreWrite = errors.New("cookhouse/forum: store write failed")

	// ErrStoreRead is the kind of errors for failed reads and queries.
	ErrStoreRead = errors.New("cookhouse/forum: store read failed")

	// ErrProtectedField is the kind of errors for profile edits that target
	// identity, role or reaction fields.
	ErrProtectedField = errors.New("cookhouse/forum: field cannot be edited")
)

// Error is returned by every Service operation. Its message is meant for
// the user; the transport detail is logged, not carried.
type Error struct {
	// Op is the operation that failed (e.g. "CreatePost").
	Op string

	// Kind is one of ErrNotFound, ErrStoreWrite, ErrStoreRead, ErrProtectedField.
	Kind error

	// Message is the fixed human-readable message.
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// kindOf maps a read error to an error kind. A missing record surfaces as
// ErrNotFound; failed writes are always ErrStoreWrite.
func kindOf(err, fallback error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fallback
}
