package store

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates the caller supplied unusable input; nothing was changed.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates no activity carries the requested id.
	ErrNotFound = errors.New("activity not found")
	// ErrIDUnavailable indicates the id generator kept producing ids already in use.
	ErrIDUnavailable = errors.New("no unique activity id available")
)

// PersistenceError reports a failed read, write or remove against the
// key-value medium.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// DecodeError reports a stored payload that isn't well-formed. Stores recover
// from it by starting from empty state.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
