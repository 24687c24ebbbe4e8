package eventstore

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable marks failures of the underlying filesystem.
	ErrStorageUnavailable = errors.New("event storage unavailable")

	// ErrCorruptDayFile is returned when a day-file exists but is not a JSON event array.
	ErrCorruptDayFile = errors.New("corrupt event day-file")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("event store is closed")
)

// StorageError describes a failed filesystem operation on the event log.
// It matches both ErrStorageUnavailable and the underlying error with errors.Is.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("eventstore: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}
