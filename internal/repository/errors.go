package repository

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable matches every StoreUnavailableError via errors.Is.
var ErrStoreUnavailable = errors.New("store unavailable")

// StoreUnavailableError reports that report definitions or watermarks could
// not be read or written. It is fatal for the current cycle.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

func unavailable(op string, err error) error {
	return &StoreUnavailableError{Op: op, Err: err}
}
