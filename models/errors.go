package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by storage, services and handlers. Callers wrap them with %w
// and inspect with errors.Is.
var (
	// ErrEntityNotFound is returned when a case, court or defendant does not exist
	ErrEntityNotFound = errors.New("entity not found")
	// ErrDefendantNotFound is a reconciliation precondition failure
	ErrDefendantNotFound = errors.New("defendant not found on existing case")
	// ErrNoDefendants marks a case read back without any defendant
	ErrNoDefendants = errors.New("court case has no defendants")
	// ErrLockAcquisition is the transient storage contention signal
	ErrLockAcquisition = errors.New("cannot acquire lock")
	// ErrStaleRecord is returned when an optimistic version check fails
	ErrStaleRecord = errors.New("record modified concurrently")
	// ErrInvalidRequest marks a malformed inbound payload
	ErrInvalidRequest = errors.New("invalid request")
)

// LockError carries the storage driver error behind a lock-acquisition failure.
// errors.Is(err, ErrLockAcquisition) holds for every LockError.
type LockError struct {
	Err error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("%s: %v", ErrLockAcquisition, e.Err)
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the transient sentinel
func (e *LockError) Is(target error) bool {
	return target == ErrLockAcquisition
}

// IsTransient reports whether err is a lock-acquisition failure worth retrying
func IsTransient(err error) bool {
	return errors.Is(err, ErrLockAcquisition)
}

// NotFound builds an ErrEntityNotFound with a description of the missing entity
func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrEntityNotFound, fmt.Sprintf(format, args...))
}
