package store

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all store functions. Handlers map them to
// HTTP statuses with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrValidation           = errors.New("invalid input")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrConflict             = errors.New("conflict")
	ErrInUse                = errors.New("in use")
)

// ValidationError carries a client-facing message and matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string        { return e.Msg }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientError reports which item could not cover an approval.
type InsufficientError struct {
	ItemID    int64
	Requested int
	Available int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient quantity for item %d: requested %d, available %d",
		e.ItemID, e.Requested, e.Available)
}

func (e *InsufficientError) Is(target error) bool { return target == ErrInsufficientQuantity }

// InUseError reports a record that other rows still depend on. Unlike
// ErrConflict, retrying will not help.
type InUseError struct {
	Msg string
}

func (e *InUseError) Error() string        { return e.Msg }
func (e *InUseError) Is(target error) bool { return target == ErrInUse }
