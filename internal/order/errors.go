package order

import (
	"errors"
	"fmt"
)

var (
	ErrValidation               = errors.New("order: validation failed")
	ErrInsufficientAvailability = errors.New("order: insufficient availability")
	ErrPersistence              = errors.New("order: persistence failure")
)

// UnavailableError lists the items that cannot cover the requested quantity.
// Conflict is set when the shortage was found while writing rather than in the snapshot.
type UnavailableError struct {
	ItemIDs  []int64
	Conflict bool
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: items %v", ErrInsufficientAvailability, e.ItemIDs)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrInsufficientAvailability
}

// conflictError marks an attempt that lost a race for stock after its snapshot was taken.
type conflictError struct {
	itemIDs []int64
	err     error
}

func (e *conflictError) Error() string {
	return fmt.Sprintf("order: stock conflict on items %v: %v", e.itemIDs, e.err)
}

func (e *conflictError) Unwrap() error { return e.err }

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
