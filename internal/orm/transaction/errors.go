package transaction

import (
	"errors"
	"fmt"
)

var (
	// ErrUnitOfWorkClosed is returned by any operation after Commit or Discard
	ErrUnitOfWorkClosed = errors.New("unit of work closed")
	// ErrNotTracked is returned when deleting an entity the unit never saw
	ErrNotTracked = errors.New("entity not tracked")
	// ErrAlreadyTracked is returned when an entity is registered twice
	ErrAlreadyTracked = errors.New("entity already tracked")
	// ErrUnitOfWorkTimeout is returned when a unit exceeds its deadline
	ErrUnitOfWorkTimeout = errors.New("unit of work timeout")
)

// EntityError names the entity an operation failed on
type EntityError struct {
	Op     string
	Entity string
	Err    error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *EntityError) Unwrap() error { return e.Err }

// IsClosed returns true if err reports a closed unit of work
func IsClosed(err error) bool {
	return errors.Is(err, ErrUnitOfWorkClosed)
}
