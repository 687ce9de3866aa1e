package fetchplan

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPlan is returned when a named plan is declared nowhere in the
	// class hierarchy
	ErrUnknownPlan = errors.New("unknown fetch plan")

	// ErrInvalidPlan is returned for malformed plan declarations such as an
	// extends cycle
	ErrInvalidPlan = errors.New("invalid fetch plan")

	// ErrMaxDepthExceeded is returned when a traversal exceeds its depth limit
	ErrMaxDepthExceeded = errors.New("maximum fetch plan depth exceeded")
)

// UnknownPlanError names the class and the missing plan
type UnknownPlanError struct {
	Class string
	Plan  string
}

func (e *UnknownPlanError) Error() string {
	return fmt.Sprintf("unknown fetch plan %q for %s", e.Plan, e.Class)
}

func (e *UnknownPlanError) Unwrap() error { return ErrUnknownPlan }

// IsUnknownPlan returns true if the error is ErrUnknownPlan
func IsUnknownPlan(err error) bool {
	return errors.Is(err, ErrUnknownPlan)
}
