package tracking

import (
	"errors"
	"fmt"
)

// ErrIncompatibleSnapshot is returned when diffing snapshots of different classes
var ErrIncompatibleSnapshot = errors.New("incompatible snapshots")

// IncompatibleSnapshotError names the classes of both snapshots
type IncompatibleSnapshotError struct {
	Before string
	After  string
}

func (e *IncompatibleSnapshotError) Error() string {
	return fmt.Sprintf("incompatible snapshots: cannot diff %s against %s", e.Before, e.After)
}

func (e *IncompatibleSnapshotError) Unwrap() error { return ErrIncompatibleSnapshot }

// IsIncompatibleSnapshot returns true if the error is ErrIncompatibleSnapshot
func IsIncompatibleSnapshot(err error) bool {
	return errors.Is(err, ErrIncompatibleSnapshot)
}
