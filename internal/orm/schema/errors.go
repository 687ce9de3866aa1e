package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below unwrap to one of these, so callers may
// match with errors.Is or extract details with errors.As.
var (
	// ErrUnknownEntity is returned when a class name is not registered
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrInvalidPropertyPath is returned when a dotted path cannot be resolved
	ErrInvalidPropertyPath = errors.New("invalid property path")

	// ErrInvalidHierarchy is returned for inheritance cycles and unknown ancestors
	ErrInvalidHierarchy = errors.New("invalid inheritance hierarchy")

	// ErrRegistryFrozen is returned when registering into a built registry
	ErrRegistryFrozen = errors.New("registry is frozen")

	// ErrUnknownProperty is returned when a property is absent from a class
	ErrUnknownProperty = errors.New("unknown property")

	// ErrNotAnAssociation is returned when a scalar property is used as an association
	ErrNotAnAssociation = errors.New("property is not an association")

	// ErrClassMismatch is returned when a value belongs to another class than expected
	ErrClassMismatch = errors.New("class mismatch")

	// ErrDuplicateClass is returned when two declarations share a name
	ErrDuplicateClass = errors.New("duplicate class")

	// ErrUnknownDatatype is returned for an unrecognised datatype id
	ErrUnknownDatatype = errors.New("unknown datatype")

	// ErrRegistryNotBuilt is returned when the default registry is read before Init
	ErrRegistryNotBuilt = errors.New("registry not built")
)

// UnknownEntityError names the missing class
type UnknownEntityError struct {
	Name string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity: %s", e.Name)
}

func (e *UnknownEntityError) Unwrap() error { return ErrUnknownEntity }

// InvalidPropertyPathError names the path and its first unresolvable segment
type InvalidPropertyPathError struct {
	Path    string
	Segment string
	Reason  string
}

func (e *InvalidPropertyPathError) Error() string {
	msg := fmt.Sprintf("invalid property path %q: cannot resolve segment %q", e.Path, e.Segment)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidPropertyPathError) Unwrap() error { return ErrInvalidPropertyPath }

// InvalidHierarchyError describes an inheritance cycle or a dangling ancestor
type InvalidHierarchyError struct {
	Class  string
	Cycle  []string
	Reason string
}

func (e *InvalidHierarchyError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("invalid inheritance hierarchy: cycle %s -> %s",
			strings.Join(e.Cycle, " -> "), e.Cycle[0])
	}
	return fmt.Sprintf("invalid inheritance hierarchy: %s: %s", e.Class, e.Reason)
}

func (e *InvalidHierarchyError) Unwrap() error { return ErrInvalidHierarchy }

// RegistryFrozenError is returned by registration attempts after build
type RegistryFrozenError struct {
	Class string
}

func (e *RegistryFrozenError) Error() string {
	if e.Class == "" {
		return ErrRegistryFrozen.Error()
	}
	return fmt.Sprintf("registry is frozen: cannot register %s", e.Class)
}

func (e *RegistryFrozenError) Unwrap() error { return ErrRegistryFrozen }

// UnknownPropertyError names the class and the missing property
type UnknownPropertyError struct {
	Class    string
	Property string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("unknown property %q on %s", e.Property, e.Class)
}

func (e *UnknownPropertyError) Unwrap() error { return ErrUnknownProperty }

// NotAnAssociationError names a scalar property used where an association is required
type NotAnAssociationError struct {
	Class    string
	Property string
}

func (e *NotAnAssociationError) Error() string {
	return fmt.Sprintf("property %q on %s is not an association", e.Property, e.Class)
}

func (e *NotAnAssociationError) Unwrap() error { return ErrNotAnAssociation }

// ClassMismatchError reports a value of class Actual where Expected was required
type ClassMismatchError struct {
	Expected string
	Actual   string
}

func (e *ClassMismatchError) Error() string {
	return fmt.Sprintf("class mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func (e *ClassMismatchError) Unwrap() error { return ErrClassMismatch }

// IsUnknownEntity returns true if the error is ErrUnknownEntity
func IsUnknownEntity(err error) bool {
	return errors.Is(err, ErrUnknownEntity)
}

// IsUnknownProperty returns true if the error is ErrUnknownProperty
func IsUnknownProperty(err error) bool {
	return errors.Is(err, ErrUnknownProperty)
}

// IsInvalidHierarchy returns true if the error is ErrInvalidHierarchy
func IsInvalidHierarchy(err error) bool {
	return errors.Is(err, ErrInvalidHierarchy)
}

// IsRegistryFrozen returns true if the error is ErrRegistryFrozen
func IsRegistryFrozen(err error) bool {
	return errors.Is(err, ErrRegistryFrozen)
}

// IsClassMismatch returns true if the error is ErrClassMismatch
func IsClassMismatch(err error) bool {
	return errors.Is(err, ErrClassMismatch)
}
