package schema

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/metamodel/internal/orm/declare"
)

// ValidationError represents a declaration error with context
type ValidationError struct {
	Class    string
	Property string
	Message  string
	Hint     string
	Err      error
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	var b strings.Builder

	if e.Class != "" {
		b.WriteString(e.Class)
		if e.Property != "" {
			b.WriteString(".")
			b.WriteString(e.Property)
		}
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// Unwrap exposes the underlying sentinel, if any
func (e *ValidationError) Unwrap() error { return e.Err }

// declarationValidator checks a single entity declaration in isolation.
// Cross-class checks (ancestors, association targets) belong to the build.
type declarationValidator struct {
	errors []error
}

func (v *declarationValidator) validate(decl declare.EntityDeclaration) {
	seen := make(map[string]bool, len(decl.Properties))
	for _, prop := range decl.Properties {
		if seen[prop.Name] {
			v.errors = append(v.errors, &ValidationError{
				Class:    decl.Name,
				Property: prop.Name,
				Message:  "property declared more than once",
				Hint:     "property names must be unique within a class",
			})
			continue
		}
		seen[prop.Name] = true

		if prop.Datatype != "" {
			if _, err := ParsePrimitiveType(prop.Datatype); err != nil {
				v.errors = append(v.errors, &ValidationError{
					Class:    decl.Name,
					Property: prop.Name,
					Message:  err.Error(),
					Err:      ErrUnknownDatatype,
				})
			}
		}

		if prop.Ref != "" && prop.Many && prop.Name == decl.PrimaryKey {
			v.errors = append(v.errors, &ValidationError{
				Class:    decl.Name,
				Property: prop.Name,
				Message:  "a collection cannot be the primary key",
			})
		}
	}

	if decl.Extends == decl.Name && decl.Name != "" {
		v.errors = append(v.errors, &InvalidHierarchyError{
			Class: decl.Name,
			Cycle: []string{decl.Name},
		})
	}
}

// newProperty converts a property declaration into a descriptor owned by
// class. Entity ranges are left unresolved.
func newProperty(class *ClassDescriptor, decl declare.PropertyDeclaration) (*PropertyDescriptor, error) {
	p := &PropertyDescriptor{
		name:       decl.Name,
		mandatory:  decl.Mandatory,
		readOnly:   decl.ReadOnly,
		persistent: !decl.Transient,
		declaredBy: class,
	}

	switch {
	case decl.Datatype != "":
		id, err := ParsePrimitiveType(decl.Datatype)
		if err != nil {
			return nil, err
		}
		p.rng = DatatypeRange(id)
	case decl.Enum != nil:
		p.rng = EnumerationRange(NewEnumeration(decl.Enum.Name, decl.Enum.Values...))
	case decl.Ref != "":
		cardinality := CardinalityOne
		if decl.Many {
			cardinality = CardinalityMany
		}
		p.rng = EntityRange(decl.Ref, cardinality)
	default:
		return nil, fmt.Errorf("%w: property %s has no range", declare.ErrInvalidDeclaration, decl.Name)
	}

	return p, nil
}
