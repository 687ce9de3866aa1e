// Package schema provides the runtime metamodel: property and class
// descriptors, and the registry that builds them from declarations and
// resolves inheritance and property paths.
package schema

import (
	"fmt"
	"strings"
)

// PrimitiveType identifies the datatype of a scalar property
type PrimitiveType int

const (
	// Text types
	TypeString PrimitiveType = iota
	TypeText

	// Numeric types
	TypeInt
	TypeBigInt
	TypeFloat
	TypeDecimal

	// Boolean
	TypeBool

	// Time types
	TypeTimestamp
	TypeDate
	TypeTime

	// Unique identifiers
	TypeUUID

	// Validated types
	TypeEmail
	TypeURL

	// JSON
	TypeJSON
)

// String returns the string representation of the primitive type
func (p PrimitiveType) String() string {
	switch p {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeInt:
		return "int"
	case TypeBigInt:
		return "bigint"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeUUID:
		return "uuid"
	case TypeEmail:
		return "email"
	case TypeURL:
		return "url"
	case TypeJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParsePrimitiveType converts a string to a PrimitiveType
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	switch strings.ToLower(s) {
	case "string":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "int":
		return TypeInt, nil
	case "bigint":
		return TypeBigInt, nil
	case "float":
		return TypeFloat, nil
	case "decimal":
		return TypeDecimal, nil
	case "bool":
		return TypeBool, nil
	case "timestamp":
		return TypeTimestamp, nil
	case "date":
		return TypeDate, nil
	case "time":
		return TypeTime, nil
	case "uuid":
		return TypeUUID, nil
	case "email":
		return TypeEmail, nil
	case "url":
		return TypeURL, nil
	case "json":
		return TypeJSON, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownDatatype, s)
	}
}

// IsNumeric returns true if the type is a numeric type
func (p PrimitiveType) IsNumeric() bool {
	return p == TypeInt || p == TypeBigInt || p == TypeFloat || p == TypeDecimal
}

// IsTemporal returns true for timestamp, date and time
func (p PrimitiveType) IsTemporal() bool {
	return p == TypeTimestamp || p == TypeDate || p == TypeTime
}

// Cardinality is the number of values an association property holds
type Cardinality int

const (
	CardinalityOne Cardinality = iota
	CardinalityMany
)

// String returns the string representation of the cardinality
func (c Cardinality) String() string {
	switch c {
	case CardinalityOne:
		return "one"
	case CardinalityMany:
		return "many"
	default:
		return "unknown"
	}
}

// RangeKind tags the variant held by a Range
type RangeKind int

const (
	RangeDatatype RangeKind = iota
	RangeEnumeration
	RangeEntity
)

// String returns the string representation of the range kind
func (k RangeKind) String() string {
	switch k {
	case RangeDatatype:
		return "datatype"
	case RangeEnumeration:
		return "enumeration"
	case RangeEntity:
		return "entity"
	default:
		return "unknown"
	}
}

// Enumeration is the value set of an enumeration-typed property
type Enumeration struct {
	name   string
	values []string
}

// NewEnumeration creates an enumeration type
func NewEnumeration(name string, values ...string) *Enumeration {
	v := make([]string, len(values))
	copy(v, values)
	return &Enumeration{name: name, values: v}
}

// Name returns the enumeration type name
func (e *Enumeration) Name() string { return e.name }

// Values returns a copy of the allowed values
func (e *Enumeration) Values() []string {
	v := make([]string, len(e.values))
	copy(v, e.values)
	return v
}

// Contains reports whether value is one of the allowed values
func (e *Enumeration) Contains(value string) bool {
	for _, v := range e.values {
		if v == value {
			return true
		}
	}
	return false
}

// Range is the value space of a property: a datatype, an enumeration, or a
// related entity class with a cardinality.
type Range struct {
	kind        RangeKind
	datatype    PrimitiveType
	enum        *Enumeration
	targetName  string
	target      *ClassDescriptor
	cardinality Cardinality
}

// DatatypeRange creates a datatype range
func DatatypeRange(id PrimitiveType) Range {
	return Range{kind: RangeDatatype, datatype: id}
}

// EnumerationRange creates an enumeration range
func EnumerationRange(enum *Enumeration) Range {
	return Range{kind: RangeEnumeration, enum: enum}
}

// EntityRange creates an unresolved entity range; the target is wired when
// the registry is built.
func EntityRange(targetClass string, cardinality Cardinality) Range {
	return Range{kind: RangeEntity, targetName: targetClass, cardinality: cardinality}
}

// Kind returns the variant tag
func (r Range) Kind() RangeKind { return r.kind }

// Datatype returns the datatype id. Only meaningful for RangeDatatype.
func (r Range) Datatype() PrimitiveType { return r.datatype }

// Enumeration returns the enumeration. Nil unless RangeEnumeration.
func (r Range) Enumeration() *Enumeration { return r.enum }

// Target returns the related class. Nil unless RangeEntity.
func (r Range) Target() *ClassDescriptor { return r.target }

// TargetName returns the name of the related class
func (r Range) TargetName() string { return r.targetName }

// Cardinality returns the association cardinality
func (r Range) Cardinality() Cardinality { return r.cardinality }

// IsAssociation returns true for entity ranges
func (r Range) IsAssociation() bool { return r.kind == RangeEntity }

// IsCollection returns true for to-many entity ranges
func (r Range) IsCollection() bool {
	return r.kind == RangeEntity && r.cardinality == CardinalityMany
}

// String returns a readable form such as "decimal", "enum(OrderStatus)" or
// "ref(Customer)[many]"
func (r Range) String() string {
	switch r.kind {
	case RangeDatatype:
		return r.datatype.String()
	case RangeEnumeration:
		if r.enum == nil {
			return "enum"
		}
		return fmt.Sprintf("enum(%s)", r.enum.name)
	case RangeEntity:
		if r.cardinality == CardinalityMany {
			return fmt.Sprintf("ref(%s)[many]", r.targetName)
		}
		return fmt.Sprintf("ref(%s)", r.targetName)
	default:
		return "unknown"
	}
}

// PropertyDescriptor describes one property of an entity class. Descriptors
// are immutable once the registry is built.
type PropertyDescriptor struct {
	name       string
	rng        Range
	mandatory  bool
	readOnly   bool
	persistent bool
	declaredBy *ClassDescriptor
}

// Name returns the property name
func (p *PropertyDescriptor) Name() string { return p.name }

// Range returns the property range
func (p *PropertyDescriptor) Range() Range { return p.rng }

// Mandatory reports whether a value is required
func (p *PropertyDescriptor) Mandatory() bool { return p.mandatory }

// ReadOnly reports whether the property may be written
func (p *PropertyDescriptor) ReadOnly() bool { return p.readOnly }

// Persistent reports whether the property is backed by storage
func (p *PropertyDescriptor) Persistent() bool { return p.persistent }

// DeclaringClass returns the class that declared the property
func (p *PropertyDescriptor) DeclaringClass() *ClassDescriptor { return p.declaredBy }

// IsAssociation returns true if the property references another entity
func (p *PropertyDescriptor) IsAssociation() bool { return p.rng.IsAssociation() }

// IsCollection returns true for to-many associations
func (p *PropertyDescriptor) IsCollection() bool { return p.rng.IsCollection() }

// CrossStore reports whether an association points into another logical store
func (p *PropertyDescriptor) CrossStore() bool {
	if !p.rng.IsAssociation() || p.rng.target == nil || p.declaredBy == nil {
		return false
	}
	return p.rng.target.store != p.declaredBy.store
}

// String returns "Class.name: range"
func (p *PropertyDescriptor) String() string {
	owner := "?"
	if p.declaredBy != nil {
		owner = p.declaredBy.name
	}
	return fmt.Sprintf("%s.%s: %s", owner, p.name, p.rng)
}
