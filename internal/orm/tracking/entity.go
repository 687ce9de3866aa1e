// Package tracking captures snapshots of loaded entity state and diffs them
// into attribute changes. Snapshots and changes belong to one unit of work
// and are not safe for concurrent use; Clone a snapshot to hand it over.
package tracking

import "sort"

// Entity exposes the state of a materialized instance. Attribute reports
// loaded=false for properties the persistence engine did not load.
//
// Association values may be an Entity, a Ref, or a bare identifier.
// Collection values may be a RefSet or a slice of any of those.
type Entity interface {
	EntityClass() string
	EntityID() any
	Attribute(name string) (value any, loaded bool)
}

// MapEntity is an Entity backed by a map. Absent keys are not loaded.
type MapEntity struct {
	Class  string
	ID     any
	Values map[string]any
}

// NewMapEntity creates a MapEntity with a copy of values
func NewMapEntity(class string, id any, values map[string]any) *MapEntity {
	e := &MapEntity{Class: class, ID: id, Values: make(map[string]any, len(values))}
	for k, v := range values {
		e.Values[k] = v
	}
	return e
}

// EntityClass implements Entity
func (e *MapEntity) EntityClass() string { return e.Class }

// EntityID implements Entity
func (e *MapEntity) EntityID() any { return e.ID }

// Attribute implements Entity
func (e *MapEntity) Attribute(name string) (any, bool) {
	v, ok := e.Values[name]
	return v, ok
}

// Set loads a value
func (e *MapEntity) Set(name string, value any) *MapEntity {
	if e.Values == nil {
		e.Values = make(map[string]any)
	}
	e.Values[name] = value
	return e
}

// Unset marks a property as not loaded
func (e *MapEntity) Unset(name string) *MapEntity {
	delete(e.Values, name)
	return e
}

// Loaded returns the loaded property names, sorted
func (e *MapEntity) Loaded() []string {
	names := make([]string, 0, len(e.Values))
	for name := range e.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
