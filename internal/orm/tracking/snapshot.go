package tracking

import (
	"sort"

	"github.com/conduit-lang/metamodel/internal/orm/schema"
)

type notLoaded struct{}

func (notLoaded) String() string { return "<not loaded>" }

// NotLoaded marks a property the capture plan did not load. It is distinct
// from a loaded nil.
var NotLoaded any = notLoaded{}

// IsNotLoaded reports whether v is the NotLoaded marker
func IsNotLoaded(v any) bool {
	_, ok := v.(notLoaded)
	return ok
}

// Snapshot holds the captured values of one entity at one logical instant.
// Scalars are copied at capture; associations hold Ref or RefSet values.
type Snapshot struct {
	entityID   any
	class      *schema.ClassDescriptor
	values     map[string]any
	capturedAt uint64
}

// EntityID returns the identifier, nil for a new entity without one
func (s *Snapshot) EntityID() any { return s.entityID }

// ClassName returns the name of the captured class
func (s *Snapshot) ClassName() string { return s.class.Name() }

// Class returns the captured class descriptor
func (s *Snapshot) Class() *schema.ClassDescriptor { return s.class }

// CapturedAt returns the logical capture time
func (s *Snapshot) CapturedAt() uint64 { return s.capturedAt }

// Value returns the captured value, NotLoaded if the property was outside
// the plan
func (s *Snapshot) Value(property string) any {
	v, ok := s.values[property]
	if !ok {
		return NotLoaded
	}
	return v
}

// IsLoaded reports whether the property was loaded at capture
func (s *Snapshot) IsLoaded(property string) bool {
	v, ok := s.values[property]
	return ok && !IsNotLoaded(v)
}

// Loaded returns the loaded property names in class order
func (s *Snapshot) Loaded() []string {
	var names []string
	for _, name := range s.class.PropertyNames() {
		if s.IsLoaded(name) {
			names = append(names, name)
		}
	}
	return names
}

// Properties returns every recorded property name, sorted
func (s *Snapshot) Properties() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy, for handing a snapshot to another goroutine
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		entityID:   s.entityID,
		class:      s.class,
		values:     deepCopyMap(s.values),
		capturedAt: s.capturedAt,
	}
}
