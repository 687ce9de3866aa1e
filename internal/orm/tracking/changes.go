package tracking

import (
	"encoding/json"
	"sort"

	"github.com/conduit-lang/metamodel/internal/orm/schema"
)

// Change represents a change to a single property. A side that was not
// loaded, or is absent for a create or delete, is nil.
type Change struct {
	Property string
	OldValue any
	NewValue any

	prop *schema.PropertyDescriptor
}

// AttributeChanges is the set of per-property changes between two
// snapshots. A property is present iff its old and new values differ.
type AttributeChanges struct {
	changes map[string]Change
}

func newAttributeChanges() *AttributeChanges {
	return &AttributeChanges{changes: make(map[string]Change)}
}

func (c *AttributeChanges) record(prop *schema.PropertyDescriptor, oldValue, newValue any) {
	c.changes[prop.Name()] = Change{
		Property: prop.Name(),
		OldValue: oldValue,
		NewValue: newValue,
		prop:     prop,
	}
}

// Changed returns true if the specified property has changed
func (c *AttributeChanges) Changed(property string) bool {
	_, ok := c.changes[property]
	return ok
}

// Get returns the change of a property
func (c *AttributeChanges) Get(property string) (Change, bool) {
	change, ok := c.changes[property]
	return change, ok
}

// ChangedTo returns true if the property changed to the specified value
func (c *AttributeChanges) ChangedTo(property string, value any) bool {
	change, ok := c.changes[property]
	if !ok {
		return false
	}
	return Equal(change.prop, change.NewValue, value)
}

// ChangedFrom returns true if the property changed from the specified value
func (c *AttributeChanges) ChangedFrom(property string, value any) bool {
	change, ok := c.changes[property]
	if !ok {
		return false
	}
	return Equal(change.prop, change.OldValue, value)
}

// Names returns the changed property names, sorted
func (c *AttributeChanges) Names() []string {
	names := make([]string, 0, len(c.changes))
	for name := range c.changes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the changes sorted by property name
func (c *AttributeChanges) All() []Change {
	result := make([]Change, 0, len(c.changes))
	for _, name := range c.Names() {
		result = append(result, c.changes[name])
	}
	return result
}

// Len returns the number of changed properties
func (c *AttributeChanges) Len() int { return len(c.changes) }

// IsEmpty returns true if nothing changed
func (c *AttributeChanges) IsEmpty() bool { return len(c.changes) == 0 }

// NewValues returns the new value of every changed property
func (c *AttributeChanges) NewValues() map[string]any {
	result := make(map[string]any, len(c.changes))
	for name, change := range c.changes {
		result[name] = change.NewValue
	}
	return result
}

type changeJSON struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// MarshalJSON encodes the changes as {"property": {"old": ..., "new": ...}}
func (c *AttributeChanges) MarshalJSON() ([]byte, error) {
	out := make(map[string]changeJSON, len(c.changes))
	for name, change := range c.changes {
		out[name] = changeJSON{Old: change.OldValue, New: change.NewValue}
	}
	return json.Marshal(out)
}
