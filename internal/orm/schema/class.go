package schema

import "fmt"

// ClassDescriptor describes one entity type: its properties (own and
// inherited), primary key, place in the inheritance hierarchy, and logical
// store. Descriptors are immutable once the registry is built.
type ClassDescriptor struct {
	name        string
	typeHandle  string
	store       string
	ancestor    *ClassDescriptor
	descendants []*ClassDescriptor
	primaryKey  *PropertyDescriptor

	own        []*PropertyDescriptor
	properties map[string]*PropertyDescriptor
	order      []string
}

// Name returns the unique class name
func (c *ClassDescriptor) Name() string { return c.name }

// TypeHandle returns the opaque handle of the implementing type, as declared
func (c *ClassDescriptor) TypeHandle() string { return c.typeHandle }

// Store returns the logical store the class belongs to
func (c *ClassDescriptor) Store() string { return c.store }

// Ancestor returns the parent class, or nil for a root class
func (c *ClassDescriptor) Ancestor() *ClassDescriptor { return c.ancestor }

// Descendants returns the direct descendants
func (c *ClassDescriptor) Descendants() []*ClassDescriptor {
	result := make([]*ClassDescriptor, len(c.descendants))
	copy(result, c.descendants)
	return result
}

// Ancestors returns the ancestor chain, nearest first
func (c *ClassDescriptor) Ancestors() []*ClassDescriptor {
	var chain []*ClassDescriptor
	for a := c.ancestor; a != nil; a = a.ancestor {
		chain = append(chain, a)
	}
	return chain
}

// IsSubclassOf reports whether c is other or inherits from it
func (c *ClassDescriptor) IsSubclassOf(other *ClassDescriptor) bool {
	if other == nil {
		return false
	}
	for k := c; k != nil; k = k.ancestor {
		if k == other {
			return true
		}
	}
	return false
}

// PrimaryKey returns the identifier property, or nil if none is declared
// on the class or its ancestors
func (c *ClassDescriptor) PrimaryKey() *PropertyDescriptor { return c.primaryKey }

// Property returns the descriptor of the named property, own or inherited.
// An inherited property that the class does not override is returned as the
// ancestor's descriptor.
func (c *ClassDescriptor) Property(name string) (*PropertyDescriptor, error) {
	if p, ok := c.properties[name]; ok {
		return p, nil
	}
	return nil, &UnknownPropertyError{Class: c.name, Property: name}
}

// HasProperty returns true if the class has the named property
func (c *ClassDescriptor) HasProperty(name string) bool {
	_, ok := c.properties[name]
	return ok
}

// Properties returns all effective properties in declaration order,
// ancestors first
func (c *ClassDescriptor) Properties() []*PropertyDescriptor {
	result := make([]*PropertyDescriptor, 0, len(c.order))
	for _, name := range c.order {
		result = append(result, c.properties[name])
	}
	return result
}

// PropertyNames returns the effective property names in declaration order
func (c *ClassDescriptor) PropertyNames() []string {
	result := make([]string, len(c.order))
	copy(result, c.order)
	return result
}

// OwnProperties returns the properties declared on this class, including
// overrides
func (c *ClassDescriptor) OwnProperties() []*PropertyDescriptor {
	result := make([]*PropertyDescriptor, len(c.own))
	copy(result, c.own)
	return result
}

// Associations returns the effective association properties
func (c *ClassDescriptor) Associations() []*PropertyDescriptor {
	var result []*PropertyDescriptor
	for _, name := range c.order {
		if p := c.properties[name]; p.IsAssociation() {
			result = append(result, p)
		}
	}
	return result
}

// DeclaringClass returns the class that supplies the effective descriptor
// of the named property
func (c *ClassDescriptor) DeclaringClass(property string) (*ClassDescriptor, error) {
	p, err := c.Property(property)
	if err != nil {
		return nil, err
	}
	return p.declaredBy, nil
}

// String returns the class name with its ancestor, if any
func (c *ClassDescriptor) String() string {
	if c.ancestor != nil {
		return fmt.Sprintf("%s extends %s", c.name, c.ancestor.name)
	}
	return c.name
}
