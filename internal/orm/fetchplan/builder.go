package fetchplan

import (
	"sort"
	"strings"

	"github.com/conduit-lang/metamodel/internal/orm/schema"
)

// Builder assembles an ad hoc plan. Errors are reported by Build. Nested
// builders may refer back to an enclosing builder; the cycle is closed on
// the same node.
type Builder struct {
	registry  *schema.Registry
	className string
	name      string
	props     []string
	nested    map[string]nestedRef
}

type nestedRef struct {
	builder *Builder
	plan    *Plan
}

// NewBuilder starts a plan for className
func NewBuilder(registry *schema.Registry, className string) *Builder {
	return &Builder{
		registry:  registry,
		className: className,
		nested:    make(map[string]nestedRef),
	}
}

// Named sets the plan name
func (b *Builder) Named(name string) *Builder {
	b.name = name
	return b
}

// Add includes properties
func (b *Builder) Add(names ...string) *Builder {
	b.props = append(b.props, names...)
	return b
}

// AddNested includes an association loaded with the plan built by nested
func (b *Builder) AddNested(name string, nested *Builder) *Builder {
	b.props = append(b.props, name)
	b.nested[name] = nestedRef{builder: nested}
	return b
}

// AddPlan includes an association loaded with an existing plan
func (b *Builder) AddPlan(name string, plan *Plan) *Builder {
	b.props = append(b.props, name)
	b.nested[name] = nestedRef{plan: plan}
	return b
}

// Build validates the properties against the metamodel and returns the plan
func (b *Builder) Build() (*Plan, error) {
	s := &buildState{
		nodes: make(map[*Builder]*Node),
		named: make(map[Key]*Node),
	}
	root, err := s.build(b)
	if err != nil {
		return nil, err
	}
	return newPlan(root, s.named), nil
}

type buildState struct {
	nodes map[*Builder]*Node
	named map[Key]*Node
}

func (s *buildState) build(b *Builder) (*Node, error) {
	if n, ok := s.nodes[b]; ok {
		return n, nil
	}

	class, err := b.registry.Class(b.className)
	if err != nil {
		return nil, err
	}

	n := newNode(class, b.name)
	s.nodes[b] = n
	if b.name != "" {
		s.named[Key{Class: class.Name(), Plan: b.name}] = n
	}

	for _, name := range b.props {
		if _, err := class.Property(name); err != nil {
			return nil, err
		}
		n.add(name)
	}

	names := make([]string, 0, len(b.nested))
	for name := range b.nested {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, _ := class.Property(name)
		if !prop.IsAssociation() {
			return nil, &schema.NotAnAssociationError{Class: class.Name(), Property: name}
		}

		ref := b.nested[name]
		var child *Node
		switch {
		case ref.builder != nil:
			child, err = s.build(ref.builder)
			if err != nil {
				return nil, err
			}
		case ref.plan != nil:
			child = ref.plan.root
			for key, node := range ref.plan.named {
				if _, exists := s.named[key]; !exists {
					s.named[key] = node
				}
			}
		default:
			continue
		}

		if err := checkTarget(prop, child); err != nil {
			return nil, err
		}
		n.nested[name] = child
	}

	return n, nil
}

// checkTarget rejects a nested plan whose class is not the association
// target or one of its descendants
func checkTarget(prop *schema.PropertyDescriptor, child *Node) error {
	target := prop.Range().Target()
	if child.owner.IsSubclassOf(target) {
		return nil
	}
	return &schema.ClassMismatchError{Expected: target.Name(), Actual: child.owner.Name()}
}

// BuildPaths builds a plan from dotted property paths. Every segment but the
// last must be an association; paths sharing a prefix share the nested plan.
func BuildPaths(registry *schema.Registry, className string, paths ...string) (*Plan, error) {
	root := NewBuilder(registry, className)
	for _, path := range paths {
		if err := addPath(registry, root, path); err != nil {
			return nil, err
		}
	}
	return root.Build()
}

func addPath(registry *schema.Registry, root *Builder, path string) error {
	chain, err := registry.ResolvePath(root.className, path)
	if err != nil {
		return err
	}

	segments := strings.Split(path, ".")
	current := root
	for i, segment := range segments {
		if i == len(segments)-1 {
			current.Add(segment)
			break
		}

		ref, ok := current.nested[segment]
		if !ok || ref.builder == nil {
			next := NewBuilder(registry, chain[i].Range().Target().Name())
			current.AddNested(segment, next)
			ref = nestedRef{builder: next}
		}
		current = ref.builder
	}
	return nil
}
