package fetchplan

import "github.com/conduit-lang/metamodel/internal/orm/schema"

type nodePair struct {
	a, b *Node
}

// Merge returns the union of two plans. Properties present in either are
// included; nested plans present in both are merged recursively. The merged
// plan keeps a's name, or b's when a is unnamed. Owners must be the same
// class or related by inheritance; the more derived one owns the result.
//
// Merge(p, p) returns p. Inputs are never modified; unmerged nodes are
// shared with the result.
func Merge(a, b *Plan) (*Plan, error) {
	if a == nil {
		return b, nil
	}
	if b == nil || a == b {
		return a, nil
	}

	m := &merger{results: make(map[nodePair]*Node)}
	root, err := m.merge(a.root, b.root)
	if err != nil {
		return nil, err
	}

	named := make(map[Key]*Node, len(a.named)+len(b.named))
	for key, n := range b.named {
		named[key] = n
	}
	for key, n := range a.named {
		named[key] = n
	}
	if root.name != "" {
		named[Key{Class: root.owner.Name(), Plan: root.name}] = root
	}
	return &Plan{root: root, named: named}, nil
}

type merger struct {
	results map[nodePair]*Node
}

func (m *merger) merge(a, b *Node) (*Node, error) {
	if a == b {
		return a, nil
	}

	key := nodePair{a: a, b: b}
	if n, ok := m.results[key]; ok {
		return n, nil
	}

	owner, err := moreDerived(a.owner, b.owner)
	if err != nil {
		return nil, err
	}

	name := a.name
	if name == "" {
		name = b.name
	}

	n := newNode(owner, name)
	m.results[key] = n

	for _, p := range a.order {
		n.add(p)
	}
	for _, p := range b.order {
		n.add(p)
	}

	for _, p := range n.order {
		an, inA := a.nested[p]
		bn, inB := b.nested[p]
		switch {
		case inA && inB:
			child, err := m.merge(an, bn)
			if err != nil {
				return nil, err
			}
			n.nested[p] = child
		case inA:
			n.nested[p] = an
		case inB:
			n.nested[p] = bn
		}
	}

	return n, nil
}

func moreDerived(a, b *schema.ClassDescriptor) (*schema.ClassDescriptor, error) {
	switch {
	case a.IsSubclassOf(b):
		return a, nil
	case b.IsSubclassOf(a):
		return b, nil
	default:
		return nil, &schema.ClassMismatchError{Expected: a.Name(), Actual: b.Name()}
	}
}
