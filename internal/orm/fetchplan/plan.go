// Package fetchplan models fetch plans: graphs of the properties to load for
// an entity class, where association properties carry nested plans. Graphs
// may be cyclic; every traversal tracks node identity.
package fetchplan

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/metamodel/internal/orm/schema"
)

// Built-in plan names, resolvable for every class without declarations
const (
	// PlanLocal loads every persistent non-association property
	PlanLocal = "_local"
	// PlanMinimal loads the identifier only
	PlanMinimal = "_minimal"
	// PlanBase is PlanLocal plus to-one associations loaded with PlanMinimal
	PlanBase = "_base"
)

// Key identifies a named plan of a class
type Key struct {
	Class string
	Plan  string
}

func (k Key) String() string {
	return k.Class + "/" + k.Plan
}

// Node is one vertex of a plan graph. A Node is immutable once the plan
// that contains it has been returned; several plans may share nodes.
type Node struct {
	owner  *schema.ClassDescriptor
	name   string
	props  map[string]struct{}
	order  []string
	nested map[string]*Node
}

func newNode(owner *schema.ClassDescriptor, name string) *Node {
	return &Node{
		owner:  owner,
		name:   name,
		props:  make(map[string]struct{}),
		nested: make(map[string]*Node),
	}
}

func (n *Node) add(name string) {
	if _, ok := n.props[name]; ok {
		return
	}
	n.props[name] = struct{}{}
	n.order = append(n.order, name)
}

// Owner returns the class the node applies to
func (n *Node) Owner() *schema.ClassDescriptor { return n.owner }

// Name returns the plan name, empty for ad hoc nodes
func (n *Node) Name() string { return n.name }

// Properties returns the included property names in insertion order
func (n *Node) Properties() []string {
	result := make([]string, len(n.order))
	copy(result, n.order)
	return result
}

// Has reports whether the property is included
func (n *Node) Has(property string) bool {
	_, ok := n.props[property]
	return ok
}

// Nested returns the plan attached to an association property
func (n *Node) Nested(property string) (*Node, bool) {
	child, ok := n.nested[property]
	return child, ok
}

// IsEmpty reports whether only the identifier is loaded
func (n *Node) IsEmpty() bool {
	return len(n.order) == 0
}

func (n *Node) label() string {
	if n.name == "" {
		return n.owner.Name()
	}
	return fmt.Sprintf("%s [%s]", n.owner.Name(), n.name)
}

// Plan is a fetch plan rooted at one node. named indexes the (class, plan)
// pairs resolved while the plan was built.
type Plan struct {
	root  *Node
	named map[Key]*Node
}

func newPlan(root *Node, named map[Key]*Node) *Plan {
	if named == nil {
		named = make(map[Key]*Node)
	}
	if root.name != "" {
		if _, ok := named[Key{Class: root.owner.Name(), Plan: root.name}]; !ok {
			named[Key{Class: root.owner.Name(), Plan: root.name}] = root
		}
	}
	return &Plan{root: root, named: named}
}

// Root returns the root node
func (p *Plan) Root() *Node { return p.root }

// Name returns the root plan name
func (p *Plan) Name() string { return p.root.name }

// Class returns the owning class of the root
func (p *Plan) Class() *schema.ClassDescriptor { return p.root.owner }

// Properties returns the top-level property names
func (p *Plan) Properties() []string { return p.root.Properties() }

// Has reports whether a top-level property is included
func (p *Plan) Has(property string) bool { return p.root.Has(property) }

// IsEmpty reports whether the plan loads the identifier only
func (p *Plan) IsEmpty() bool { return p.root.IsEmpty() }

// Nested returns the sub-plan of an association property
func (p *Plan) Nested(property string) (*Plan, bool) {
	child, ok := p.root.nested[property]
	if !ok {
		return nil, false
	}
	return &Plan{root: child, named: p.named}, true
}

// Lookup returns the node resolved for a named plan of a class, if that
// pair was reached while building this plan
func (p *Plan) Lookup(className, planName string) (*Node, bool) {
	n, ok := p.named[Key{Class: className, Plan: planName}]
	return n, ok
}

// Contains reports whether a dotted property path is loaded by the plan.
// Paths may cross cycles; "parent.parent.name" is valid on a tree plan.
func (p *Plan) Contains(path string) bool {
	n := p.root
	segments := strings.Split(path, ".")
	for i, segment := range segments {
		if !n.Has(segment) {
			return false
		}
		if i == len(segments)-1 {
			return true
		}
		child, ok := n.nested[segment]
		if !ok {
			return false
		}
		n = child
	}
	return false
}

// Walk calls fn once per distinct node reachable from the root, depth
// first. Returning false from fn stops the walk.
func (p *Plan) Walk(fn func(*Node) bool) {
	visited := make(map[*Node]bool)

	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		if visited[n] {
			return true
		}
		visited[n] = true
		if !fn(n) {
			return false
		}
		for _, name := range n.order {
			if child, ok := n.nested[name]; ok {
				if !visit(child) {
					return false
				}
			}
		}
		return true
	}

	visit(p.root)
}

// NodeCount returns the number of distinct reachable nodes
func (p *Plan) NodeCount() int {
	count := 0
	p.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}

// String renders the plan as an indented tree. A node already printed is
// shown as a back reference.
func (p *Plan) String() string {
	out, _ := p.Format(0)
	return out
}

// Format renders the plan like String. A positive maxDepth bounds the
// nesting and returns ErrMaxDepthExceeded along with the truncated output
// when the graph is deeper.
func (p *Plan) Format(maxDepth int) (string, error) {
	var b strings.Builder
	tc := newTraversal(maxDepth)
	tc.markVisited(p.root)
	b.WriteString(p.root.label())
	b.WriteString(" ")
	err := p.format(&b, p.root, 0, tc)
	return b.String(), err
}

func (p *Plan) format(b *strings.Builder, n *Node, indent int, tc *traversal) error {
	if err := tc.enter(); err != nil {
		b.WriteString("{ … }\n")
		return err
	}
	defer tc.leave()

	pad := strings.Repeat("  ", indent)
	b.WriteString("{\n")

	var firstErr error
	for _, name := range n.order {
		b.WriteString(pad + "  " + name)
		child, ok := n.nested[name]
		if !ok {
			b.WriteString("\n")
			continue
		}
		if !tc.markVisited(child) {
			b.WriteString(" -> ↺ " + child.label() + "\n")
			continue
		}
		b.WriteString(" -> " + child.label() + " ")
		if err := p.format(b, child, indent+1, tc); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	b.WriteString(pad + "}\n")
	return firstErr
}

// traversal tracks visited nodes and depth during a walk of a plan graph
type traversal struct {
	visited  map[*Node]bool
	depth    int
	maxDepth int
}

func newTraversal(maxDepth int) *traversal {
	return &traversal{
		visited:  make(map[*Node]bool),
		maxDepth: maxDepth,
	}
}

// markVisited returns false if the node was seen before
func (tc *traversal) markVisited(n *Node) bool {
	if tc.visited[n] {
		return false
	}
	tc.visited[n] = true
	return true
}

func (tc *traversal) enter() error {
	tc.depth++
	if tc.maxDepth > 0 && tc.depth > tc.maxDepth {
		tc.depth--
		return ErrMaxDepthExceeded
	}
	return nil
}

func (tc *traversal) leave() {
	tc.depth--
}
