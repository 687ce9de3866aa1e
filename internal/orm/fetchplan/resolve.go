package fetchplan

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/metamodel/internal/orm/declare"
	"github.com/conduit-lang/metamodel/internal/orm/schema"
)

// resolver turns plan declarations into a node graph. A pair re-entered
// while still in progress yields the in-progress node, which closes the
// cycle. Nothing is visible outside the resolver until resolution succeeds.
type resolver struct {
	source     declare.PlanSource
	logger     *zap.Logger
	inProgress map[Key]*Node
	done       map[Key]*Node
}

func newResolver(source declare.PlanSource, logger *zap.Logger) *resolver {
	return &resolver{
		source:     source,
		logger:     logger,
		inProgress: make(map[Key]*Node),
		done:       make(map[Key]*Node),
	}
}

func (rs *resolver) resolve(class *schema.ClassDescriptor, planName string) (*Node, error) {
	key := Key{Class: class.Name(), Plan: planName}
	if n, ok := rs.done[key]; ok {
		return n, nil
	}
	if n, ok := rs.inProgress[key]; ok {
		return n, nil
	}

	if isBuiltin(planName) {
		n, err := rs.builtin(class, planName)
		if err != nil {
			return nil, err
		}
		rs.done[key] = n
		return n, nil
	}

	decl, ok := rs.lookup(class, planName)
	if !ok {
		return nil, &UnknownPlanError{Class: class.Name(), Plan: planName}
	}

	n := newNode(class, planName)
	rs.inProgress[key] = n

	for _, fp := range decl.Properties {
		prop, err := class.Property(fp.Name)
		if err != nil {
			return nil, err
		}
		n.add(fp.Name)

		if fp.Plan == "" {
			continue
		}
		if !prop.IsAssociation() {
			return nil, &schema.NotAnAssociationError{Class: class.Name(), Property: fp.Name}
		}
		child, err := rs.resolve(prop.Range().Target(), fp.Plan)
		if err != nil {
			return nil, err
		}
		n.nested[fp.Name] = child
	}

	if decl.Extends != "" {
		if err := rs.extend(n, decl.Extends); err != nil {
			return nil, err
		}
	}

	delete(rs.inProgress, key)
	rs.done[key] = n
	return n, nil
}

// lookup finds the declaration on the class or its nearest ancestor
func (rs *resolver) lookup(class *schema.ClassDescriptor, planName string) (declare.FetchPlanDeclaration, bool) {
	if rs.source == nil {
		return declare.FetchPlanDeclaration{}, false
	}
	for k := class; k != nil; k = k.Ancestor() {
		if decl, ok := rs.source.FetchPlan(k.Name(), planName); ok {
			return decl, true
		}
	}
	return declare.FetchPlanDeclaration{}, false
}

// extend folds the extended plan into n. Extended properties come first.
// A nested plan declared on both sides is merged unless either side is
// still being resolved, in which case n's own nested plan wins.
func (rs *resolver) extend(n *Node, parentName string) error {
	parentKey := Key{Class: n.owner.Name(), Plan: parentName}
	if _, cyclic := rs.inProgress[parentKey]; cyclic {
		return fmt.Errorf("%w: %s extends %s, which extends it back", ErrInvalidPlan, n.name, parentName)
	}

	parent, err := rs.resolve(n.owner, parentName)
	if err != nil {
		return err
	}

	own := n.order
	n.order = nil
	n.props = make(map[string]struct{}, len(own)+len(parent.order))
	for _, p := range parent.order {
		n.add(p)
	}
	for _, p := range own {
		n.add(p)
	}

	for _, p := range parent.order {
		inherited, ok := parent.nested[p]
		if !ok {
			continue
		}
		mine, ok := n.nested[p]
		if !ok {
			n.nested[p] = inherited
			continue
		}
		if rs.reachesPending(mine) || rs.reachesPending(inherited) {
			rs.logger.Debug("extended nested plan not merged, it reaches a plan still being resolved",
				zap.String("class", n.owner.Name()),
				zap.String("plan", n.name),
				zap.String("extends", parentName),
				zap.String("property", p),
				zap.Strings("dropped", inherited.Properties()),
			)
			continue
		}
		m := &merger{results: make(map[nodePair]*Node)}
		merged, err := m.merge(mine, inherited)
		if err != nil {
			return err
		}
		n.nested[p] = merged
	}
	return nil
}

func (rs *resolver) reachesPending(start *Node) bool {
	pending := make(map[*Node]bool, len(rs.inProgress))
	for _, n := range rs.inProgress {
		pending[n] = true
	}

	found := false
	(&Plan{root: start}).Walk(func(n *Node) bool {
		if pending[n] {
			found = true
			return false
		}
		return true
	})
	return found
}

func isBuiltin(planName string) bool {
	switch planName {
	case PlanLocal, PlanMinimal, PlanBase:
		return true
	}
	return false
}

func (rs *resolver) builtin(class *schema.ClassDescriptor, planName string) (*Node, error) {
	n := newNode(class, planName)

	if planName == PlanMinimal {
		if pk := class.PrimaryKey(); pk != nil {
			n.add(pk.Name())
		}
		return n, nil
	}

	for _, p := range class.Properties() {
		if !p.IsAssociation() && p.Persistent() {
			n.add(p.Name())
		}
	}

	if planName == PlanBase {
		for _, p := range class.Associations() {
			if p.IsCollection() || !p.Persistent() {
				continue
			}
			child, err := rs.resolve(p.Range().Target(), PlanMinimal)
			if err != nil {
				return nil, err
			}
			n.add(p.Name())
			n.nested[p.Name()] = child
		}
	}
	return n, nil
}
