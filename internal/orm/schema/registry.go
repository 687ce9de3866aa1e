package schema

import (
	"sort"
	"strings"

	"github.com/conduit-lang/metamodel/internal/orm/declare"
)

// Registry maps class names to descriptors. A Registry is only obtained from
// Builder.Build; it is immutable and safe for concurrent reads without
// locking.
type Registry struct {
	classes map[string]*ClassDescriptor
	names   []string
	stores  []string
}

func newRegistry(classes map[string]*ClassDescriptor) *Registry {
	r := &Registry{
		classes: classes,
		names:   sortedNames(classes),
	}

	seen := make(map[string]bool)
	for _, name := range r.names {
		store := classes[name].store
		if !seen[store] {
			seen[store] = true
			r.stores = append(r.stores, store)
		}
	}
	sort.Strings(r.stores)
	return r
}

// Register always fails: the registry is frozen once built
func (r *Registry) Register(decl declare.EntityDeclaration) error {
	return &RegistryFrozenError{Class: decl.Name}
}

// Class returns the descriptor for a class name, or for the class reached
// by a dotted association path rooted at a class ("Order.customer.address").
func (r *Registry) Class(nameOrPath string) (*ClassDescriptor, error) {
	if !strings.Contains(nameOrPath, ".") {
		class, ok := r.classes[nameOrPath]
		if !ok {
			return nil, &UnknownEntityError{Name: nameOrPath}
		}
		return class, nil
	}

	root, rest, _ := strings.Cut(nameOrPath, ".")
	class, ok := r.classes[root]
	if !ok {
		return nil, &InvalidPropertyPathError{Path: nameOrPath, Segment: root, Reason: "unknown entity"}
	}

	chain, err := r.resolveChain(class, nameOrPath, rest)
	if err != nil {
		return nil, err
	}
	last := chain[len(chain)-1]
	if !last.IsAssociation() {
		return nil, &InvalidPropertyPathError{
			Path:    nameOrPath,
			Segment: last.name,
			Reason:  "not an association",
		}
	}
	return last.rng.target, nil
}

// ResolvePath resolves a dotted property path relative to className and
// returns the descriptor of every segment. Every segment but the last must
// be an association.
func (r *Registry) ResolvePath(className, path string) ([]*PropertyDescriptor, error) {
	class, err := r.Class(className)
	if err != nil {
		return nil, err
	}
	return r.resolveChain(class, path, path)
}

// Property resolves a dotted path and returns the descriptor of its last segment
func (r *Registry) Property(className, path string) (*PropertyDescriptor, error) {
	chain, err := r.ResolvePath(className, path)
	if err != nil {
		return nil, err
	}
	return chain[len(chain)-1], nil
}

func (r *Registry) resolveChain(class *ClassDescriptor, fullPath, path string) ([]*PropertyDescriptor, error) {
	segments := strings.Split(path, ".")
	chain := make([]*PropertyDescriptor, 0, len(segments))

	current := class
	for i, segment := range segments {
		if segment == "" {
			return nil, &InvalidPropertyPathError{Path: fullPath, Segment: segment, Reason: "empty segment"}
		}
		if current == nil {
			return nil, &InvalidPropertyPathError{
				Path:    fullPath,
				Segment: segment,
				Reason:  "previous segment is not an association",
			}
		}
		p, ok := current.properties[segment]
		if !ok {
			return nil, &InvalidPropertyPathError{
				Path:    fullPath,
				Segment: segment,
				Reason:  "no such property on " + current.name,
			}
		}
		chain = append(chain, p)

		if i < len(segments)-1 {
			if !p.IsAssociation() {
				return nil, &InvalidPropertyPathError{
					Path:    fullPath,
					Segment: segments[i+1],
					Reason:  segment + " is not an association",
				}
			}
			current = p.rng.target
		}
	}
	return chain, nil
}

// Exists checks if a class is registered
func (r *Registry) Exists(name string) bool {
	_, ok := r.classes[name]
	return ok
}

// Count returns the number of registered classes
func (r *Registry) Count() int {
	return len(r.classes)
}

// Names returns the sorted class names
func (r *Registry) Names() []string {
	result := make([]string, len(r.names))
	copy(result, r.names)
	return result
}

// Classes returns all descriptors sorted by name
func (r *Registry) Classes() []*ClassDescriptor {
	result := make([]*ClassDescriptor, 0, len(r.names))
	for _, name := range r.names {
		result = append(result, r.classes[name])
	}
	return result
}

// Stores returns the sorted logical store names
func (r *Registry) Stores() []string {
	result := make([]string, len(r.stores))
	copy(result, r.stores)
	return result
}

// ClassesInStore returns the descriptors belonging to store
func (r *Registry) ClassesInStore(store string) []*ClassDescriptor {
	var result []*ClassDescriptor
	for _, name := range r.names {
		if r.classes[name].store == store {
			result = append(result, r.classes[name])
		}
	}
	return result
}

// Descendants returns every class inheriting from name, directly or not
func (r *Registry) Descendants(name string) ([]*ClassDescriptor, error) {
	class, err := r.Class(name)
	if err != nil {
		return nil, err
	}

	var result []*ClassDescriptor
	queue := class.Descendants()
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		result = append(result, next)
		queue = append(queue, next.descendants...)
	}
	return result, nil
}

// AnalyzeAssociations reports association dependencies and cycles. Cycles
// are legal in the association graph; the report is informational.
func (r *Registry) AnalyzeAssociations() *DependencyReport {
	graph := associationGraph(r.classes)
	report := &DependencyReport{
		TotalClasses: len(r.classes),
		Dependencies: make(map[string][]string),
		Dependents:   make(map[string][]string),
		Cycles:       graph.DetectCycles(),
	}

	for _, name := range graph.nodes {
		for _, target := range graph.edges[name] {
			report.Dependencies[name] = append(report.Dependencies[name], target)
			report.Dependents[target] = append(report.Dependents[target], name)
			if target == name {
				report.SelfRefs = append(report.SelfRefs, name)
			}
		}
	}
	return report
}

// RegistryStats holds counts about the registry
type RegistryStats struct {
	TotalClasses      int
	TotalProperties   int
	TotalAssociations int
	TotalCollections  int
	Stores            int
	RootClasses       int
}

// Stats returns statistics about the registry. Only own properties are
// counted, so inherited ones are not counted twice.
func (r *Registry) Stats() *RegistryStats {
	stats := &RegistryStats{
		TotalClasses: len(r.classes),
		Stores:       len(r.stores),
	}
	for _, class := range r.classes {
		if class.ancestor == nil {
			stats.RootClasses++
		}
		for _, p := range class.own {
			stats.TotalProperties++
			if p.IsAssociation() {
				stats.TotalAssociations++
			}
			if p.IsCollection() {
				stats.TotalCollections++
			}
		}
	}
	return stats
}

// AssociationCycles returns the cycles in the association graph
func (r *Registry) AssociationCycles() [][]string {
	return associationGraph(r.classes).DetectCycles()
}
