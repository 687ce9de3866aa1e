package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/metamodel/internal/orm/declare"
)

// Builder collects entity declarations and builds an immutable Registry.
// A builder builds at most once; after a successful Build it rejects further
// registrations.
type Builder struct {
	mu     sync.Mutex
	decls  []declare.EntityDeclaration
	names  map[string]bool
	frozen bool
	logger *zap.Logger
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithLogger sets the logger used to report the build
func WithLogger(logger *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a new metamodel builder
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		names:  make(map[string]bool),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds one declaration
func (b *Builder) Register(decl declare.EntityDeclaration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return &RegistryFrozenError{Class: decl.Name}
	}
	if b.names[decl.Name] {
		return fmt.Errorf("%w: %s is already registered", ErrDuplicateClass, decl.Name)
	}
	b.names[decl.Name] = true
	b.decls = append(b.decls, decl)
	return nil
}

// RegisterAll adds every declaration yielded by the provider
func (b *Builder) RegisterAll(provider declare.Provider) error {
	decls, err := provider.Declarations()
	if err != nil {
		return fmt.Errorf("failed to load declarations: %w", err)
	}
	if err := declare.Validate(decls); err != nil {
		return err
	}
	for _, decl := range decls {
		if err := b.Register(decl); err != nil {
			return err
		}
	}
	return nil
}

// Build constructs the registry. Construction is all-or-nothing: on error
// no registry is returned and the builder stays open.
//
// Passes: (1) enumerate declarations, (2) construct class descriptors with
// own properties and no ancestor links, (3) wire ancestors, reject
// inheritance cycles and compute inherited properties, (4) back-patch
// association ranges to their target descriptors, so classes may reference
// each other in any declaration order.
func (b *Builder) Build() (*Registry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return nil, &RegistryFrozenError{}
	}

	// Pass 1 and 2
	classes := make(map[string]*ClassDescriptor, len(b.decls))
	ancestors := make(map[string]string, len(b.decls))
	byName := make(map[string]declare.EntityDeclaration, len(b.decls))

	validator := &declarationValidator{}
	for _, decl := range b.decls {
		validator.validate(decl)
	}
	if len(validator.errors) > 0 {
		return nil, buildError(validator.errors)
	}

	var errs []error
	for _, decl := range b.decls {
		class := &ClassDescriptor{
			name:       decl.Name,
			typeHandle: decl.Type,
			store:      decl.StoreName(),
			properties: make(map[string]*PropertyDescriptor),
		}
		for _, propDecl := range decl.Properties {
			p, err := newProperty(class, propDecl)
			if err != nil {
				errs = append(errs, &ValidationError{Class: decl.Name, Property: propDecl.Name, Message: err.Error(), Err: err})
				continue
			}
			class.own = append(class.own, p)
		}
		classes[decl.Name] = class
		ancestors[decl.Name] = decl.Extends
		byName[decl.Name] = decl
	}
	if len(errs) > 0 {
		return nil, buildError(errs)
	}

	// Pass 3
	if err := wireHierarchy(classes, ancestors); err != nil {
		return nil, err
	}
	inherited := make(map[*ClassDescriptor]bool, len(classes))
	for _, name := range sortedNames(classes) {
		inheritProperties(classes[name], inherited)
	}
	for _, name := range sortedNames(classes) {
		if err := resolvePrimaryKey(classes[name], byName); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, buildError(errs)
	}

	// Pass 4
	for _, name := range sortedNames(classes) {
		for _, p := range classes[name].own {
			if !p.rng.IsAssociation() {
				continue
			}
			target, ok := classes[p.rng.targetName]
			if !ok {
				errs = append(errs, &ValidationError{
					Class:    name,
					Property: p.name,
					Message:  fmt.Sprintf("association target %s is not declared", p.rng.targetName),
					Err:      &UnknownEntityError{Name: p.rng.targetName},
				})
				continue
			}
			p.rng.target = target
		}
	}
	if len(errs) > 0 {
		return nil, buildError(errs)
	}

	registry := newRegistry(classes)
	b.frozen = true

	b.logger.Info("metamodel built",
		zap.Int("classes", len(classes)),
		zap.Strings("stores", registry.Stores()),
	)
	return registry, nil
}

func buildError(errs []error) error {
	if len(errs) == 1 {
		return fmt.Errorf("metamodel build failed: %w", errs[0])
	}
	return fmt.Errorf("metamodel build failed with %d errors: %w", len(errs), errors.Join(errs...))
}

// wireHierarchy links ancestors and descendants and rejects unknown
// ancestors and inheritance cycles
func wireHierarchy(classes map[string]*ClassDescriptor, ancestors map[string]string) error {
	for _, name := range sortedNames(classes) {
		ancestorName := ancestors[name]
		if ancestorName == "" {
			continue
		}
		if _, ok := classes[ancestorName]; !ok {
			return &InvalidHierarchyError{
				Class:  name,
				Reason: fmt.Sprintf("ancestor %s is not declared", ancestorName),
			}
		}
	}

	graph := inheritanceGraph(classes, ancestors)
	if cycles := graph.DetectCycles(); len(cycles) > 0 {
		return &InvalidHierarchyError{Class: cycles[0][0], Cycle: cycles[0]}
	}

	for _, name := range sortedNames(classes) {
		if ancestorName := ancestors[name]; ancestorName != "" {
			child, parent := classes[name], classes[ancestorName]
			child.ancestor = parent
			parent.descendants = append(parent.descendants, child)
		}
	}
	return nil
}

// inheritProperties computes the effective property set of class: the
// ancestor's properties first, then own ones. An own property with an
// inherited name replaces the inherited descriptor in place.
func inheritProperties(class *ClassDescriptor, done map[*ClassDescriptor]bool) {
	if done[class] {
		return
	}
	done[class] = true

	if class.ancestor != nil {
		inheritProperties(class.ancestor, done)
		for _, name := range class.ancestor.order {
			class.properties[name] = class.ancestor.properties[name]
			class.order = append(class.order, name)
		}
	}

	for _, p := range class.own {
		if _, inherited := class.properties[p.name]; !inherited {
			class.order = append(class.order, p.name)
		}
		class.properties[p.name] = p
	}
}

// resolvePrimaryKey picks the nearest primary key declared on the class or
// its ancestors
func resolvePrimaryKey(class *ClassDescriptor, decls map[string]declare.EntityDeclaration) error {
	for k := class; k != nil; k = k.ancestor {
		declared := decls[k.name].PrimaryKey
		if declared == "" {
			continue
		}
		p, ok := class.properties[declared]
		if !ok {
			return &ValidationError{
				Class:    k.name,
				Property: declared,
				Message:  "primary key property is not declared",
				Err:      &UnknownPropertyError{Class: k.name, Property: declared},
			}
		}
		class.primaryKey = p
		return nil
	}
	return nil
}

func sortedNames(classes map[string]*ClassDescriptor) []string {
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
