package fetchplan

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/conduit-lang/metamodel/internal/orm/declare"
	"github.com/conduit-lang/metamodel/internal/orm/schema"
)

// planLister is implemented by plan sources that can enumerate their plans
type planLister interface {
	Names(className string) []string
}

// Repository resolves named plans against the metamodel and caches them by
// (class, plan). Each key is resolved at most once at a time; concurrent
// callers share the result. A Repository is safe for concurrent use.
type Repository struct {
	registry *schema.Registry
	source   declare.PlanSource
	logger   *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[Key]*Plan
}

// Option configures a Repository
type Option func(*Repository)

// WithLogger sets the repository logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRepository creates a repository over registry. source may be nil, in
// which case only the built-in plans resolve.
func NewRepository(registry *schema.Registry, source declare.PlanSource, opts ...Option) *Repository {
	r := &Repository{
		registry: registry,
		source:   source,
		logger:   zap.NewNop(),
		cache:    make(map[Key]*Plan),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the metamodel the repository resolves against
func (r *Repository) Registry() *schema.Registry { return r.registry }

// FetchPlan returns the named plan of className. Plans declared on an
// ancestor are usable for descendants and are owned by the requested class.
func (r *Repository) FetchPlan(className, planName string) (*Plan, error) {
	class, err := r.registry.Class(className)
	if err != nil {
		return nil, err
	}
	key := Key{Class: class.Name(), Plan: planName}

	if plan, ok := r.cached(key); ok {
		return plan, nil
	}

	v, err, _ := r.group.Do(key.String(), func() (interface{}, error) {
		if plan, ok := r.cached(key); ok {
			return plan, nil
		}
		return r.resolve(class, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Plan), nil
}

func (r *Repository) cached(key Key) (*Plan, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plan, ok := r.cache[key]
	return plan, ok
}

func (r *Repository) resolve(class *schema.ClassDescriptor, key Key) (*Plan, error) {
	r.logger.Debug("resolving fetch plan",
		zap.String("class", key.Class),
		zap.String("plan", key.Plan),
	)

	rs := newResolver(r.source, r.logger)
	root, err := rs.resolve(class, key.Plan)
	if err != nil {
		return nil, fmt.Errorf("resolving fetch plan %s: %w", key, err)
	}
	plan := newPlan(root, rs.done)

	r.mu.Lock()
	if existing, ok := r.cache[key]; ok {
		plan = existing
	} else {
		r.cache[key] = plan
	}
	for k, n := range rs.done {
		if _, ok := r.cache[k]; !ok {
			r.cache[k] = &Plan{root: n, named: rs.done}
		}
	}
	r.mu.Unlock()

	r.logger.Debug("fetch plan resolved",
		zap.String("class", key.Class),
		zap.String("plan", key.Plan),
		zap.Int("nodes", plan.NodeCount()),
	)
	return plan, nil
}

// Builder starts an ad hoc plan for className
func (r *Repository) Builder(className string) *Builder {
	return NewBuilder(r.registry, className)
}

// Build creates an ad hoc plan with the given properties and nested plans
func (r *Repository) Build(className string, propertyNames []string, nested map[string]*Builder) (*Plan, error) {
	b := NewBuilder(r.registry, className).Add(propertyNames...)

	names := make([]string, 0, len(nested))
	for name := range nested {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.AddNested(name, nested[name])
	}
	return b.Build()
}

// Merge returns the union of two plans
func (r *Repository) Merge(a, b *Plan) (*Plan, error) {
	merged, err := Merge(a, b)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("fetch plans merged",
		zap.String("class", merged.Class().Name()),
		zap.String("plan", merged.Name()),
	)
	return merged, nil
}

// Preload resolves every declared plan of every class, so that definition
// errors surface at startup. It needs a source that can list its plans.
func (r *Repository) Preload() error {
	lister, ok := r.source.(planLister)
	if !ok {
		return nil
	}

	var errs []error
	for _, class := range r.registry.Classes() {
		for _, name := range lister.Names(class.Name()) {
			if _, err := r.FetchPlan(class.Name(), name); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	r.logger.Info("fetch plans preloaded", zap.Int("cached", r.Len()))
	return nil
}

// Len returns the number of cached plans
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
