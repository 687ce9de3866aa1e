package declare

import (
	"fmt"
	"sort"
)

// Provider yields the declared entity types. It is consulted once at startup.
type Provider interface {
	Declarations() ([]EntityDeclaration, error)
}

// PlanSource looks up fetch plan declarations by owning class and plan name
type PlanSource interface {
	FetchPlan(className, planName string) (FetchPlanDeclaration, bool)
}

// StaticProvider serves a fixed set of declarations
type StaticProvider []EntityDeclaration

// Declarations returns a copy of the declarations
func (p StaticProvider) Declarations() ([]EntityDeclaration, error) {
	result := make([]EntityDeclaration, len(p))
	copy(result, p)
	return result, nil
}

type planKey struct {
	class string
	plan  string
}

// Catalog indexes the fetch plan declarations of a declaration set. It is
// read-only after NewCatalog and safe for concurrent use.
type Catalog struct {
	plans map[planKey]FetchPlanDeclaration
}

// NewCatalog indexes the fetch plans of decls. Duplicate plan names on the
// same entity are rejected.
func NewCatalog(decls []EntityDeclaration) (*Catalog, error) {
	c := &Catalog{plans: make(map[planKey]FetchPlanDeclaration)}
	for _, entity := range decls {
		for _, plan := range entity.FetchPlans {
			key := planKey{class: entity.Name, plan: plan.Name}
			if _, exists := c.plans[key]; exists {
				return nil, fmt.Errorf("%w: fetch plan %s declared twice on %s", ErrInvalidDeclaration, plan.Name, entity.Name)
			}
			c.plans[key] = plan
		}
	}
	return c, nil
}

// FetchPlan implements PlanSource
func (c *Catalog) FetchPlan(className, planName string) (FetchPlanDeclaration, bool) {
	plan, ok := c.plans[planKey{class: className, plan: planName}]
	return plan, ok
}

// Names returns the sorted plan names declared for className
func (c *Catalog) Names(className string) []string {

	names := make([]string, 0)
	for key := range c.plans {
		if key.class == className {
			names = append(names, key.plan)
		}
	}
	sort.Strings(names)
	return names
}

// Count returns the number of indexed plans
func (c *Catalog) Count() int {
	return len(c.plans)
}
