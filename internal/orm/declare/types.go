// Package declare defines the declarative description of entity types and
// fetch plans consumed by the metamodel build. Declarations come from a
// Provider; the core never inspects Go types or source-level metadata.
package declare

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultStore is the logical store used when a declaration names none
const DefaultStore = "main"

// EntityDeclaration describes one entity type as yielded by a Provider
type EntityDeclaration struct {
	Name       string                 `yaml:"name" validate:"required,identifier"`
	Type       string                 `yaml:"type,omitempty"`
	Extends    string                 `yaml:"extends,omitempty" validate:"omitempty,identifier"`
	Store      string                 `yaml:"store,omitempty"`
	PrimaryKey string                 `yaml:"primary_key,omitempty"`
	Properties []PropertyDeclaration  `yaml:"properties" validate:"dive"`
	FetchPlans []FetchPlanDeclaration `yaml:"fetch_plans,omitempty" validate:"dive"`
}

// StoreName returns the logical store, defaulting to DefaultStore
func (e EntityDeclaration) StoreName() string {
	if e.Store == "" {
		return DefaultStore
	}
	return e.Store
}

// PropertyDeclaration describes one property. Exactly one of Datatype, Enum
// or Ref must be set.
type PropertyDeclaration struct {
	Name      string           `yaml:"name" validate:"required,identifier"`
	Datatype  string           `yaml:"datatype,omitempty"`
	Enum      *EnumDeclaration `yaml:"enum,omitempty"`
	Ref       string           `yaml:"ref,omitempty" validate:"omitempty,identifier"`
	Many      bool             `yaml:"many,omitempty"`
	Mandatory bool             `yaml:"mandatory,omitempty"`
	ReadOnly  bool             `yaml:"read_only,omitempty"`
	Transient bool             `yaml:"transient,omitempty"`
}

// EnumDeclaration describes an enumeration range
type EnumDeclaration struct {
	Name   string   `yaml:"name" validate:"required"`
	Values []string `yaml:"values" validate:"min=1,unique,dive,required"`
}

// FetchPlanDeclaration describes a named fetch plan on one entity type
type FetchPlanDeclaration struct {
	Name       string                     `yaml:"name" validate:"required"`
	Extends    string                     `yaml:"extends,omitempty"`
	Properties []FetchPropertyDeclaration `yaml:"properties" validate:"dive"`
}

// FetchPropertyDeclaration lists one property of a fetch plan. Plan names a
// plan of the association target to load nested.
type FetchPropertyDeclaration struct {
	Name string `yaml:"name" validate:"required"`
	Plan string `yaml:"plan,omitempty"`
}

// UnmarshalYAML accepts either a bare property name or a mapping
func (f *FetchPropertyDeclaration) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		f.Name = node.Value
		f.Plan = ""
		return nil
	case yaml.MappingNode:
		type plain FetchPropertyDeclaration
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*f = FetchPropertyDeclaration(p)
		return nil
	default:
		return fmt.Errorf("line %d: fetch plan property must be a name or a mapping", node.Line)
	}
}
