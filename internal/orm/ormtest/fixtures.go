// Package ormtest holds the shared entity model used by the orm package
// tests: an order domain, a self-referencing tree, and a small inheritance
// hierarchy split across two stores.
package ormtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/metamodel/internal/orm/declare"
	"github.com/conduit-lang/metamodel/internal/orm/schema"
)

// Declarations returns a fresh copy of the fixture declarations
func Declarations() []declare.EntityDeclaration {
	return []declare.EntityDeclaration{
		{
			Name:       "Order",
			Type:       "shop.Order",
			PrimaryKey: "id",
			Properties: []declare.PropertyDeclaration{
				{Name: "id", Datatype: "uuid", Mandatory: true, ReadOnly: true},
				{Name: "number", Datatype: "string", Mandatory: true},
				{Name: "total", Datatype: "decimal"},
				{Name: "placedAt", Datatype: "timestamp"},
				{Name: "status", Enum: &declare.EnumDeclaration{Name: "OrderStatus", Values: []string{"new", "paid", "shipped"}}},
				{Name: "customer", Ref: "Customer"},
				{Name: "lines", Ref: "OrderLine", Many: true},
				{Name: "summary", Datatype: "string", Transient: true},
			},
			FetchPlans: []declare.FetchPlanDeclaration{
				{Name: "order-list", Properties: []declare.FetchPropertyDeclaration{{Name: "number"}, {Name: "total"}}},
				{Name: "order-full", Extends: "order-list", Properties: []declare.FetchPropertyDeclaration{
					{Name: "status"},
					{Name: "customer", Plan: "customer-brief"},
					{Name: "lines", Plan: "_local"},
				}},
				{Name: "order-with-customer", Properties: []declare.FetchPropertyDeclaration{
					{Name: "number"},
					{Name: "customer", Plan: "customer-with-orders"},
				}},
				{Name: "broken", Properties: []declare.FetchPropertyDeclaration{{Name: "nonexistent"}}},
			},
		},
		{
			Name:       "OrderLine",
			PrimaryKey: "id",
			Properties: []declare.PropertyDeclaration{
				{Name: "id", Datatype: "uuid", Mandatory: true},
				{Name: "product", Datatype: "string", Mandatory: true},
				{Name: "quantity", Datatype: "int"},
				{Name: "price", Datatype: "decimal"},
				{Name: "order", Ref: "Order", Mandatory: true},
			},
		},
		{
			Name:       "Customer",
			Type:       "shop.Customer",
			PrimaryKey: "id",
			Properties: []declare.PropertyDeclaration{
				{Name: "id", Datatype: "uuid", Mandatory: true, ReadOnly: true},
				{Name: "name", Datatype: "string", Mandatory: true},
				{Name: "email", Datatype: "email"},
				{Name: "orders", Ref: "Order", Many: true},
			},
			FetchPlans: []declare.FetchPlanDeclaration{
				{Name: "customer-brief", Properties: []declare.FetchPropertyDeclaration{{Name: "name"}, {Name: "email"}}},
				{Name: "customer-with-orders", Properties: []declare.FetchPropertyDeclaration{
					{Name: "name"},
					{Name: "orders", Plan: "order-with-customer"},
				}},
			},
		},
		{
			Name:       "Node",
			PrimaryKey: "id",
			Properties: []declare.PropertyDeclaration{
				{Name: "id", Datatype: "bigint", Mandatory: true},
				{Name: "name", Datatype: "string"},
				{Name: "parent", Ref: "Node"},
				{Name: "children", Ref: "Node", Many: true},
			},
			FetchPlans: []declare.FetchPlanDeclaration{
				{Name: "tree", Properties: []declare.FetchPropertyDeclaration{
					{Name: "name"},
					{Name: "parent", Plan: "tree"},
					{Name: "children", Plan: "tree"},
				}},
			},
		},
		{
			Name:       "Party",
			PrimaryKey: "id",
			Properties: []declare.PropertyDeclaration{
				{Name: "id", Datatype: "uuid", Mandatory: true},
				{Name: "name", Datatype: "string"},
				{Name: "createdAt", Datatype: "timestamp", ReadOnly: true},
			},
			FetchPlans: []declare.FetchPlanDeclaration{
				{Name: "party-brief", Properties: []declare.FetchPropertyDeclaration{{Name: "name"}}},
			},
		},
		{
			Name:    "Person",
			Extends: "Party",
			Properties: []declare.PropertyDeclaration{
				{Name: "name", Datatype: "string", Mandatory: true},
				{Name: "birthDate", Datatype: "date"},
				{Name: "employer", Ref: "Company"},
			},
			FetchPlans: []declare.FetchPlanDeclaration{
				{Name: "person-card", Extends: "party-brief", Properties: []declare.FetchPropertyDeclaration{
					{Name: "birthDate"},
					{Name: "employer", Plan: "_minimal"},
				}},
			},
		},
		{
			Name:    "Company",
			Extends: "Party",
			Properties: []declare.PropertyDeclaration{
				{Name: "vatNumber", Datatype: "string"},
				{Name: "staff", Ref: "Person", Many: true},
			},
		},
		{
			Name:       "AuditEntry",
			Store:      "audit",
			PrimaryKey: "id",
			Properties: []declare.PropertyDeclaration{
				{Name: "id", Datatype: "bigint", Mandatory: true},
				{Name: "message", Datatype: "text"},
				{Name: "actor", Ref: "Person"},
			},
		},
	}
}

// Provider serves Declarations
func Provider() declare.StaticProvider {
	return declare.StaticProvider(Declarations())
}

// Catalog indexes the fixture fetch plans
func Catalog(t testing.TB) *declare.Catalog {
	t.Helper()
	catalog, err := declare.NewCatalog(Declarations())
	require.NoError(t, err)
	return catalog
}

// Registry builds a registry from the fixture declarations
func Registry(t testing.TB) *schema.Registry {
	t.Helper()
	builder := schema.NewBuilder()
	require.NoError(t, builder.RegisterAll(Provider()))
	registry, err := builder.Build()
	require.NoError(t, err)
	return registry
}
