package declare

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersDocument = `
entities:
  - name: Customer
    primary_key: id
    properties:
      - {name: id, datatype: uuid}
      - {name: name, datatype: string, mandatory: true}
  - name: Order
    store: sales
    primary_key: id
    properties:
      - {name: id, datatype: uuid}
      - {name: number, datatype: string}
      - {name: total, datatype: decimal}
      - {name: status, enum: {name: OrderStatus, values: [new, paid]}}
      - {name: customer, ref: Customer}
      - {name: lines, ref: OrderLine, many: true}
    fetch_plans:
      - name: order-list
        properties: [number, total]
      - name: order-full
        extends: order-list
        properties:
          - customer
          - {name: lines, plan: _local}
`

func TestDecode(t *testing.T) {
	provider := NewYAMLProvider([]byte(ordersDocument))
	decls, err := provider.Declarations()
	require.NoError(t, err)
	require.Len(t, decls, 2)

	order := decls[1]
	assert.Equal(t, "Order", order.Name)
	assert.Equal(t, "sales", order.StoreName())
	assert.Equal(t, DefaultStore, decls[0].StoreName())
	require.Len(t, order.Properties, 6)
	assert.Equal(t, []string{"new", "paid"}, order.Properties[3].Enum.Values)
	assert.True(t, order.Properties[5].Many)

	require.Len(t, order.FetchPlans, 2)
	full := order.FetchPlans[1]
	assert.Equal(t, "order-list", full.Extends)
	assert.Equal(t, FetchPropertyDeclaration{Name: "customer"}, full.Properties[0])
	assert.Equal(t, FetchPropertyDeclaration{Name: "lines", Plan: "_local"}, full.Properties[1])
}

func TestDecode_Empty(t *testing.T) {
	decls, err := NewYAMLProvider([]byte("")).Declarations()
	require.NoError(t, err)
	assert.Empty(t, decls)
}

func TestDecode_UnknownField(t *testing.T) {
	_, err := NewYAMLProvider([]byte("entities:\n  - name: A\n    colour: red\n")).Declarations()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDeclaration)
}

func TestYAMLFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ordersDocument), 0o644))

	decls, err := NewYAMLFileProvider(path).Declarations()
	require.NoError(t, err)
	assert.Len(t, decls, 2)

	_, err = NewYAMLFileProvider(filepath.Join(t.TempDir(), "missing.yaml")).Declarations()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		decls   []EntityDeclaration
		wantErr bool
	}{
		{
			name: "valid",
			decls: []EntityDeclaration{{
				Name:       "Item",
				Properties: []PropertyDeclaration{{Name: "sku", Datatype: "string"}},
			}},
		},
		{
			name:    "missing entity name",
			decls:   []EntityDeclaration{{Properties: []PropertyDeclaration{{Name: "sku", Datatype: "string"}}}},
			wantErr: true,
		},
		{
			name:    "bad identifier",
			decls:   []EntityDeclaration{{Name: "Line Item"}},
			wantErr: true,
		},
		{
			name: "no range",
			decls: []EntityDeclaration{{
				Name:       "Item",
				Properties: []PropertyDeclaration{{Name: "sku"}},
			}},
			wantErr: true,
		},
		{
			name: "two ranges",
			decls: []EntityDeclaration{{
				Name:       "Item",
				Properties: []PropertyDeclaration{{Name: "sku", Datatype: "string", Ref: "Other"}},
			}},
			wantErr: true,
		},
		{
			name: "many on datatype",
			decls: []EntityDeclaration{{
				Name:       "Item",
				Properties: []PropertyDeclaration{{Name: "tags", Datatype: "string", Many: true}},
			}},
			wantErr: true,
		},
		{
			name: "empty enum",
			decls: []EntityDeclaration{{
				Name:       "Item",
				Properties: []PropertyDeclaration{{Name: "kind", Enum: &EnumDeclaration{Name: "Kind"}}},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.decls)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDeclaration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCatalog(t *testing.T) {
	decls, err := NewYAMLProvider([]byte(ordersDocument)).Declarations()
	require.NoError(t, err)

	catalog, err := NewCatalog(decls)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Count())

	plan, ok := catalog.FetchPlan("Order", "order-list")
	require.True(t, ok)
	assert.Len(t, plan.Properties, 2)

	_, ok = catalog.FetchPlan("Customer", "order-list")
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"order-list", "order-full"}, catalog.Names("Order"))

	t.Run("concurrent reads", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok := catalog.FetchPlan("Order", "order-full")
				assert.True(t, ok)
				assert.Len(t, catalog.Names("Order"), 2)
			}()
		}
		wg.Wait()
	})

	t.Run("duplicate plan", func(t *testing.T) {
		dup := []EntityDeclaration{{
			Name:       "Item",
			FetchPlans: []FetchPlanDeclaration{{Name: "a"}, {Name: "a"}},
		}}
		_, err := NewCatalog(dup)
		assert.ErrorIs(t, err, ErrInvalidDeclaration)
	})
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{{Name: "A"}}
	decls, err := p.Declarations()
	require.NoError(t, err)
	decls[0].Name = "B"
	assert.Equal(t, "A", p[0].Name)
}
