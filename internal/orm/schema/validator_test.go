package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/metamodel/internal/orm/declare"
)

func TestDeclarationValidator(t *testing.T) {
	tests := []struct {
		name    string
		decl    declare.EntityDeclaration
		wantErr string
	}{
		{
			name:    "valid",
			decl:    entity("Order", "", scalar("number", "string")),
			wantErr: "",
		},
		{
			name:    "duplicate property",
			decl:    entity("Order", "", scalar("number", "string"), scalar("number", "int")),
			wantErr: "Order.number: property declared more than once",
		},
		{
			name:    "unknown datatype",
			decl:    entity("Order", "", scalar("total", "money")),
			wantErr: "unknown datatype: money",
		},
		{
			name: "collection primary key",
			decl: declare.EntityDeclaration{
				Name:       "Order",
				PrimaryKey: "lines",
				Properties: []declare.PropertyDeclaration{ref("lines", "OrderLine", true)},
			},
			wantErr: "a collection cannot be the primary key",
		},
		{
			name:    "extends itself",
			decl:    entity("Order", "Order"),
			wantErr: "cycle Order -> Order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &declarationValidator{}
			v.validate(tt.decl)

			if tt.wantErr == "" {
				assert.Empty(t, v.errors)
				return
			}
			require.NotEmpty(t, v.errors)
			assert.Contains(t, v.errors[0].Error(), tt.wantErr)
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Class:    "Order",
		Property: "total",
		Message:  "bad",
		Hint:     "fix it",
		Err:      ErrUnknownDatatype,
	}
	assert.Equal(t, "Order.total: bad\n  hint: fix it", err.Error())
	assert.ErrorIs(t, err, ErrUnknownDatatype)
}

func TestNewProperty(t *testing.T) {
	class := &ClassDescriptor{name: "Order", store: "main"}

	p, err := newProperty(class, declare.PropertyDeclaration{Name: "summary", Datatype: "text", Transient: true, ReadOnly: true})
	require.NoError(t, err)
	assert.False(t, p.Persistent())
	assert.True(t, p.ReadOnly())
	assert.Same(t, class, p.DeclaringClass())
	assert.Equal(t, "Order.summary: text", p.String())

	_, err = newProperty(class, declare.PropertyDeclaration{Name: "nothing"})
	assert.ErrorIs(t, err, declare.ErrInvalidDeclaration)
}
