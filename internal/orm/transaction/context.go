package transaction

import (
	"context"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const contextKeyUnitOfWork contextKey = "conduit:unit-of-work"

// FromContext retrieves a unit of work from the context
func FromContext(ctx context.Context) (*UnitOfWork, bool) {
	uow, ok := ctx.Value(contextKeyUnitOfWork).(*UnitOfWork)
	return uow, ok
}

// WithContext returns a new context carrying the unit of work
func WithContext(ctx context.Context, uow *UnitOfWork) context.Context {
	return context.WithValue(ctx, contextKeyUnitOfWork, uow)
}

// MustFromContext retrieves a unit of work from the context.
// Panics if none is present.
func MustFromContext(ctx context.Context) *UnitOfWork {
	uow, ok := FromContext(ctx)
	if !ok {
		panic("no unit of work found in context")
	}
	return uow
}
