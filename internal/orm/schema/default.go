package schema

import (
	"sync"
	"sync/atomic"

	"github.com/conduit-lang/metamodel/internal/orm/declare"
)

// Process-wide registry. Reads are lock-free; the writer mutex serialises
// Init and ResetForTesting.
var (
	defaultRegistry atomic.Pointer[Registry]
	writerMu        sync.Mutex
)

// Init builds the process-wide registry from provider. It fails with
// RegistryFrozenError if a registry is already installed.
func Init(provider declare.Provider, opts ...BuilderOption) (*Registry, error) {
	writerMu.Lock()
	defer writerMu.Unlock()

	if defaultRegistry.Load() != nil {
		return nil, &RegistryFrozenError{}
	}

	builder := NewBuilder(opts...)
	if err := builder.RegisterAll(provider); err != nil {
		return nil, err
	}
	registry, err := builder.Build()
	if err != nil {
		return nil, err
	}

	defaultRegistry.Store(registry)
	return registry, nil
}

// Default returns the process-wide registry
func Default() (*Registry, error) {
	registry := defaultRegistry.Load()
	if registry == nil {
		return nil, ErrRegistryNotBuilt
	}
	return registry, nil
}

// ResetForTesting atomically replaces the process-wide registry with
// registry (nil uninstalls it) and returns the previous one. Only tests
// may call it.
func ResetForTesting(registry *Registry) *Registry {
	writerMu.Lock()
	defer writerMu.Unlock()

	return defaultRegistry.Swap(registry)
}
