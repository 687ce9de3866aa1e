package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/metamodel/internal/orm/declare"
)

func TestDefaultRegistryLifecycle(t *testing.T) {
	previous := ResetForTesting(nil)
	t.Cleanup(func() { ResetForTesting(previous) })

	_, err := Default()
	assert.ErrorIs(t, err, ErrRegistryNotBuilt)

	registry, err := Init(declare.StaticProvider(orderDecls()))
	require.NoError(t, err)

	got, err := Default()
	require.NoError(t, err)
	assert.Same(t, registry, got)

	_, err = Init(declare.StaticProvider(orderDecls()))
	assert.True(t, IsRegistryFrozen(err))

	replacement, err := build(t, entity("Tag", "", scalar("label", "string")))
	require.NoError(t, err)

	old := ResetForTesting(replacement)
	assert.Same(t, registry, old)

	got, err = Default()
	require.NoError(t, err)
	assert.True(t, got.Exists("Tag"))
	assert.False(t, got.Exists("Order"))
}

func TestInitFailureLeavesRegistryUnbuilt(t *testing.T) {
	previous := ResetForTesting(nil)
	t.Cleanup(func() { ResetForTesting(previous) })

	_, err := Init(declare.StaticProvider{entity("A", "B", scalar("a", "string"))})
	require.Error(t, err)

	_, err = Default()
	assert.ErrorIs(t, err, ErrRegistryNotBuilt)
}

func TestResetIsAtomicForReaders(t *testing.T) {
	previous := ResetForTesting(nil)
	t.Cleanup(func() { ResetForTesting(previous) })

	first := orderRegistry(t)
	second, err := build(t, entity("Tag", "", scalar("label", "string")))
	require.NoError(t, err)
	ResetForTesting(first)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if i%2 == 0 {
				ResetForTesting(second)
			} else {
				ResetForTesting(first)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			registry, err := Default()
			if !assert.NoError(t, err) {
				return
			}
			// Either registry, never a mix
			count := registry.Count()
			assert.True(t, count == 1 || count == 3)
		}
	}()
	wg.Wait()
}
