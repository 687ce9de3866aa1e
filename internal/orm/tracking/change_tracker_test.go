package tracking

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/metamodel/internal/orm/fetchplan"
	"github.com/conduit-lang/metamodel/internal/orm/ormtest"
	"github.com/conduit-lang/metamodel/internal/orm/schema"
)

type fixture struct {
	registry *schema.Registry
	plans    *fetchplan.Repository
	tracker  *Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := ormtest.Registry(t)
	return &fixture{
		registry: registry,
		plans:    fetchplan.NewRepository(registry, ormtest.Catalog(t)),
		tracker:  NewTracker(registry),
	}
}

func (f *fixture) plan(t *testing.T, class, name string) *fetchplan.Plan {
	t.Helper()
	plan, err := f.plans.FetchPlan(class, name)
	require.NoError(t, err)
	return plan
}

func TestTracker_OrderScenario(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, "Order", "order-list")

	id := uuid.New()
	order := NewMapEntity("Order", id, map[string]any{
		"id":       id,
		"number":   "A1",
		"total":    decimal.NewFromInt(100),
		"customer": Ref{Class: "Customer", ID: uuid.New()},
	})

	before, err := f.tracker.Capture(order, plan)
	require.NoError(t, err)

	order.Set("total", decimal.NewFromInt(150))
	after, err := f.tracker.Capture(order, plan)
	require.NoError(t, err)

	changes, err := f.tracker.Diff(before, after)
	require.NoError(t, err)

	assert.Equal(t, []string{"total"}, changes.Names())
	change, ok := changes.Get("total")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(100).Equal(change.OldValue.(decimal.Decimal)))
	assert.True(t, decimal.NewFromInt(150).Equal(change.NewValue.(decimal.Decimal)))
	assert.False(t, changes.Changed("customer"))
	assert.True(t, changes.ChangedFrom("total", 100))
	assert.True(t, changes.ChangedTo("total", "150"))
}

func TestTracker_Capture(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, "Order", "order-list")

	id := uuid.New()
	order := NewMapEntity("Order", id, map[string]any{
		"number": "A1",
		"status": "paid",
	})

	s, err := f.tracker.Capture(order, plan)
	require.NoError(t, err)

	assert.Equal(t, "Order", s.ClassName())
	assert.Equal(t, id, s.EntityID())
	assert.Equal(t, "A1", s.Value("number"))
	assert.Equal(t, id, s.Value("id"), "primary key is always captured")
	assert.True(t, IsNotLoaded(s.Value("total")), "in plan but not loaded by the entity")
	assert.True(t, IsNotLoaded(s.Value("status")), "outside the plan")
	assert.True(t, IsNotLoaded(s.Value("customer")))
	assert.Equal(t, []string{"id", "number"}, s.Loaded())
}

func TestTracker_CaptureAssociations(t *testing.T) {
	f := newFixture(t)

	customerID := uuid.New()
	customer := NewMapEntity("Customer", customerID, map[string]any{"name": "Ada"})
	lineA := NewMapEntity("OrderLine", 1, nil)

	plan, err := fetchplan.BuildPaths(f.registry, "Order", "number", "customer.name", "lines.product")
	require.NoError(t, err)

	order := NewMapEntity("Order", uuid.New(), map[string]any{
		"number":   "A1",
		"customer": customer,
		"lines":    []any{lineA, Ref{Class: "OrderLine", ID: int64(2)}, 3},
	})

	s, err := f.tracker.Capture(order, plan)
	require.NoError(t, err)

	assert.Equal(t, Ref{Class: "Customer", ID: customerID}, s.Value("customer"))

	lines, ok := s.Value("lines").(RefSet)
	require.True(t, ok)
	assert.Equal(t, 3, lines.Len())
	assert.True(t, lines.Contains(1))
	assert.True(t, lines.Contains(2))
	assert.True(t, lines.Contains(int64(3)))

	// Changes inside the associated entity do not affect the owner's snapshot
	customer.Set("name", "Grace")
	again, err := f.tracker.Capture(order, plan)
	require.NoError(t, err)
	changes, err := Diff(s, again)
	require.NoError(t, err)
	assert.True(t, changes.IsEmpty())
}

func TestTracker_CaptureErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.Capture(NewMapEntity("Invoice", 1, nil), nil)
	assert.True(t, schema.IsUnknownEntity(err))

	plan := f.plan(t, "Customer", "customer-brief")
	_, err = f.tracker.Capture(NewMapEntity("Order", 1, nil), plan)
	assert.ErrorIs(t, err, schema.ErrClassMismatch)

	// A descendant may be captured with an ancestor's plan
	partyPlan := f.plan(t, "Party", "party-brief")
	s, err := f.tracker.Capture(NewMapEntity("Person", uuid.New(), map[string]any{"name": "Ada"}), partyPlan)
	require.NoError(t, err)
	assert.Equal(t, "Person", s.ClassName())
	assert.Equal(t, "Ada", s.Value("name"))
}

func TestTracker_CapturedAtIsMonotonic(t *testing.T) {
	f := newFixture(t)
	order := NewMapEntity("Order", 1, nil)

	var last uint64
	for i := 0; i < 5; i++ {
		s, err := f.tracker.Capture(order, nil)
		require.NoError(t, err)
		assert.Greater(t, s.CapturedAt(), last)
		last = s.CapturedAt()
	}
}

func TestTracker_CapturePointerValues(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, "Order", "_local")

	placedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	total := decimal.NewFromInt(100)
	var status *string
	order := NewMapEntity("Order", 1, map[string]any{
		"number":   "A1",
		"placedAt": &placedAt,
		"total":    &total,
		"status":   status,
	})

	before, err := f.tracker.Capture(order, plan)
	require.NoError(t, err)
	assert.Equal(t, placedAt, before.Value("placedAt"))
	assert.Nil(t, before.Value("status"))

	placedAt = placedAt.Add(time.Hour)
	total = decimal.NewFromInt(150)

	after, err := f.tracker.Capture(order, plan)
	require.NoError(t, err)

	changes, err := f.tracker.Diff(before, after)
	require.NoError(t, err)
	assert.Equal(t, []string{"placedAt", "total"}, changes.Names())
	assert.True(t, changes.ChangedFrom("total", 100))
	assert.True(t, changes.ChangedTo("total", 150))

	change, ok := changes.Get("placedAt")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), change.OldValue)
	assert.Equal(t, placedAt, change.NewValue)
}

func TestDiff(t *testing.T) {
	f := newFixture(t)
	full := f.plan(t, "Order", "order-full")
	list := f.plan(t, "Order", "order-list")

	id := uuid.New()
	base := func() *MapEntity {
		return NewMapEntity("Order", id, map[string]any{
			"id":       id,
			"number":   "A1",
			"total":    decimal.RequireFromString("10.50"),
			"status":   "new",
			"customer": nil,
			"lines":    []Ref{{Class: "OrderLine", ID: 1}, {Class: "OrderLine", ID: 2}},
		})
	}

	t.Run("identical captures", func(t *testing.T) {
		before, _ := f.tracker.Capture(base(), full)
		after, _ := f.tracker.Capture(base(), full)

		changes, err := Diff(before, after)
		require.NoError(t, err)
		assert.True(t, changes.IsEmpty())
	})

	t.Run("one scalar change", func(t *testing.T) {
		before, _ := f.tracker.Capture(base(), full)
		after, _ := f.tracker.Capture(base().Set("number", "A2"), full)

		changes, err := Diff(before, after)
		require.NoError(t, err)
		require.Equal(t, 1, changes.Len())
		change, _ := changes.Get("number")
		assert.Equal(t, "A1", change.OldValue)
		assert.Equal(t, "A2", change.NewValue)
	})

	t.Run("datatype equality", func(t *testing.T) {
		before, _ := f.tracker.Capture(base(), full)
		after, _ := f.tracker.Capture(base().Set("total", "10.5"), full)

		changes, err := Diff(before, after)
		require.NoError(t, err)
		assert.False(t, changes.Changed("total"))
	})

	t.Run("collections compare as identity sets", func(t *testing.T) {
		before, _ := f.tracker.Capture(base(), full)
		reordered := base().Set("lines", []Ref{{Class: "OrderLine", ID: int64(2)}, {Class: "OrderLine", ID: 1}})
		after, _ := f.tracker.Capture(reordered, full)

		changes, err := Diff(before, after)
		require.NoError(t, err)
		assert.False(t, changes.Changed("lines"))

		grown, _ := f.tracker.Capture(base().Set("lines", []Ref{{Class: "OrderLine", ID: 1}, {Class: "OrderLine", ID: 3}}), full)
		changes, err = Diff(before, grown)
		require.NoError(t, err)
		assert.True(t, changes.Changed("lines"))
	})

	t.Run("association identity", func(t *testing.T) {
		before, _ := f.tracker.Capture(base(), full)
		customerID := uuid.New()
		after, _ := f.tracker.Capture(base().Set("customer", customerID.String()), full)

		changes, err := Diff(before, after)
		require.NoError(t, err)
		change, ok := changes.Get("customer")
		require.True(t, ok)
		assert.Nil(t, change.OldValue)
		assert.Equal(t, Ref{Class: "Customer", ID: customerID.String()}, change.NewValue)
		assert.True(t, changes.ChangedTo("customer", Ref{Class: "Customer", ID: customerID}))
	})

	t.Run("not loaded on one side", func(t *testing.T) {
		narrow, _ := f.tracker.Capture(base(), list)
		wide, _ := f.tracker.Capture(base(), full)

		changes, err := Diff(narrow, wide)
		require.NoError(t, err)

		status, ok := changes.Get("status")
		require.True(t, ok)
		assert.Nil(t, status.OldValue)
		assert.Equal(t, "new", status.NewValue)

		// Loaded as null versus not loaded is not a change
		assert.False(t, changes.Changed("customer"))
		assert.False(t, changes.Changed("placedAt"))

		reverse, err := Diff(wide, narrow)
		require.NoError(t, err)
		status, ok = reverse.Get("status")
		require.True(t, ok)
		assert.Equal(t, "new", status.OldValue)
		assert.Nil(t, status.NewValue)
	})

	t.Run("set to null", func(t *testing.T) {
		before, _ := f.tracker.Capture(base(), full)
		after, _ := f.tracker.Capture(base().Set("status", nil), full)

		changes, err := Diff(before, after)
		require.NoError(t, err)
		assert.True(t, changes.ChangedFrom("status", "new"))
		assert.True(t, changes.ChangedTo("status", nil))
	})

	t.Run("incompatible snapshots", func(t *testing.T) {
		order, _ := f.tracker.Capture(base(), list)
		customer, _ := f.tracker.Capture(NewMapEntity("Customer", 1, nil), nil)

		_, err := Diff(order, customer)
		require.Error(t, err)
		assert.True(t, IsIncompatibleSnapshot(err))

		var incompatible *IncompatibleSnapshotError
		require.ErrorAs(t, err, &incompatible)
		assert.Equal(t, "Order", incompatible.Before)
		assert.Equal(t, "Customer", incompatible.After)
	})
}

func TestCreationAndDeletionChanges(t *testing.T) {
	f := newFixture(t)
	full := f.plan(t, "Order", "order-full")

	id := uuid.New()
	order := NewMapEntity("Order", id, map[string]any{
		"id":       id,
		"number":   "A1",
		"total":    nil,
		"status":   "new",
		"customer": nil,
		"lines":    []Ref{},
	})
	s, err := f.tracker.Capture(order, full)
	require.NoError(t, err)

	created := CreationChanges(s)
	assert.Equal(t, []string{"id", "number", "status"}, created.Names())
	for _, change := range created.All() {
		assert.Nil(t, change.OldValue, change.Property)
		assert.NotNil(t, change.NewValue, change.Property)
	}

	deleted := DeletionChanges(s)
	assert.Equal(t, created.Names(), deleted.Names())
	for _, change := range deleted.All() {
		assert.Nil(t, change.NewValue, change.Property)
	}
}

func TestSnapshot_Clone(t *testing.T) {
	f := newFixture(t)
	plan, err := fetchplan.NewBuilder(f.registry, "Order").Add("number").Build()
	require.NoError(t, err)

	order := NewMapEntity("Order", 1, map[string]any{"number": "A1"})
	s, err := f.tracker.Capture(order, plan)
	require.NoError(t, err)

	clone := s.Clone()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.Equal(t, "A1", clone.Value("number"))
		assert.Equal(t, s.CapturedAt(), clone.CapturedAt())
	}()
	wg.Wait()

	changes, err := Diff(s, clone)
	require.NoError(t, err)
	assert.True(t, changes.IsEmpty())
}

func TestAttributeChanges_JSON(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, "Order", "order-list")

	before, _ := f.tracker.Capture(NewMapEntity("Order", 1, map[string]any{"number": "A1"}), plan)
	after, _ := f.tracker.Capture(NewMapEntity("Order", 1, map[string]any{"number": "A2"}), plan)

	changes, err := Diff(before, after)
	require.NoError(t, err)

	data, err := changes.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"number": {"old": "A1", "new": "A2"}}`, string(data))
	assert.Equal(t, map[string]any{"number": "A2"}, changes.NewValues())
}
