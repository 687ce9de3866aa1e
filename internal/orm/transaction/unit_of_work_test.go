package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/metamodel/internal/orm/events"
	"github.com/conduit-lang/metamodel/internal/orm/fetchplan"
	"github.com/conduit-lang/metamodel/internal/orm/ormtest"
	"github.com/conduit-lang/metamodel/internal/orm/schema"
	"github.com/conduit-lang/metamodel/internal/orm/tracking"
)

type env struct {
	registry *schema.Registry
	plans    *fetchplan.Repository
	recorder *events.Recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	registry := ormtest.Registry(t)
	return &env{
		registry: registry,
		plans:    fetchplan.NewRepository(registry, ormtest.Catalog(t)),
		recorder: &events.Recorder{},
	}
}

func (e *env) plan(t *testing.T, class, name string) *fetchplan.Plan {
	t.Helper()
	p, err := e.plans.FetchPlan(class, name)
	require.NoError(t, err)
	return p
}

func (e *env) manager(opts ...Option) *Manager {
	return NewManager(e.registry, e.recorder, opts...)
}

func newOrder(number string, total int) *tracking.MapEntity {
	id := uuid.New()
	return tracking.NewMapEntity("Order", id, map[string]any{
		"id":     id,
		"number": number,
		"total":  total,
	})
}

func newCustomer(name string) *tracking.MapEntity {
	return tracking.NewMapEntity("Customer", uuid.New(), map[string]any{
		"name":  name,
		"email": name + "@example.com",
	})
}

func TestUnitOfWork_CommitInRegistrationOrder(t *testing.T) {
	e := newEnv(t)
	uow := e.manager().Begin(context.Background())

	order := newOrder("A1", 100)
	_, err := uow.Load(order, e.plan(t, "Order", "order-list"))
	require.NoError(t, err)

	customer := newCustomer("ada")
	require.NoError(t, uow.Create(customer, e.plan(t, "Customer", "customer-brief")))

	line := tracking.NewMapEntity("OrderLine", uuid.New(), map[string]any{"product": "pen", "quantity": 2})
	_, err = uow.Load(line, e.plan(t, "OrderLine", fetchplan.PlanLocal))
	require.NoError(t, err)
	require.NoError(t, uow.Delete(line))

	order.Set("total", 150)

	records, err := uow.Commit(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, events.Updated, records[0].Kind())
	assert.Equal(t, []string{"total"}, records[0].Changes().Names())
	assert.True(t, records[0].Changes().ChangedTo("total", 150))

	assert.Equal(t, events.Created, records[1].Kind())
	assert.Equal(t, "Customer", records[1].OriginalClass().Name())
	assert.Equal(t, []string{"email", "id", "name"}, records[1].Changes().Names())

	assert.Equal(t, events.Deleted, records[2].Kind())
	assert.Equal(t, "OrderLine", records[2].OriginalClass().Name())

	assert.Equal(t, records, e.recorder.Records())
	assert.True(t, uow.IsClosed())
}

func TestUnitOfWork_NoOpUpdates(t *testing.T) {
	e := newEnv(t)
	plan := e.plan(t, "Order", "order-list")

	t.Run("suppressed by default", func(t *testing.T) {
		uow := e.manager().Begin(context.Background())
		_, err := uow.Load(newOrder("A1", 100), plan)
		require.NoError(t, err)

		records, err := uow.Commit(context.Background())
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("emitted as touch events", func(t *testing.T) {
		uow := e.manager(WithTouchEvents()).Begin(context.Background())
		_, err := uow.Load(newOrder("A1", 100), plan)
		require.NoError(t, err)

		records, err := uow.Commit(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.True(t, records[0].Changes().IsEmpty())
	})
}

func TestUnitOfWork_Discard(t *testing.T) {
	e := newEnv(t)
	uow := e.manager().Begin(context.Background())

	order := newOrder("A1", 100)
	_, err := uow.Load(order, e.plan(t, "Order", "order-list"))
	require.NoError(t, err)
	order.Set("total", 999)

	uow.Discard()
	uow.Discard()

	assert.Empty(t, e.recorder.Records())
	assert.Equal(t, 0, uow.Len())

	_, err = uow.Commit(context.Background())
	assert.True(t, IsClosed(err))
	_, err = uow.Load(order, e.plan(t, "Order", "order-list"))
	assert.ErrorIs(t, err, ErrUnitOfWorkClosed)
	assert.ErrorIs(t, uow.Create(order, nil), ErrUnitOfWorkClosed)
	assert.ErrorIs(t, uow.Delete(order), ErrUnitOfWorkClosed)
}

func TestUnitOfWork_Tracking(t *testing.T) {
	e := newEnv(t)
	plan := e.plan(t, "Order", "order-list")

	t.Run("create then delete forgets the entity", func(t *testing.T) {
		uow := e.manager().Begin(context.Background())
		order := newOrder("A1", 100)
		require.NoError(t, uow.Create(order, plan))
		require.NoError(t, uow.Delete(order))
		assert.Equal(t, 0, uow.Len())

		records, err := uow.Commit(context.Background())
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("new entity without identifier", func(t *testing.T) {
		uow := e.manager().Begin(context.Background())
		draft := tracking.NewMapEntity("Order", nil, map[string]any{"number": "draft"})
		require.NoError(t, uow.Create(draft, plan))
		require.NoError(t, uow.Delete(draft))
		assert.Equal(t, 0, uow.Len())
	})

	t.Run("identifier assigned after create", func(t *testing.T) {
		uow := e.manager().Begin(context.Background())
		draft := tracking.NewMapEntity("Order", nil, map[string]any{"number": "draft"})
		require.NoError(t, uow.Create(draft, plan))

		id := uuid.New()
		draft.ID = id
		draft.Set("id", id)
		require.NoError(t, uow.Delete(draft))
		assert.Equal(t, 0, uow.Len())

		records, err := uow.Commit(context.Background())
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("delete untracked", func(t *testing.T) {
		uow := e.manager().Begin(context.Background())
		err := uow.Delete(newOrder("A1", 100))
		assert.ErrorIs(t, err, ErrNotTracked)

		var entityErr *EntityError
		require.ErrorAs(t, err, &entityErr)
		assert.Equal(t, "delete", entityErr.Op)
	})

	t.Run("load twice", func(t *testing.T) {
		uow := e.manager().Begin(context.Background())
		order := newOrder("A1", 100)
		_, err := uow.Load(order, plan)
		require.NoError(t, err)
		_, err = uow.Load(order, plan)
		assert.ErrorIs(t, err, ErrAlreadyTracked)
	})

	t.Run("unknown class", func(t *testing.T) {
		uow := e.manager().Begin(context.Background())
		err := uow.Create(tracking.NewMapEntity("Invoice", 1, nil), plan)
		assert.True(t, schema.IsUnknownEntity(err))
	})

	t.Run("plan of another class", func(t *testing.T) {
		uow := e.manager().Begin(context.Background())
		_, err := uow.Load(newCustomer("ada"), plan)
		assert.True(t, schema.IsClassMismatch(err))
	})

	t.Run("each unit has its own clock", func(t *testing.T) {
		m := e.manager()
		first, err := m.Begin(context.Background()).Load(newOrder("A1", 1), plan)
		require.NoError(t, err)
		second, err := m.Begin(context.Background()).Load(newOrder("A2", 2), plan)
		require.NoError(t, err)
		assert.Equal(t, first.CapturedAt(), second.CapturedAt())
	})
}

func TestUnitOfWork_FailedAssemblyPublishesNothing(t *testing.T) {
	e := newEnv(t)
	uow := e.manager().Begin(context.Background())

	require.NoError(t, uow.Create(newCustomer("ada"), e.plan(t, "Customer", "customer-brief")))
	// Captured under a plan of an unrelated class at commit time
	require.NoError(t, uow.Create(newCustomer("bob"), e.plan(t, "Order", "order-list")))

	records, err := uow.Commit(context.Background())
	require.Error(t, err)
	assert.Nil(t, records)
	assert.True(t, schema.IsClassMismatch(err))
	assert.Empty(t, e.recorder.Records())
	assert.True(t, uow.IsClosed())
}

func TestManager_WithUnitOfWork(t *testing.T) {
	e := newEnv(t)
	plan := e.plan(t, "Order", "order-list")

	t.Run("commits on success", func(t *testing.T) {
		e.recorder = &events.Recorder{}
		records, err := e.manager().WithUnitOfWork(context.Background(), func(ctx context.Context, uow *UnitOfWork) error {
			assert.Same(t, uow, MustFromContext(ctx))
			return uow.Create(newOrder("A1", 100), plan)
		})
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Len(t, e.recorder.Records(), 1)
	})

	t.Run("discards on error", func(t *testing.T) {
		e.recorder = &events.Recorder{}
		boom := errors.New("boom")
		var captured *UnitOfWork
		records, err := e.manager().WithUnitOfWork(context.Background(), func(ctx context.Context, uow *UnitOfWork) error {
			captured = uow
			require.NoError(t, uow.Create(newOrder("A1", 100), plan))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, records)
		assert.True(t, captured.IsClosed())
		assert.Empty(t, e.recorder.Records())
	})

	t.Run("discards on panic", func(t *testing.T) {
		e.recorder = &events.Recorder{}
		m := e.manager()
		assert.Panics(t, func() {
			_, _ = m.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *UnitOfWork) error {
				require.NoError(t, uow.Create(newOrder("A1", 100), plan))
				panic("bad")
			})
		})
		assert.Empty(t, e.recorder.Records())
	})

	t.Run("reuses the unit in context", func(t *testing.T) {
		e.recorder = &events.Recorder{}
		m := e.manager()
		outer := m.Begin(context.Background())

		records, err := m.WithUnitOfWork(outer.Context(), func(ctx context.Context, uow *UnitOfWork) error {
			assert.Same(t, outer, uow)
			return uow.Create(newOrder("A1", 100), plan)
		})
		require.NoError(t, err)
		assert.Nil(t, records)
		assert.Empty(t, e.recorder.Records())
		assert.Equal(t, 1, outer.Len())
	})
}

func TestManager_PublishFailures(t *testing.T) {
	e := newEnv(t)
	plan := e.plan(t, "Order", "order-list")

	core, logs := observer.New(zap.ErrorLevel)
	down := errors.New("broker down")
	m := NewManager(e.registry, events.PublisherFunc(func(context.Context, *events.ChangeRecord) error {
		return down
	}), WithLogger(zap.New(core)))

	uow := m.Begin(context.Background())
	require.NoError(t, uow.Create(newOrder("A1", 100), plan))
	require.NoError(t, uow.Create(newOrder("A2", 200), plan))

	records, err := uow.Commit(context.Background())
	assert.Len(t, records, 2, "records are returned even when delivery fails")
	assert.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "publishing created Order#")
	assert.Equal(t, 2, logs.FilterMessage("failed to publish change record").Len())
	assert.True(t, uow.IsClosed())
}

func TestManager_WithTimeout(t *testing.T) {
	e := newEnv(t)

	_, err := e.manager().WithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context, uow *UnitOfWork) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, ErrUnitOfWorkTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	records, err := e.manager().WithTimeout(context.Background(), time.Second, func(ctx context.Context, uow *UnitOfWork) error {
		return uow.Create(newOrder("A1", 100), e.plan(t, "Order", "order-list"))
	})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
