package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/metamodel/internal/orm/tracking"
)

func personCreated(t *testing.T, f *fixture) *ChangeRecord {
	t.Helper()
	person := tracking.NewMapEntity("Person", uuid.New(), map[string]any{"name": "Ada"})
	after := f.capture(t, person, "Person", "party-brief")
	record, err := NewAssembler().Assemble(Created, nil, after, nil)
	require.NoError(t, err)
	return record
}

func TestDispatcher_AncestorDispatch(t *testing.T) {
	f := newFixture(t)
	record := personCreated(t, f)

	var mu sync.Mutex
	var calls []string
	listen := func(name string) Listener {
		return ListenerFunc(func(ctx context.Context, r *ChangeRecord) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, name)
			return nil
		})
	}

	d := NewDispatcher()
	d.Subscribe(AnyClass, listen("any"))
	d.Subscribe("Party", listen("party"))
	d.Subscribe("Person", listen("person"))
	d.Subscribe("Company", listen("company"))
	d.Subscribe("Person", listen("person-deleted"), OnKinds(Deleted))

	assert.True(t, d.HasListeners(record))
	require.NoError(t, d.Dispatch(context.Background(), record))
	assert.Equal(t, []string{"person", "party", "any"}, calls)
}

func TestDispatcher_SyncFailure(t *testing.T) {
	f := newFixture(t)
	record := personCreated(t, f)

	boom := errors.New("boom")
	reached := false

	d := NewDispatcher()
	d.Subscribe("Person", ListenerFunc(func(ctx context.Context, r *ChangeRecord) error {
		return boom
	}))
	d.Subscribe("Party", ListenerFunc(func(ctx context.Context, r *ChangeRecord) error {
		reached = true
		return nil
	}))

	err := d.Publish(context.Background(), record)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "Person")
	assert.False(t, reached)
}

func TestDispatcher_AsyncListeners(t *testing.T) {
	f := newFixture(t)
	record := personCreated(t, f)

	queue := NewAsyncQueue(2, 10)
	queue.Start()
	defer queue.Shutdown()

	received := make(chan *ChangeRecord, 1)
	d := NewDispatcher(WithQueue(queue))
	d.Subscribe("Party", ListenerFunc(func(ctx context.Context, r *ChangeRecord) error {
		received <- r
		return errors.New("ignored")
	}), Async())

	require.NoError(t, d.Dispatch(context.Background(), record))

	select {
	case got := <-received:
		assert.Same(t, record, got)
	case <-time.After(2 * time.Second):
		t.Fatal("async listener was not called")
	}
}

func TestDispatcher_NoListeners(t *testing.T) {
	f := newFixture(t)
	d := NewDispatcher()
	record := personCreated(t, f)

	assert.False(t, d.HasListeners(record))
	assert.NoError(t, d.Dispatch(context.Background(), record))
}

func TestMultiPublisher(t *testing.T) {
	f := newFixture(t)
	record := personCreated(t, f)

	first, second := &Recorder{}, &Recorder{}
	failing := PublisherFunc(func(ctx context.Context, r *ChangeRecord) error {
		return errors.New("down")
	})

	err := MultiPublisher{first, failing, second}.Publish(context.Background(), record)
	assert.EqualError(t, err, "down")
	assert.Len(t, first.Records(), 1)
	assert.Len(t, second.Records(), 1)
}
