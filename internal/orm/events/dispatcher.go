package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// AnyClass subscribes a listener to records of every class
const AnyClass = "*"

// Listener receives change records
type Listener interface {
	OnChange(ctx context.Context, record *ChangeRecord) error
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(ctx context.Context, record *ChangeRecord) error

// OnChange implements Listener
func (f ListenerFunc) OnChange(ctx context.Context, record *ChangeRecord) error {
	return f(ctx, record)
}

type subscription struct {
	listener Listener
	kinds    map[Kind]bool
	async    bool
}

func (s *subscription) accepts(kind Kind) bool {
	return len(s.kinds) == 0 || s.kinds[kind]
}

// SubscribeOption configures a subscription
type SubscribeOption func(*subscription)

// OnKinds restricts a subscription to the given kinds
func OnKinds(kinds ...Kind) SubscribeOption {
	return func(s *subscription) {
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}
}

// Async delivers through the dispatcher's queue instead of inline
func Async() SubscribeOption {
	return func(s *subscription) {
		s.async = true
	}
}

// Dispatcher delivers records to listeners subscribed on the record's
// original class or any of its ancestors, nearest class first. It
// implements Publisher.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]*subscription
	queue     *AsyncQueue
	logger    *zap.Logger
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithQueue sets the queue for async subscriptions
func WithQueue(queue *AsyncQueue) DispatcherOption {
	return func(d *Dispatcher) {
		d.queue = queue
	}
}

// WithDispatcherLogger sets the dispatcher logger
func WithDispatcherLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		listeners: make(map[string][]*subscription),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers a listener for records of className and its
// descendants. Use AnyClass for every class.
func (d *Dispatcher) Subscribe(className string, listener Listener, opts ...SubscribeOption) {
	s := &subscription{listener: listener, kinds: make(map[Kind]bool)}
	for _, opt := range opts {
		opt(s)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[className] = append(d.listeners[className], s)
}

// HasListeners returns true if any listener would receive the record
func (d *Dispatcher) HasListeners(record *ChangeRecord) bool {
	return len(d.matching(record)) > 0
}

func (d *Dispatcher) matching(record *ChangeRecord) []*subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*subscription
	for class := record.OriginalClass(); class != nil; class = class.Ancestor() {
		for _, s := range d.listeners[class.Name()] {
			if s.accepts(record.Kind()) {
				result = append(result, s)
			}
		}
	}
	for _, s := range d.listeners[AnyClass] {
		if s.accepts(record.Kind()) {
			result = append(result, s)
		}
	}
	return result
}

// Publish implements Publisher by dispatching the record
func (d *Dispatcher) Publish(ctx context.Context, record *ChangeRecord) error {
	return d.Dispatch(ctx, record)
}

// Dispatch delivers the record. Synchronous listeners run in order and the
// first failure is returned; async listener failures are only logged.
func (d *Dispatcher) Dispatch(ctx context.Context, record *ChangeRecord) error {
	for _, s := range d.matching(record) {
		if s.async && d.queue != nil {
			listener := s.listener
			task := AsyncTask{
				Name: fmt.Sprintf("%s %s", record.Kind(), record.OriginalClass().Name()),
				Fn: func(ctx context.Context) error {
					return listener.OnChange(ctx, record)
				},
			}
			if err := d.queue.Enqueue(task); err != nil {
				d.logger.Error("failed to enqueue change listener",
					zap.String("record", record.ID().String()),
					zap.Error(err),
				)
			}
			continue
		}

		if err := s.listener.OnChange(ctx, record); err != nil {
			return fmt.Errorf("change listener for %s failed: %w", record.OriginalClass().Name(), err)
		}
	}
	return nil
}
