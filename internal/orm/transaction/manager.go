package transaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/metamodel/internal/orm/events"
	"github.com/conduit-lang/metamodel/internal/orm/schema"
	"github.com/conduit-lang/metamodel/internal/orm/tracking"
)

// Manager starts units of work against one registry and publisher
type Manager struct {
	registry    *schema.Registry
	publisher   events.Publisher
	assembler   *events.Assembler
	retry       *RetryConfig
	touchEvents bool
	logger      *zap.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the manager logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRetry sets the retry policy for publishing
func WithRetry(config *RetryConfig) Option {
	return func(m *Manager) {
		m.retry = config
	}
}

// WithAssembler replaces the record assembler
func WithAssembler(assembler *events.Assembler) Option {
	return func(m *Manager) {
		m.assembler = assembler
	}
}

// WithTouchEvents makes units emit update records with no changes
func WithTouchEvents() Option {
	return func(m *Manager) {
		m.touchEvents = true
	}
}

// NewManager creates a manager. A nil publisher discards records.
func NewManager(registry *schema.Registry, publisher events.Publisher, opts ...Option) *Manager {
	if publisher == nil {
		publisher = events.PublisherFunc(func(context.Context, *events.ChangeRecord) error { return nil })
	}
	m := &Manager{
		registry:  registry,
		publisher: publisher,
		assembler: events.NewAssembler(),
		retry:     &RetryConfig{MaxRetries: 1},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin starts a unit of work with its own logical clock
func (m *Manager) Begin(ctx context.Context) *UnitOfWork {
	return &UnitOfWork{
		id:      uuid.New(),
		ctx:     ctx,
		manager: m,
		tracker: tracking.NewTracker(m.registry),
		index:   make(map[string]*entry),
	}
}

// WithUnitOfWork runs fn inside a unit of work. The unit is committed when
// fn succeeds and discarded when it fails or panics. A unit already present
// in ctx is reused and left for its owner to commit.
func (m *Manager) WithUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) ([]*events.ChangeRecord, error) {
	if uow, ok := FromContext(ctx); ok && !uow.IsClosed() {
		return nil, fn(ctx, uow)
	}

	uow := m.Begin(ctx)

	defer func() {
		if p := recover(); p != nil {
			uow.Discard()
			panic(p)
		}
	}()

	if err := fn(uow.Context(), uow); err != nil {
		uow.Discard()
		return nil, err
	}

	return uow.Commit(ctx)
}

func (m *Manager) publish(ctx context.Context, record *events.ChangeRecord) error {
	err := m.retry.do(ctx, func() error {
		return m.publisher.Publish(ctx, record)
	})
	if err != nil {
		m.logger.Error("failed to publish change record",
			zap.String("record", record.ID().String()),
			zap.String("kind", record.Kind().String()),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w", record.Kind(), err)
	}
	return nil
}
