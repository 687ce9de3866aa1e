package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/metamodel/internal/orm/events"
	"github.com/conduit-lang/metamodel/internal/orm/fetchplan"
	"github.com/conduit-lang/metamodel/internal/orm/tracking"
)

type entryState int

const (
	stateLoaded entryState = iota
	stateCreated
	stateDeleted
)

type entry struct {
	entity tracking.Entity
	plan   *fetchplan.Plan
	before *tracking.Snapshot
	state  entryState
	// key is the identity the entry was indexed under, empty when the entity
	// had no id at registration
	key string
}

// UnitOfWork owns the snapshots captured during one logical transaction.
// It is not safe for concurrent use.
type UnitOfWork struct {
	id      uuid.UUID
	ctx     context.Context
	manager *Manager
	tracker *tracking.Tracker
	entries []*entry
	index   map[string]*entry
	closed  bool
}

// ID returns the unit of work identifier
func (u *UnitOfWork) ID() uuid.UUID { return u.id }

// Context returns a context carrying the unit of work
func (u *UnitOfWork) Context() context.Context {
	return WithContext(u.ctx, u)
}

// IsClosed returns true after Commit or Discard
func (u *UnitOfWork) IsClosed() bool { return u.closed }

// Len returns the number of tracked entities
func (u *UnitOfWork) Len() int { return len(u.entries) }

func entityKey(e tracking.Entity) (string, bool) {
	if e.EntityID() == nil {
		return "", false
	}
	return e.EntityClass() + "/" + tracking.Ref{ID: e.EntityID()}.Key(), true
}

func describe(e tracking.Entity) string {
	return tracking.Ref{Class: e.EntityClass(), ID: e.EntityID()}.String()
}

func (u *UnitOfWork) track(e *entry) error {
	if key, ok := entityKey(e.entity); ok {
		if _, exists := u.index[key]; exists {
			return ErrAlreadyTracked
		}
		u.index[key] = e
		e.key = key
	}
	u.entries = append(u.entries, e)
	return nil
}

// Load registers an entity read from storage and captures its state under
// plan. The snapshot is the "before" side of the entity's update record.
func (u *UnitOfWork) Load(entity tracking.Entity, plan *fetchplan.Plan) (*tracking.Snapshot, error) {
	if u.closed {
		return nil, ErrUnitOfWorkClosed
	}
	before, err := u.tracker.Capture(entity, plan)
	if err != nil {
		return nil, &EntityError{Op: "load", Entity: describe(entity), Err: err}
	}
	if err := u.track(&entry{entity: entity, plan: plan, before: before, state: stateLoaded}); err != nil {
		return nil, &EntityError{Op: "load", Entity: describe(entity), Err: err}
	}
	return before, nil
}

// Create registers a new entity. Its state is captured under plan at commit.
func (u *UnitOfWork) Create(entity tracking.Entity, plan *fetchplan.Plan) error {
	if u.closed {
		return ErrUnitOfWorkClosed
	}
	if _, err := u.manager.registry.Class(entity.EntityClass()); err != nil {
		return &EntityError{Op: "create", Entity: describe(entity), Err: err}
	}
	if err := u.track(&entry{entity: entity, plan: plan, state: stateCreated}); err != nil {
		return &EntityError{Op: "create", Entity: describe(entity), Err: err}
	}
	return nil
}

// Delete marks a loaded entity for deletion. Deleting an entity created in
// the same unit forgets it, even when it was given its id after Create.
func (u *UnitOfWork) Delete(entity tracking.Entity) error {
	if u.closed {
		return ErrUnitOfWorkClosed
	}
	key, ok := entityKey(entity)
	if !ok {
		return u.forgetCreated(entity)
	}
	e, ok := u.index[key]
	if !ok {
		return u.forgetCreated(entity)
	}
	if e.state == stateCreated {
		return u.forgetCreated(e.entity)
	}
	e.state = stateDeleted
	return nil
}

func (u *UnitOfWork) forgetCreated(entity tracking.Entity) error {
	for i, e := range u.entries {
		if e.entity == entity && e.state == stateCreated {
			u.entries = append(u.entries[:i], u.entries[i+1:]...)
			if e.key != "" {
				delete(u.index, e.key)
			}
			return nil
		}
	}
	return &EntityError{Op: "delete", Entity: describe(entity), Err: ErrNotTracked}
}

// Records assembles the change records the unit would emit, in
// registration order, without closing it.
func (u *UnitOfWork) Records() ([]*events.ChangeRecord, error) {
	if u.closed {
		return nil, ErrUnitOfWorkClosed
	}

	var records []*events.ChangeRecord
	for _, e := range u.entries {
		record, err := u.assemble(e)
		if err != nil {
			return nil, &EntityError{Op: "commit", Entity: describe(e.entity), Err: err}
		}
		if record != nil {
			records = append(records, record)
		}
	}
	return records, nil
}

func (u *UnitOfWork) assemble(e *entry) (*events.ChangeRecord, error) {
	assembler := u.manager.assembler

	switch e.state {
	case stateDeleted:
		return assembler.Assemble(events.Deleted, e.before, nil, e.before.Class())
	case stateCreated:
		after, err := u.tracker.Capture(e.entity, e.plan)
		if err != nil {
			return nil, err
		}
		return assembler.Assemble(events.Created, nil, after, after.Class())
	default:
		after, err := u.tracker.Capture(e.entity, e.plan)
		if err != nil {
			return nil, err
		}
		record, err := assembler.Assemble(events.Updated, e.before, after, e.before.Class())
		if err != nil {
			return nil, err
		}
		if record.Changes().IsEmpty() && !u.manager.touchEvents {
			return nil, nil
		}
		return record, nil
	}
}

// Commit assembles every change record and hands them to the publisher.
// If any record fails to assemble nothing is published. Publish failures
// are joined; the unit is closed either way.
func (u *UnitOfWork) Commit(ctx context.Context) ([]*events.ChangeRecord, error) {
	records, err := u.Records()
	if err != nil {
		if !errors.Is(err, ErrUnitOfWorkClosed) {
			u.close()
		}
		return nil, err
	}
	u.close()

	var errs []error
	for _, record := range records {
		if err := u.manager.publish(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("publishing %s: %w", record, err))
		}
	}

	u.manager.logger.Debug("unit of work committed",
		zap.String("unit", u.id.String()),
		zap.Int("records", len(records)),
		zap.Int("failed", len(errs)),
	)
	return records, errors.Join(errs...)
}

// Discard drops every snapshot without emitting records
func (u *UnitOfWork) Discard() {
	if u.closed {
		return
	}
	u.close()
	u.manager.logger.Debug("unit of work discarded", zap.String("unit", u.id.String()))
}

func (u *UnitOfWork) close() {
	u.closed = true
	u.entries = nil
	u.index = nil
}
