package events

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/conduit-lang/metamodel/internal/orm/schema"
	"github.com/conduit-lang/metamodel/internal/orm/tracking"
)

// Assembler builds change records from snapshots
type Assembler struct {
	newID func() uuid.UUID
}

// AssemblerOption configures an Assembler
type AssemblerOption func(*Assembler)

// WithIDGenerator replaces the record ID source
func WithIDGenerator(fn func() uuid.UUID) AssemblerOption {
	return func(a *Assembler) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// NewAssembler creates an assembler
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{newID: uuid.New}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the record for kind. Created needs after only, Deleted
// needs before only, Updated needs both. An update without changes still
// yields a record. Every given snapshot must belong to class; a nil class
// defaults to the snapshot's own.
func (a *Assembler) Assemble(kind Kind, before, after *tracking.Snapshot, class *schema.ClassDescriptor) (*ChangeRecord, error) {
	record := &ChangeRecord{kind: kind}

	switch kind {
	case Created:
		if after == nil {
			return nil, fmt.Errorf("%w: created record needs the after snapshot", ErrMissingSnapshot)
		}
		class = classOf(class, after)
		if err := checkClass(class, after); err != nil {
			return nil, err
		}
		record.entityID = after.EntityID()
		record.changes = tracking.CreationChanges(after)
		record.capturedAt = after.CapturedAt()

	case Updated:
		if before == nil || after == nil {
			return nil, fmt.Errorf("%w: updated record needs both snapshots", ErrMissingSnapshot)
		}
		class = classOf(class, after)
		if err := checkClass(class, before); err != nil {
			return nil, err
		}
		if err := checkClass(class, after); err != nil {
			return nil, err
		}
		changes, err := tracking.Diff(before, after)
		if err != nil {
			return nil, err
		}
		record.entityID = after.EntityID()
		if record.entityID == nil {
			record.entityID = before.EntityID()
		}
		record.changes = changes
		record.capturedAt = after.CapturedAt()

	case Deleted:
		if before == nil {
			return nil, fmt.Errorf("%w: deleted record needs the before snapshot", ErrMissingSnapshot)
		}
		class = classOf(class, before)
		if err := checkClass(class, before); err != nil {
			return nil, err
		}
		record.entityID = before.EntityID()
		record.changes = tracking.DeletionChanges(before)
		record.capturedAt = before.CapturedAt()

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}

	record.originalClass = class
	record.id = a.newID()
	return record, nil
}

func classOf(class *schema.ClassDescriptor, s *tracking.Snapshot) *schema.ClassDescriptor {
	if class != nil {
		return class
	}
	return s.Class()
}

func checkClass(class *schema.ClassDescriptor, s *tracking.Snapshot) error {
	if s.ClassName() != class.Name() {
		return &schema.ClassMismatchError{Expected: class.Name(), Actual: s.ClassName()}
	}
	return nil
}
