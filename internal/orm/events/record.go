// Package events turns attribute changes into immutable change records and
// hands them to listeners and publishers. Delivery order, retry and
// transactional phase belong to the publisher.
package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/conduit-lang/metamodel/internal/orm/schema"
	"github.com/conduit-lang/metamodel/internal/orm/tracking"
)

// Kind is the lifecycle event a record describes
type Kind int

const (
	Created Kind = iota
	Updated
	Deleted
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ParseKind converts a string to a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "created":
		return Created, nil
	case "updated":
		return Updated, nil
	case "deleted":
		return Deleted, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	if k < Created || k > Deleted {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// ChangeRecord describes one committed entity mutation. Records are
// immutable once assembled.
type ChangeRecord struct {
	id            uuid.UUID
	entityID      any
	kind          Kind
	changes       *tracking.AttributeChanges
	originalClass *schema.ClassDescriptor
	capturedAt    uint64
}

// ID returns the unique record identifier
func (r *ChangeRecord) ID() uuid.UUID { return r.id }

// EntityID returns the identifier of the changed entity
func (r *ChangeRecord) EntityID() any { return r.entityID }

// Kind returns the lifecycle kind
func (r *ChangeRecord) Kind() Kind { return r.kind }

// Changes returns the attribute changes
func (r *ChangeRecord) Changes() *tracking.AttributeChanges { return r.changes }

// OriginalClass returns the class of the entity at emission time
func (r *ChangeRecord) OriginalClass() *schema.ClassDescriptor { return r.originalClass }

// CapturedAt returns the logical time of the latest snapshot used
func (r *ChangeRecord) CapturedAt() uint64 { return r.capturedAt }

func (r *ChangeRecord) String() string {
	return fmt.Sprintf("%s %s#%v (%d changes)", r.kind, r.originalClass.Name(), r.entityID, r.changes.Len())
}

type recordJSON struct {
	ID       uuid.UUID                  `json:"id"`
	Kind     Kind                       `json:"kind"`
	Class    string                     `json:"class"`
	Store    string                     `json:"store"`
	EntityID any                        `json:"entity_id"`
	Changes  *tracking.AttributeChanges `json:"changes"`
}

// MarshalJSON encodes the record for transport
func (r *ChangeRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:       r.id,
		Kind:     r.kind,
		Class:    r.originalClass.Name(),
		Store:    r.originalClass.Store(),
		EntityID: r.entityID,
		Changes:  r.changes,
	})
}
