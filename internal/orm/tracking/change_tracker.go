package tracking

import (
	"reflect"
	"sync/atomic"

	"github.com/conduit-lang/metamodel/internal/orm/fetchplan"
	"github.com/conduit-lang/metamodel/internal/orm/schema"
)

// Tracker captures snapshots and diffs them. Each Tracker keeps its own
// logical clock, so a unit of work owning a Tracker sees strictly
// increasing capture times.
type Tracker struct {
	registry *schema.Registry
	clock    atomic.Uint64
}

// NewTracker creates a tracker resolving classes against registry
func NewTracker(registry *schema.Registry) *Tracker {
	return &Tracker{registry: registry}
}

// Tick advances the logical clock and returns the new time
func (t *Tracker) Tick() uint64 {
	return t.clock.Add(1)
}

// Capture reads the properties of plan from entity. Properties outside the
// plan are recorded as NotLoaded; the primary key is always read. A nil plan
// captures the identifier only.
func (t *Tracker) Capture(entity Entity, plan *fetchplan.Plan) (*Snapshot, error) {
	class, err := t.registry.Class(entity.EntityClass())
	if err != nil {
		return nil, err
	}
	if plan != nil && !class.IsSubclassOf(plan.Class()) {
		return nil, &schema.ClassMismatchError{Expected: plan.Class().Name(), Actual: class.Name()}
	}

	s := &Snapshot{
		entityID: entity.EntityID(),
		class:    class,
		values:   make(map[string]any, len(class.PropertyNames())),
	}

	pk := class.PrimaryKey()
	for _, prop := range class.Properties() {
		inPlan := plan != nil && plan.Has(prop.Name())
		if !inPlan && prop != pk {
			s.values[prop.Name()] = NotLoaded
			continue
		}

		v, loaded := entity.Attribute(prop.Name())
		if !loaded {
			if prop == pk && entity.EntityID() != nil {
				s.values[prop.Name()] = entity.EntityID()
				continue
			}
			s.values[prop.Name()] = NotLoaded
			continue
		}
		s.values[prop.Name()] = captureValue(prop, v)
	}

	s.capturedAt = t.Tick()
	return s, nil
}

func captureValue(prop *schema.PropertyDescriptor, v any) any {
	if v == nil {
		return nil
	}
	rng := prop.Range()
	switch {
	case rng.IsCollection():
		return toRefSet(rng.TargetName(), v)
	case rng.IsAssociation():
		return toRef(rng.TargetName(), v)
	default:
		return deepCopyValue(v)
	}
}

// Diff computes the changes from before to after. Properties not loaded on
// either side are skipped; a property loaded on one side only counts as
// changed when the loaded side holds a value, with nil standing in for the
// unloaded side.
func (t *Tracker) Diff(before, after *Snapshot) (*AttributeChanges, error) {
	return Diff(before, after)
}

// Diff is Tracker.Diff without a tracker
func Diff(before, after *Snapshot) (*AttributeChanges, error) {
	if before.class.Name() != after.class.Name() {
		return nil, &IncompatibleSnapshotError{Before: before.class.Name(), After: after.class.Name()}
	}

	changes := newAttributeChanges()
	for _, prop := range after.class.Properties() {
		oldValue := before.Value(prop.Name())
		newValue := after.Value(prop.Name())
		oldMissing, newMissing := IsNotLoaded(oldValue), IsNotLoaded(newValue)

		switch {
		case oldMissing && newMissing:
			continue
		case oldMissing:
			if !isNull(newValue) {
				changes.record(prop, nil, newValue)
			}
		case newMissing:
			if !isNull(oldValue) {
				changes.record(prop, oldValue, nil)
			}
		case !Equal(prop, oldValue, newValue):
			changes.record(prop, oldValue, newValue)
		}
	}
	return changes, nil
}

// CreationChanges lists every loaded non-null property of after with a nil
// old value
func CreationChanges(after *Snapshot) *AttributeChanges {
	changes := newAttributeChanges()
	for _, prop := range after.class.Properties() {
		v := after.Value(prop.Name())
		if IsNotLoaded(v) || isNull(v) {
			continue
		}
		changes.record(prop, nil, v)
	}
	return changes
}

// DeletionChanges lists every loaded non-null property of before with a nil
// new value
func DeletionChanges(before *Snapshot) *AttributeChanges {
	changes := newAttributeChanges()
	for _, prop := range before.class.Properties() {
		v := before.Value(prop.Name())
		if IsNotLoaded(v) || isNull(v) {
			continue
		}
		changes.record(prop, v, nil)
	}
	return changes
}

// deepCopyMap creates a deep copy of a map
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = deepCopyValue(v)
	}
	return result
}

// deepCopyValue copies slices and maps and dereferences pointers so later
// mutation of the entity does not leak into a snapshot
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}

	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...)
	case map[string]any:
		return deepCopyMap(x)
	case []any:
		slice := make([]any, len(x))
		for i := range x {
			slice[i] = deepCopyValue(x[i])
		}
		return slice
	}

	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Slice:
		if val.IsNil() {
			return v
		}
		dup := reflect.MakeSlice(val.Type(), val.Len(), val.Len())
		reflect.Copy(dup, val)
		return dup.Interface()
	case reflect.Map:
		if val.IsNil() {
			return v
		}
		dup := reflect.MakeMapWithSize(val.Type(), val.Len())
		for _, key := range val.MapKeys() {
			dup.SetMapIndex(key, val.MapIndex(key))
		}
		return dup.Interface()
	case reflect.Pointer:
		if val.IsNil() {
			return nil
		}
		return deepCopyValue(val.Elem().Interface())
	default:
		// Primitives and structs are copied by value
		return v
	}
}
