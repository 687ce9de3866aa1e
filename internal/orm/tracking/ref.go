package tracking

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/google/uuid"
)

// Ref is the identity of an associated entity. Two refs denote the same
// entity when their identifiers are equal; Class is informational since a
// reference may point at a descendant of the declared target.
type Ref struct {
	Class string `json:"class"`
	ID    any    `json:"id"`
}

// Key returns the normalised identity of the referenced entity
func (r Ref) Key() string {
	return identityKey(r.ID)
}

// Same reports whether both refs denote the same entity
func (r Ref) Same(other Ref) bool {
	return r.Key() == other.Key()
}

func (r Ref) String() string {
	return fmt.Sprintf("%s#%v", r.Class, r.ID)
}

// identityKey normalises identifiers so that int(1) and int64(1), or a
// uuid.UUID and its string form, denote the same key
func identityKey(id any) string {
	switch v := id.(type) {
	case nil:
		return "<nil>"
	case uuid.UUID:
		return "uuid:" + v.String()
	case string:
		if parsed, err := uuid.Parse(v); err == nil {
			return "uuid:" + parsed.String()
		}
		return "s:" + v
	}
	if n, ok := toInt64(id); ok {
		return fmt.Sprintf("i:%d", n)
	}
	return fmt.Sprintf("%T:%v", id, id)
}

// RefSet is the identity set of a to-many association
type RefSet struct {
	refs map[string]Ref
}

// NewRefSet builds a set; duplicates by identity collapse
func NewRefSet(refs ...Ref) RefSet {
	s := RefSet{refs: make(map[string]Ref, len(refs))}
	for _, r := range refs {
		s.refs[r.Key()] = r
	}
	return s
}

// Len returns the number of distinct refs
func (s RefSet) Len() int { return len(s.refs) }

// Contains reports whether the set holds an entity with the identifier
func (s RefSet) Contains(id any) bool {
	_, ok := s.refs[identityKey(id)]
	return ok
}

// Refs returns the refs sorted by identity
func (s RefSet) Refs() []Ref {
	keys := make([]string, 0, len(s.refs))
	for k := range s.refs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]Ref, 0, len(keys))
	for _, k := range keys {
		result = append(result, s.refs[k])
	}
	return result
}

// Equal compares by identity set; order and duplicates are ignored
func (s RefSet) Equal(other RefSet) bool {
	if len(s.refs) != len(other.refs) {
		return false
	}
	for k := range s.refs {
		if _, ok := other.refs[k]; !ok {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted array of refs
func (s RefSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Refs())
}

func toRef(targetClass string, v any) Ref {
	switch x := v.(type) {
	case Ref:
		return x
	case *Ref:
		return *x
	case Entity:
		return Ref{Class: x.EntityClass(), ID: x.EntityID()}
	default:
		return Ref{Class: targetClass, ID: v}
	}
}

func toRefSet(targetClass string, v any) RefSet {
	switch x := v.(type) {
	case RefSet:
		return x
	case *RefSet:
		return *x
	case []Ref:
		return NewRefSet(x...)
	}

	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Slice && val.Kind() != reflect.Array {
		return NewRefSet(toRef(targetClass, v))
	}
	refs := make([]Ref, 0, val.Len())
	for i := 0; i < val.Len(); i++ {
		refs = append(refs, toRef(targetClass, val.Index(i).Interface()))
	}
	return NewRefSet(refs...)
}
