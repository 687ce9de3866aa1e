package tracking

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/conduit-lang/metamodel/internal/orm/schema"
)

// Equal compares two captured values of a property under its datatype.
// Associations compare by referenced identity, never by state.
func Equal(prop *schema.PropertyDescriptor, a, b any) bool {
	if isNull(a) || isNull(b) {
		return isNull(a) && isNull(b)
	}
	if prop == nil {
		return deepEqual(a, b)
	}

	rng := prop.Range()
	switch rng.Kind() {
	case schema.RangeEntity:
		if rng.IsCollection() {
			return toRefSet(rng.TargetName(), a).Equal(toRefSet(rng.TargetName(), b))
		}
		return toRef(rng.TargetName(), a).Same(toRef(rng.TargetName(), b))
	case schema.RangeEnumeration:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}

	switch rng.Datatype() {
	case schema.TypeInt, schema.TypeBigInt:
		if x, ok := toInt64(a); ok {
			if y, ok := toInt64(b); ok {
				return x == y
			}
		}
	case schema.TypeFloat:
		if x, ok := toFloat64(a); ok {
			if y, ok := toFloat64(b); ok {
				return x == y || (math.IsNaN(x) && math.IsNaN(y))
			}
		}
	case schema.TypeDecimal:
		if x, ok := toDecimal(a); ok {
			if y, ok := toDecimal(b); ok {
				return x.Equal(y)
			}
		}
	case schema.TypeTimestamp, schema.TypeDate, schema.TypeTime:
		if x, ok := toTime(a); ok {
			if y, ok := toTime(b); ok {
				return x.Equal(y)
			}
		}
	case schema.TypeUUID:
		if x, ok := toUUID(a); ok {
			if y, ok := toUUID(b); ok {
				return x == y
			}
		}
	}
	return deepEqual(a, b)
}

// isNull treats nil and an empty collection as absent
func isNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case RefSet:
		return x.Len() == 0
	}
	return false
}

// deepEqual compares two values for equality, handling nil and different types
func deepEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d, true
	case *decimal.Decimal:
		if d == nil {
			return decimal.Decimal{}, false
		}
		return *d, true
	case string:
		parsed, err := decimal.NewFromString(d)
		return parsed, err == nil
	case float32:
		return decimal.NewFromFloat32(d), true
	case float64:
		return decimal.NewFromFloat(d), true
	}
	if i, ok := toInt64(v); ok {
		return decimal.NewFromInt(i), true
	}
	return decimal.Decimal{}, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

func toUUID(v any) (uuid.UUID, bool) {
	switch u := v.(type) {
	case uuid.UUID:
		return u, true
	case [16]byte:
		return uuid.UUID(u), true
	case string:
		parsed, err := uuid.Parse(u)
		return parsed, err == nil
	}
	return uuid.UUID{}, false
}
