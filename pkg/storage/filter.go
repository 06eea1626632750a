package storage

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Filter operators
const (
	OpEqual              = "eq"
	OpNotEqual           = "ne"
	OpGreaterThan        = "gt"
	OpGreaterThanOrEqual = "gte"
	OpLessThan           = "lt"
	OpLessThanOrEqual    = "lte"
	OpIn                 = "in"
	OpNotIn              = "nin"
	OpExists             = "exists"
	OpRegex              = "regex"
)

// Condition is a single operator test against a field
type Condition struct {
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// Filter maps a field path to the conditions it must satisfy. All
// conditions of all fields must hold for a document to match.
type Filter map[string][]Condition

// Clone returns a copy of f that can be extended independently.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for field, conds := range f {
		out[field] = append([]Condition(nil), conds...)
	}
	return out
}

// Matches reports whether doc satisfies every condition of f.
func (f Filter) Matches(doc Document) (bool, error) {
	for field, conds := range f {
		value, exists := Get(doc, field)
		for _, cond := range conds {
			ok, err := evaluate(cond, value, exists)
			if err != nil {
				return false, fmt.Errorf("field %s: %w", field, err)
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

func evaluate(cond Condition, value any, exists bool) (bool, error) {
	switch cond.Op {
	case OpEqual:
		return equalValues(value, cond.Value), nil
	case OpNotEqual:
		return !equalValues(value, cond.Value), nil
	case OpGreaterThan:
		c, ok := CompareValues(value, cond.Value)
		return exists && ok && c > 0, nil
	case OpGreaterThanOrEqual:
		c, ok := CompareValues(value, cond.Value)
		return exists && ok && c >= 0, nil
	case OpLessThan:
		c, ok := CompareValues(value, cond.Value)
		return exists && ok && c < 0, nil
	case OpLessThanOrEqual:
		c, ok := CompareValues(value, cond.Value)
		return exists && ok && c <= 0, nil
	case OpIn:
		return inValues(value, cond.Value), nil
	case OpNotIn:
		return !inValues(value, cond.Value), nil
	case OpExists:
		want, ok := cond.Value.(bool)
		if !ok {
			return false, fmt.Errorf("exists requires boolean value")
		}
		return exists == want, nil
	case OpRegex:
		return evaluateRegex(value, cond.Value)
	default:
		return false, fmt.Errorf("unsupported operator: %s", cond.Op)
	}
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := CompareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func inValues(value any, list any) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equalValues(value, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

func evaluateRegex(value any, pattern any) (bool, error) {
	str, ok := value.(string)
	if !ok {
		return false, nil
	}
	var re *regexp2.Regexp
	switch p := pattern.(type) {
	case *regexp2.Regexp:
		re = p
	case string:
		compiled, err := regexp2.Compile(p, regexp2.None)
		if err != nil {
			return false, fmt.Errorf("invalid regex pattern: %w", err)
		}
		re = compiled
	default:
		return false, fmt.Errorf("regex pattern must be a string")
	}
	matched, err := re.MatchString(str)
	if err != nil {
		return false, fmt.Errorf("regex match failed: %w", err)
	}
	return matched, nil
}

// CompareValues orders two scalar values. Numbers compare numerically,
// times chronologically (a time also compares against an RFC3339 string or
// an epoch millisecond number), strings lexically. ok is false when the
// values are not comparable.
func CompareValues(a, b any) (int, bool) {
	if ta, ok := toTime(a); ok {
		if tb, ok := toTimeLoose(b); ok {
			return ta.Compare(tb), true
		}
		return 0, false
	}
	if tb, ok := toTime(b); ok {
		ta, ok := toTimeLoose(a)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	if fa, ok := ToFloat64(a); ok {
		if fb, ok := ToFloat64(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb), true
		}
		return 0, false
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0, true
			case !ba:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

func toTimeLoose(v any) (time.Time, bool) {
	if t, ok := toTime(v); ok {
		return t, true
	}
	if s, ok := v.(string); ok {
		t, err := time.Parse(time.RFC3339Nano, s)
		return t, err == nil
	}
	if ms, ok := ToFloat64(v); ok {
		return time.UnixMilli(int64(ms)), true
	}
	return time.Time{}, false
}

// ToFloat64 converts numeric values to float64
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
