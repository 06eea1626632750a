package storage

import (
	"testing"
	"time"

	"github.com/dlclark/regexp2"
)

func TestFilterMatches(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	doc := Document{
		"country": "DE",
		"amount":  float64(42),
		"ts":      ts,
		"user":    map[string]any{"plan": "pro"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", nil, true},
		{"eq", Filter{"country": {{Op: OpEqual, Value: "DE"}}}, true},
		{"eq int against float", Filter{"amount": {{Op: OpEqual, Value: 42}}}, true},
		{"ne", Filter{"country": {{Op: OpNotEqual, Value: "DE"}}}, false},
		{"gt", Filter{"amount": {{Op: OpGreaterThan, Value: 41}}}, true},
		{"gte", Filter{"amount": {{Op: OpGreaterThanOrEqual, Value: 42}}}, true},
		{"lt", Filter{"amount": {{Op: OpLessThan, Value: 42}}}, false},
		{"lte", Filter{"amount": {{Op: OpLessThanOrEqual, Value: 42}}}, true},
		{"range", Filter{"amount": {{Op: OpGreaterThan, Value: 40}, {Op: OpLessThan, Value: 41}}}, false},
		{"in", Filter{"country": {{Op: OpIn, Value: []any{"FR", "DE"}}}}, true},
		{"nin", Filter{"country": {{Op: OpNotIn, Value: []string{"FR", "DE"}}}}, false},
		{"exists", Filter{"missing": {{Op: OpExists, Value: false}}}, true},
		{"nested path", Filter{"user.plan": {{Op: OpEqual, Value: "pro"}}}, true},
		{"time against string", Filter{"ts": {{Op: OpGreaterThanOrEqual, Value: "2024-05-01T00:00:00Z"}}}, true},
		{"time against time", Filter{"ts": {{Op: OpLessThan, Value: ts}}}, false},
		{"gt on missing", Filter{"missing": {{Op: OpGreaterThan, Value: 0}}}, false},
		{"regex string", Filter{"country": {{Op: OpRegex, Value: "^D"}}}, true},
		{"regex compiled", Filter{"country": {{Op: OpRegex, Value: regexp2.MustCompile("^de$", regexp2.IgnoreCase)}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.Matches(doc)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFilterUnknownOperator(t *testing.T) {
	f := Filter{"a": {{Op: "near", Value: 1}}}
	if _, err := f.Matches(Document{"a": 1}); err == nil {
		t.Error("Expected error for unknown operator")
	}
}

func TestFilterClone(t *testing.T) {
	f := Filter{"a": {{Op: OpEqual, Value: 1}}}
	c := f.Clone()
	c["a"] = append(c["a"], Condition{Op: OpNotEqual, Value: 2})
	c["b"] = []Condition{{Op: OpExists, Value: true}}

	if len(f["a"]) != 1 || len(f) != 1 {
		t.Errorf("Clone modified the original filter: %v", f)
	}
}

func TestCompareValues(t *testing.T) {
	if c, ok := CompareValues(1, 2.5); !ok || c != -1 {
		t.Errorf("Expected 1 < 2.5, got %d %v", c, ok)
	}
	if c, ok := CompareValues("b", "a"); !ok || c != 1 {
		t.Errorf("Expected b > a, got %d %v", c, ok)
	}
	if _, ok := CompareValues("a", 1); ok {
		t.Error("Expected string and number to be incomparable")
	}
	if c, ok := CompareValues(false, true); !ok || c != -1 {
		t.Errorf("Expected false < true, got %d %v", c, ok)
	}
}
