package query

import (
	"encoding/json"
	"sort"

	"github.com/vjranagit/embedded/pkg/hash"
	"github.com/vjranagit/embedded/pkg/storage"
)

// NotSet is written for a dimension a row has no value for
const NotSet = "(not set)"

// Row is one merged output row
type Row struct {
	// Key is the hash of the row's group identity.
	Key    string
	Values map[string]any
}

// MarshalJSON flattens the row values next to its key.
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = v
	}
	out["key"] = r.Key
	return json.Marshal(out)
}

// Merge joins the partial results of a plan into rows keyed by group
// identity. Rows keep the order their identity was first seen in.
func Merge(plan *QueryPlan, partials []PartialResult) ([]Row, error) {
	index := make(map[string]int)
	rows := make([]Row, 0)

	for _, partial := range partials {
		for _, src := range partial.Rows {
			id, _ := src[IDField].(storage.Document)
			key, err := hash.Object(id)
			if err != nil {
				return nil, err
			}

			pos, ok := index[key]
			if !ok {
				values := make(map[string]any, len(id)+len(src))
				for k, v := range id {
					if v == nil {
						v = NotSet
					}
					values[k] = v
				}
				pos = len(rows)
				index[key] = pos
				rows = append(rows, Row{Key: key, Values: values})
			}
			row := rows[pos]

			attrs := make([]string, 0, len(src))
			for k := range src {
				if k != IDField {
					attrs = append(attrs, k)
				}
			}
			sort.Strings(attrs)

			for _, attr := range attrs {
				value := src[attr]
				if _, ok := plan.Dimension(attr); ok {
					if value == nil {
						value = NotSet
					}
					row.Values[attr] = value
					continue
				}
				if _, ok := plan.Metric(attr); ok {
					if isFalsy(value) {
						value = nil
					}
					row.Values[attr] = value
					continue
				}
				return nil, &MergeInconsistencyError{Attribute: attr}
			}
		}
	}

	for _, row := range rows {
		backfill(plan, row)
	}
	return rows, nil
}

func backfill(plan *QueryPlan, row Row) {
	for _, metric := range plan.Metrics {
		if metric.Formula != "" || metric.Placeholder {
			continue
		}
		if isFalsy(row.Values[metric.Key]) {
			row.Values[metric.Key] = nil
		}
	}
	for _, dim := range plan.Dimensions {
		if _, ok := row.Values[dim.Key]; !ok {
			row.Values[dim.Key] = NotSet
		}
	}
}

func isFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case string:
		return val == ""
	case json.Number:
		f, err := val.Float64()
		return err == nil && f == 0
	}
	if f, ok := storage.ToFloat64(v); ok {
		return f == 0
	}
	return false
}
