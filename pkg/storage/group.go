package storage

import (
	"encoding/json"
	"fmt"
	"sort"
)

// GroupOperator describes a map-reduce style grouping applied by Scan.
type GroupOperator struct {
	// Key lists the field paths whose values identify a group.
	Key []string
	// Initial returns a fresh accumulator for a new group.
	Initial func() Document
	// Reduce folds one document into the group accumulator.
	Reduce func(doc, acc Document) error
	// Finalize is called once per completed group row. The row holds the
	// key values under their paths merged with the accumulator.
	Finalize func(row Document) error
}

// SortField orders documents by a field path
type SortField struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

type groupState struct {
	values []any
	acc    Document
}

func group(docs []Document, op *GroupOperator) ([]Document, error) {
	index := make(map[string]*groupState)
	order := make([]*groupState, 0)

	for _, doc := range docs {
		values := make([]any, len(op.Key))
		for i, path := range op.Key {
			values[i], _ = Get(doc, path)
		}
		id, err := json.Marshal(values)
		if err != nil {
			return nil, fmt.Errorf("failed to build group key: %w", err)
		}

		state, ok := index[string(id)]
		if !ok {
			state = &groupState{values: values}
			if op.Initial != nil {
				state.acc = op.Initial()
			}
			if state.acc == nil {
				state.acc = make(Document)
			}
			index[string(id)] = state
			order = append(order, state)
		}

		if op.Reduce != nil {
			if err := op.Reduce(doc, state.acc); err != nil {
				return nil, fmt.Errorf("reduce failed: %w", err)
			}
		}
	}

	rows := make([]Document, 0, len(order))
	for _, state := range order {
		row := make(Document, len(op.Key)+len(state.acc))
		for i, path := range op.Key {
			row[path] = state.values[i]
		}
		for k, v := range state.acc {
			row[k] = v
		}
		if op.Finalize != nil {
			if err := op.Finalize(row); err != nil {
				return nil, fmt.Errorf("finalize failed: %w", err)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func unwind(docs []Document, field string) []Document {
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		value, ok := Get(doc, field)
		if !ok || value == nil {
			continue
		}
		items, isList := value.([]any)
		if !isList {
			out = append(out, doc)
			continue
		}
		for _, item := range items {
			expanded := clone(doc)
			Set(expanded, field, item)
			out = append(out, expanded)
		}
	}
	return out
}

// SortDocuments stable-sorts docs by fields. Missing values order first
// in ascending order.
func SortDocuments(docs []Document, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, field := range fields {
			vi, okI := Get(docs[i], field.Field)
			vj, okJ := Get(docs[j], field.Field)
			if !okI && !okJ {
				continue
			}
			if !okI {
				return !field.Descending
			}
			if !okJ {
				return field.Descending
			}
			c, ok := CompareValues(vi, vj)
			if !ok || c == 0 {
				continue
			}
			if field.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
