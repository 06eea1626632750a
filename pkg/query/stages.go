package query

import (
	"encoding/json"

	"github.com/vjranagit/embedded/pkg/storage"
)

// Pipeline types
const (
	TypePlain  = "plain"
	TypeUCount = "ucount"
)

// Accumulator operators
const (
	OpSum    = "sum"
	OpAvg    = "avg"
	OpMin    = "min"
	OpMax    = "max"
	OpCount  = "count"
	OpUCount = "ucount"
)

// Stage represents a single stage in a pipeline
type Stage interface {
	Type() string
}

// MatchStage filters documents
type MatchStage struct {
	Filter storage.Filter
}

func (s *MatchStage) Type() string { return "$match" }

// UnwindStage expands an array field into one document per element
type UnwindStage struct {
	Field string
}

func (s *UnwindStage) Type() string { return "$unwind" }

// GroupID is one identity field of a group stage
type GroupID struct {
	// Key is the declared dimension key the value is restored under.
	Key string `json:"key"`
	// Field is the document path the value is read from.
	Field string `json:"field"`
}

// Accumulator folds one metric over a group
type Accumulator struct {
	Key       string `json:"key"`
	Op        string `json:"op"`
	Attribute string `json:"attribute,omitempty"`
}

// GroupStage groups documents by identity and accumulates metrics
type GroupStage struct {
	ID     []GroupID
	Fields []Accumulator
}

func (s *GroupStage) Type() string { return "$group" }

// Add appends acc, replacing an accumulator with the same key.
func (s *GroupStage) Add(acc Accumulator) {
	for i := range s.Fields {
		if s.Fields[i].Key == acc.Key {
			s.Fields[i] = acc
			return
		}
	}
	s.Fields = append(s.Fields, acc)
}

// SortStage orders documents
type SortStage struct {
	Fields []storage.SortField
}

func (s *SortStage) Type() string { return "$sort" }

// LimitStage caps the number of result rows
type LimitStage struct {
	Limit int
}

func (s *LimitStage) Type() string { return "$limit" }

// ColQuery is one deduplicated per-collection pipeline
type ColQuery struct {
	Key        string
	Collection string
	Type       string
	Pipeline   []Stage
}

// Match returns the pipeline's match stage
func (c *ColQuery) Match() *MatchStage {
	for _, s := range c.Pipeline {
		if m, ok := s.(*MatchStage); ok {
			return m
		}
	}
	return nil
}

// Unwind returns the pipeline's unwind stage, if any
func (c *ColQuery) Unwind() *UnwindStage {
	for _, s := range c.Pipeline {
		if u, ok := s.(*UnwindStage); ok {
			return u
		}
	}
	return nil
}

// Group returns the pipeline's group stage
func (c *ColQuery) Group() *GroupStage {
	for _, s := range c.Pipeline {
		if g, ok := s.(*GroupStage); ok {
			return g
		}
	}
	return nil
}

// Sort returns the pipeline's sort stage
func (c *ColQuery) Sort() *SortStage {
	for _, s := range c.Pipeline {
		if st, ok := s.(*SortStage); ok {
			return st
		}
	}
	return nil
}

// Limit returns the pipeline's limit stage, if any
func (c *ColQuery) Limit() *LimitStage {
	for _, s := range c.Pipeline {
		if l, ok := s.(*LimitStage); ok {
			return l
		}
	}
	return nil
}

// MarshalJSON renders the pipeline as a list of single-key stage objects.
func (c *ColQuery) MarshalJSON() ([]byte, error) {
	stages := make([]map[string]any, 0, len(c.Pipeline))
	for _, s := range c.Pipeline {
		var body any
		switch st := s.(type) {
		case *MatchStage:
			body = st.Filter
		case *UnwindStage:
			body = st.Field
		case *GroupStage:
			body = map[string]any{"_id": st.ID, "fields": st.Fields}
		case *SortStage:
			body = st.Fields
		case *LimitStage:
			body = st.Limit
		}
		stages = append(stages, map[string]any{s.Type(): body})
	}
	return json.Marshal(map[string]any{
		"key":        c.Key,
		"collection": c.Collection,
		"type":       c.Type,
		"query":      stages,
	})
}
