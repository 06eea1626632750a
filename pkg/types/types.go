package types

import "time"

// Dimension datatypes
const (
	DatatypeDate   = "date"
	DatatypeIP     = "ip"
	DatatypeNumber = "number"
	DatatypeString = "string"
	DatatypeGeo    = "geo"
)

// Metric aggregations
const (
	AggregationSum    = "sum"
	AggregationAvg    = "avg"
	AggregationMin    = "min"
	AggregationMax    = "max"
	AggregationCount  = "count"
	AggregationUCount = "ucount"
)

// Dimension is a grouping axis of a query
type Dimension struct {
	Key        string `json:"key" validate:"required"`
	Datatype   string `json:"datatype"`
	Attribute  string `json:"attribute,omitempty"`
	Collection string `json:"collection,omitempty"`
}

// Metric is an aggregated value requested by a query
type Metric struct {
	Key         string       `json:"key" validate:"required"`
	Collection  string       `json:"collection,omitempty"`
	Aggregation string       `json:"aggregation,omitempty"`
	Attribute   string       `json:"attribute,omitempty"`
	DependsOn   string       `json:"dependsOn,omitempty"`
	Filter      []FilterTerm `json:"filter,omitempty"`
	Formula     string       `json:"formula,omitempty"`

	// Placeholder marks the metric synthesized for dimension-only queries.
	Placeholder bool `json:"-"`
}

// FilterTerm is a (field, operator, value) triple
type FilterTerm struct {
	Field    string `json:"field" validate:"required"`
	Operator string `json:"operator" validate:"required"`
	Value    any    `json:"value"`
}

// SortPair is a (field, direction) pair, direction being ASC or DESC
type SortPair struct {
	Field     string `json:"field" validate:"required"`
	Direction string `json:"direction"`
}

// Timeframe is either an explicit range or a last-N cap
type Timeframe struct {
	Start      time.Time `json:"start,omitempty"`
	End        time.Time `json:"end,omitempty"`
	LastNItems *int      `json:"last_n_items,omitempty"`
}

// Query is a declarative multi-dimensional query
type Query struct {
	Dimensions []Dimension  `json:"dimensions" validate:"dive"`
	Metrics    []Metric     `json:"metrics" validate:"dive"`
	Filter     []FilterTerm `json:"filter,omitempty" validate:"dive"`
	Timeframe  *Timeframe   `json:"timeframe,omitempty"`
	Sort       []SortPair   `json:"sort,omitempty" validate:"dive"`
	OrderBy    []SortPair   `json:"orderby,omitempty" validate:"dive"`
	Limit      int          `json:"limit,omitempty" validate:"gte=0"`
	Interval   string       `json:"interval,omitempty"`
	Collection string       `json:"collection,omitempty"`
}

// Collection describes an ingestion target
type Collection struct {
	Key         string      `json:"key" validate:"required"`
	StoreKey    string      `json:"storeKey,omitempty"`
	Description string      `json:"description,omitempty"`
	Dimensions  []Dimension `json:"dimensions,omitempty"`
	Metrics     []Metric    `json:"metrics,omitempty"`

	// Arrays lists top-level attributes holding nested arrays of objects.
	Arrays []string `json:"arrays,omitempty"`

	// Unique is carried for compatibility only. Document keys are always
	// derived deterministically regardless of its value.
	Unique bool `json:"unique,omitempty"`

	// Meta holds arbitrary collection metadata as supplied by the caller.
	Meta map[string]any `json:"meta,omitempty"`
}
