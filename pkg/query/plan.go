// Package query compiles declarative queries into per-collection
// aggregation pipelines, executes them concurrently and merges the partial
// results into output rows.
package query

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vjranagit/embedded/pkg/hash"
	"github.com/vjranagit/embedded/pkg/storage"
	"github.com/vjranagit/embedded/pkg/types"
)

// PlaceholderKey names the metric synthesized for dimension-only queries
const PlaceholderKey = "fake"

const timestampField = "timestamp"

var validate = validator.New()

// intervalBuckets maps a query interval to its time-bucket field
var intervalBuckets = map[string]string{
	"":       "ddate",
	"second": "second",
	"minute": "minute",
	"hour":   "hour",
	"day":    "ddate",
	"ddate":  "ddate",
	"date":   "ddate",
	"month":  "month",
	"year":   "year",
}

var filterOperators = map[string]bool{
	storage.OpEqual:              true,
	storage.OpNotEqual:           true,
	storage.OpGreaterThan:        true,
	storage.OpGreaterThanOrEqual: true,
	storage.OpLessThan:           true,
	storage.OpLessThanOrEqual:    true,
	storage.OpIn:                 true,
	storage.OpNotIn:              true,
	storage.OpExists:             true,
	storage.OpRegex:              true,
}

var aggregations = map[string]bool{
	"":                      true,
	types.AggregationSum:    true,
	types.AggregationAvg:    true,
	types.AggregationMin:    true,
	types.AggregationMax:    true,
	types.AggregationCount:  true,
	types.AggregationUCount: true,
}

// MetadataProvider answers collection structure questions during planning
type MetadataProvider interface {
	// IsNestedArray reports whether path references a nested array field
	// of collection.
	IsNestedArray(collection, path string) bool
}

// QueryPlan is the compiled form of one query. It belongs to a single
// query invocation.
type QueryPlan struct {
	UID        string               `json:"uid"`
	Cost       int                  `json:"cost"`
	Query      *types.Query         `json:"query"`
	ColQueries map[string]*ColQuery `json:"colQueries"`
	Dimensions []types.Dimension    `json:"dimensions"`
	Metrics    []types.Metric       `json:"metrics"`

	order      []string
	dimensions map[string]*types.Dimension
	metrics    map[string]*types.Metric
}

// Queries returns the plan's pipelines in creation order
func (p *QueryPlan) Queries() []*ColQuery {
	out := make([]*ColQuery, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, p.ColQueries[key])
	}
	return out
}

// Dimension looks up a declared dimension by key
func (p *QueryPlan) Dimension(key string) (*types.Dimension, bool) {
	d, ok := p.dimensions[key]
	return d, ok
}

// Metric looks up a declared metric by key
func (p *QueryPlan) Metric(key string) (*types.Metric, bool) {
	m, ok := p.metrics[key]
	return m, ok
}

// pipelineSignature identifies pipelines that scan the same documents
type pipelineSignature struct {
	Type       string         `json:"type"`
	Collection string         `json:"collection"`
	Match      storage.Filter `json:"match"`
	Unwind     string         `json:"unwind"`
}

// Compile translates q into a query plan. md may be nil, in which case no
// unwind stages are produced.
func Compile(q *types.Query, md MetadataProvider) (*QueryPlan, error) {
	if q == nil {
		return nil, &CompilationError{Reason: "query is required"}
	}
	if err := validate.Struct(q); err != nil {
		return nil, &CompilationError{Reason: "invalid query", Err: err}
	}

	plan := &QueryPlan{
		UID:        hash.UID(),
		Query:      q,
		ColQueries: make(map[string]*ColQuery),
		Dimensions: append([]types.Dimension(nil), q.Dimensions...),
		Metrics:    append([]types.Metric(nil), q.Metrics...),
	}

	match := make(storage.Filter)
	limit, err := compileTimeframe(q, match)
	if err != nil {
		return nil, err
	}
	for _, term := range q.Filter {
		if err := addFilter(match, term); err != nil {
			return nil, err
		}
	}

	ids, err := compileGroupID(plan.Dimensions, q.Interval)
	if err != nil {
		return nil, err
	}

	sortFields, err := compileSort(q)
	if err != nil {
		return nil, err
	}

	if len(plan.Metrics) == 0 {
		if coll := anchorCollection(q); coll != "" {
			plan.Metrics = append(plan.Metrics, types.Metric{
				Key:         PlaceholderKey,
				DependsOn:   PlaceholderKey,
				Collection:  coll,
				Placeholder: true,
			})
		}
	}

	for i := range plan.Metrics {
		metric := &plan.Metrics[i]
		metric.Aggregation = strings.ToLower(metric.Aggregation)
		if metric.Formula != "" || metric.Collection == "" {
			continue
		}
		if !aggregations[metric.Aggregation] {
			return nil, &CompilationError{
				Reason: fmt.Sprintf("metric [%s] has unknown aggregation [%s]", metric.Key, metric.Aggregation),
			}
		}

		colType := TypePlain
		if metric.Aggregation == types.AggregationUCount {
			colType = TypeUCount
		}

		metricMatch := match.Clone()
		for _, term := range metric.Filter {
			if err := addFilter(metricMatch, term); err != nil {
				return nil, err
			}
		}

		var unwindField string
		if idx := strings.Index(metric.DependsOn, "."); idx > 0 && md != nil && md.IsNestedArray(metric.Collection, metric.DependsOn) {
			unwindField = metric.DependsOn[:idx]
		}

		key, err := hash.Object(pipelineSignature{
			Type:       colType,
			Collection: metric.Collection,
			Match:      metricMatch,
			Unwind:     unwindField,
		})
		if err != nil {
			return nil, &CompilationError{Reason: "failed to sign pipeline", Err: err}
		}

		cq, ok := plan.ColQueries[key]
		if !ok {
			cq = newColQuery(key, metric.Collection, colType, metricMatch, unwindField, ids, sortFields, limit)
			plan.ColQueries[key] = cq
			plan.order = append(plan.order, key)
		}
		if !metric.Placeholder {
			cq.Group().Add(accumulatorFor(metric))
		}
	}

	plan.Cost = len(plan.ColQueries)
	plan.index()
	return plan, nil
}

func (p *QueryPlan) index() {
	p.dimensions = make(map[string]*types.Dimension, len(p.Dimensions))
	for i := range p.Dimensions {
		p.dimensions[p.Dimensions[i].Key] = &p.Dimensions[i]
	}
	p.metrics = make(map[string]*types.Metric, len(p.Metrics))
	for i := range p.Metrics {
		p.metrics[p.Metrics[i].Key] = &p.Metrics[i]
	}
}

func newColQuery(key, collection, colType string, match storage.Filter, unwind string, ids []GroupID, sortFields []storage.SortField, limit *int) *ColQuery {
	cq := &ColQuery{
		Key:        key,
		Collection: collection,
		Type:       colType,
	}
	cq.Pipeline = append(cq.Pipeline, &MatchStage{Filter: match})
	if unwind != "" {
		cq.Pipeline = append(cq.Pipeline, &UnwindStage{Field: unwind})
	}
	cq.Pipeline = append(cq.Pipeline,
		&GroupStage{ID: append([]GroupID(nil), ids...)},
		&SortStage{Fields: append([]storage.SortField(nil), sortFields...)},
	)
	if limit != nil {
		cq.Pipeline = append(cq.Pipeline, &LimitStage{Limit: *limit})
	}
	return cq
}

// compileTimeframe adds the timeframe range to match and returns the
// resolved row cap. An explicit query limit overrides last_n_items.
func compileTimeframe(q *types.Query, match storage.Filter) (*int, error) {
	var limit *int
	if tf := q.Timeframe; tf != nil {
		hasRange := !tf.Start.IsZero() || !tf.End.IsZero()
		switch {
		case hasRange && tf.LastNItems != nil:
			return nil, &CompilationError{Reason: "timeframe must be either a range or last_n_items"}
		case tf.LastNItems != nil:
			if *tf.LastNItems <= 0 {
				return nil, &CompilationError{Reason: fmt.Sprintf("last_n_items must be positive, got %d", *tf.LastNItems)}
			}
			n := *tf.LastNItems
			limit = &n
		case hasRange:
			if tf.Start.IsZero() || tf.End.IsZero() {
				return nil, &CompilationError{Reason: "timeframe range needs both start and end"}
			}
			if !tf.Start.Before(tf.End) {
				return nil, &CompilationError{Reason: "timeframe start must be before end"}
			}
			match[timestampField] = append(match[timestampField],
				storage.Condition{Op: storage.OpGreaterThanOrEqual, Value: tf.Start.UTC()},
				storage.Condition{Op: storage.OpLessThan, Value: tf.End.UTC()},
			)
		}
	}
	if q.Limit > 0 {
		n := q.Limit
		limit = &n
	}
	return limit, nil
}

func addFilter(match storage.Filter, term types.FilterTerm) error {
	op := strings.ToLower(term.Operator)
	if !filterOperators[op] {
		return &CompilationError{Reason: fmt.Sprintf("filter on [%s] has unknown operator [%s]", term.Field, term.Operator)}
	}
	match[term.Field] = append(match[term.Field], storage.Condition{Op: op, Value: term.Value})
	return nil
}

func compileGroupID(dims []types.Dimension, interval string) ([]GroupID, error) {
	ids := make([]GroupID, 0, len(dims))
	for _, dim := range dims {
		switch dim.Datatype {
		case types.DatatypeDate:
			bucket, ok := intervalBuckets[strings.ToLower(interval)]
			if !ok {
				return nil, &CompilationError{Reason: fmt.Sprintf("unknown interval [%s]", interval)}
			}
			ids = append(ids, GroupID{Key: dim.Key, Field: dim.Key + "_timebucket." + bucket})
		case types.DatatypeIP, types.DatatypeNumber, types.DatatypeString:
			field := dim.Attribute
			if field == "" {
				field = dim.Key
			}
			ids = append(ids, GroupID{Key: dim.Key, Field: field})
		case types.DatatypeGeo:
			// accepted, contributes no grouping key
		default:
			return nil, &CompilationError{Dimension: dim.Key, Datatype: dim.Datatype}
		}
	}
	return ids, nil
}

func compileSort(q *types.Query) ([]storage.SortField, error) {
	pairs := q.Sort
	if len(pairs) == 0 {
		pairs = q.OrderBy
	}
	if len(pairs) == 0 {
		return []storage.SortField{{Field: timestampField, Descending: true}}, nil
	}

	fields := make([]storage.SortField, 0, len(pairs))
	for _, pair := range pairs {
		switch strings.ToUpper(pair.Direction) {
		case "DESC":
			fields = append(fields, storage.SortField{Field: pair.Field, Descending: true})
		case "ASC", "":
			fields = append(fields, storage.SortField{Field: pair.Field})
		default:
			return nil, &CompilationError{Reason: fmt.Sprintf("sort on [%s] has unknown direction [%s]", pair.Field, pair.Direction)}
		}
	}
	return fields, nil
}

func anchorCollection(q *types.Query) string {
	if q.Collection != "" {
		return q.Collection
	}
	if len(q.Dimensions) > 0 {
		return q.Dimensions[0].Collection
	}
	return ""
}

func accumulatorFor(metric *types.Metric) Accumulator {
	if metric.Aggregation == types.AggregationCount {
		return Accumulator{Key: metric.Key, Op: OpCount}
	}
	op := metric.Aggregation
	if op == "" {
		op = OpSum
	}
	attribute := metric.Attribute
	if attribute == "" {
		attribute = metric.DependsOn
	}
	if attribute == "" {
		attribute = metric.Key
	}
	return Accumulator{Key: metric.Key, Op: op, Attribute: attribute}
}
