package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vjranagit/embedded/pkg/storage"
)

// internalPrefix marks accumulator bookkeeping fields
const internalPrefix = "__"

// dummyKey groups every document together when a pipeline has no identity
const dummyKey = internalPrefix + "dummy"

// IDField holds the group identity on result rows
const IDField = "_id"

// Opener resolves a namespace to its store
type Opener interface {
	Open(ctx context.Context, namespace string) (storage.Store, error)
}

// PartialResult holds the rows one pipeline produced
type PartialResult struct {
	ColQuery *ColQuery
	Rows     []storage.Document
}

// Executor runs the pipelines of a plan against their collections
type Executor struct {
	opener Opener
	log    zerolog.Logger
}

// NewExecutor creates an executor resolving stores through opener
func NewExecutor(opener Opener, log zerolog.Logger) *Executor {
	return &Executor{
		opener: opener,
		log:    log.With().Str("component", "executor").Logger(),
	}
}

// Namespace returns the store namespace of a collection within a workspace
func Namespace(workspace, collection string) string {
	return workspace + "_" + collection
}

// Execute runs every pipeline of plan concurrently and waits for all of
// them. The first failure fails the whole execution.
func (e *Executor) Execute(ctx context.Context, workspace string, plan *QueryPlan) ([]PartialResult, error) {
	queries := plan.Queries()
	results := make([]PartialResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, cq := range queries {
		i, cq := i, cq
		g.Go(func() error {
			start := time.Now()
			rows, err := e.run(gctx, workspace, cq)
			if err != nil {
				return err
			}
			e.log.Debug().
				Str("plan", plan.UID).
				Str("collection", cq.Collection).
				Int("rows", len(rows)).
				Dur("elapsed", time.Since(start)).
				Msg("pipeline done")
			results[i] = PartialResult{ColQuery: cq, Rows: rows}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Executor) run(ctx context.Context, workspace string, cq *ColQuery) ([]storage.Document, error) {
	namespace := Namespace(workspace, cq.Collection)
	fail := func(op string, err error) error {
		return &ExecutionError{Collection: cq.Collection, Namespace: namespace, Op: op, Err: err}
	}

	store, err := e.opener.Open(ctx, namespace)
	if err != nil {
		return nil, fail("open", err)
	}

	req := &storage.ScanRequest{}
	if m := cq.Match(); m != nil {
		filter, err := compileRegex(m.Filter)
		if err != nil {
			return nil, fail("match", err)
		}
		req.Filter = filter
	}
	if u := cq.Unwind(); u != nil {
		req.Unwind = u.Field
	}
	if s := cq.Sort(); s != nil {
		req.Sort = s.Fields
	}
	grp := cq.Group()
	if grp == nil {
		return nil, fail("scan", fmt.Errorf("pipeline %s has no group stage", cq.Key))
	}
	req.Group = newGroupOperator(grp)

	rows, err := store.Scan(ctx, req)
	if err != nil {
		return nil, fail("scan", err)
	}

	storage.SortDocuments(rows, rowSort(grp, req.Sort))
	if l := cq.Limit(); l != nil && len(rows) > l.Limit {
		rows = rows[:l.Limit]
	}
	return rows, nil
}

// compileRegex returns a copy of filter with regex patterns compiled
// case-insensitively.
func compileRegex(filter storage.Filter) (storage.Filter, error) {
	out := filter.Clone()
	for field, conds := range out {
		for i, cond := range conds {
			if cond.Op != storage.OpRegex {
				continue
			}
			pattern, ok := cond.Value.(string)
			if !ok {
				continue
			}
			re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
			if err != nil {
				return nil, fmt.Errorf("invalid regex on %s: %w", field, err)
			}
			conds[i].Value = re
		}
	}
	return out, nil
}

// rowSort maps document sort fields onto grouped row fields. Fields that
// name neither an identity nor an accumulator are dropped.
func rowSort(grp *GroupStage, fields []storage.SortField) []storage.SortField {
	out := make([]storage.SortField, 0, len(fields))
	for _, f := range fields {
		if id := findID(grp, f.Field); id != nil {
			out = append(out, storage.SortField{Field: IDField + "." + id.Key, Descending: f.Descending})
			continue
		}
		for _, acc := range grp.Fields {
			if acc.Key == f.Field {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func findID(grp *GroupStage, key string) *GroupID {
	for i := range grp.ID {
		if grp.ID[i].Key == key {
			return &grp.ID[i]
		}
	}
	return nil
}

func newGroupOperator(grp *GroupStage) *storage.GroupOperator {
	keys := make([]string, 0, len(grp.ID))
	for _, id := range grp.ID {
		keys = append(keys, normalizePath(id.Field))
	}
	if len(keys) == 0 {
		keys = append(keys, dummyKey)
	}

	return &storage.GroupOperator{
		Key: keys,
		Initial: func() storage.Document {
			return storage.Document{}
		},
		Reduce: func(doc, acc storage.Document) error {
			for _, f := range grp.Fields {
				reduce(f, doc, acc)
			}
			return nil
		},
		Finalize: func(row storage.Document) error {
			for _, f := range grp.Fields {
				finalize(f, row)
			}
			for k := range row {
				if strings.HasPrefix(k, internalPrefix) {
					delete(row, k)
				}
			}
			id := storage.Document{}
			for _, gid := range grp.ID {
				path := normalizePath(gid.Field)
				id[gid.Key] = row[path]
				delete(row, path)
			}
			row[IDField] = id
			return nil
		},
	}
}

func reduce(f Accumulator, doc, acc storage.Document) {
	switch f.Op {
	case OpCount:
		n, _ := acc[f.Key].(int)
		acc[f.Key] = n + 1
	case OpSum:
		total, _ := acc[f.Key].(float64)
		if v, ok := numericAt(doc, f.Attribute); ok {
			total += v
		}
		acc[f.Key] = total
	case OpAvg:
		total, _ := acc[f.Key].(float64)
		count, _ := acc[internalPrefix+"count_"+f.Key].(int)
		if v, ok := numericAt(doc, f.Attribute); ok {
			total += v
			count++
		}
		acc[f.Key] = total
		acc[internalPrefix+"count_"+f.Key] = count
	case OpMin, OpMax:
		v, ok := storage.Get(doc, normalizePath(f.Attribute))
		if !ok || v == nil {
			return
		}
		cur, seeded := acc[f.Key]
		if !seeded {
			acc[f.Key] = v
			return
		}
		c, comparable := storage.CompareValues(v, cur)
		if !comparable {
			return
		}
		if (f.Op == OpMin && c < 0) || (f.Op == OpMax && c > 0) {
			acc[f.Key] = v
		}
	case OpUCount:
		bagKey := internalPrefix + "bag_" + f.Key
		bag, _ := acc[bagKey].(map[string]struct{})
		if bag == nil {
			bag = make(map[string]struct{})
			acc[bagKey] = bag
		}
		v, ok := storage.Get(doc, normalizePath(f.Attribute))
		if !ok {
			return
		}
		bag[fmt.Sprintf("%T:%v", v, v)] = struct{}{}
	}
}

func finalize(f Accumulator, row storage.Document) {
	switch f.Op {
	case OpAvg:
		count, _ := row[internalPrefix+"count_"+f.Key].(int)
		if count == 0 {
			row[f.Key] = nil
			return
		}
		total, _ := row[f.Key].(float64)
		row[f.Key] = total / float64(count)
	case OpUCount:
		bag, _ := row[internalPrefix+"bag_"+f.Key].(map[string]struct{})
		row[f.Key] = len(bag)
	}
}

func numericAt(doc storage.Document, attribute string) (float64, bool) {
	v, ok := storage.Get(doc, normalizePath(attribute))
	if !ok {
		return 0, false
	}
	return storage.ToFloat64(v)
}

// normalizePath strips the field reference marker from a path.
func normalizePath(path string) string {
	return strings.TrimPrefix(path, "$")
}
