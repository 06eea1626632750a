// Package ingest prepares documents for insertion: it derives time
// buckets for date fields and assigns deterministic identity keys.
package ingest

import (
	"fmt"
	"time"

	"github.com/vjranagit/embedded/pkg/storage"
	"github.com/vjranagit/embedded/pkg/types"
)

// identityMeta lists collection metadata fields that describe the
// collection itself and are not carried into batch metadata.
var identityMeta = map[string]bool{
	"dimensions":  true,
	"metrics":     true,
	"description": true,
	"storeKey":    true,
}

// BatchMeta is the collection metadata attached to one ingested batch
type BatchMeta map[string]any

// Furnish derives time buckets, the insertion timestamp and the identity
// key of every document in docs, in place. ts is used both as the
// insertion timestamp and as the value of missing date fields.
func Furnish(coll *types.Collection, docs []storage.Document, ts time.Time) (BatchMeta, error) {
	if coll == nil {
		return nil, fmt.Errorf("collection is required")
	}

	fields := DateFields(coll)
	for i, doc := range docs {
		if doc == nil {
			return nil, fmt.Errorf("document %d is nil", i)
		}

		patched := false
		for _, field := range fields {
			if DeriveTimeBucket(doc, field, ts) {
				patched = true
			}
		}
		doc[FieldOurTimestamp] = ts.UTC()

		key, err := DocumentKey(doc, coll.Dimensions, KeyContext{
			Index:     i,
			BatchSize: len(docs),
			Patched:   patched,
		})
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		doc[FieldKey] = key
	}

	return NewBatchMeta(coll), nil
}

// DateFields returns timestamp followed by every other date dimension of
// coll.
func DateFields(coll *types.Collection) []string {
	fields := []string{FieldTimestamp}
	for _, dim := range coll.Dimensions {
		if dim.Datatype == types.DatatypeDate && dim.Key != FieldTimestamp {
			fields = append(fields, dim.Key)
		}
	}
	return fields
}

// NewBatchMeta derives batch metadata from coll without modifying it.
func NewBatchMeta(coll *types.Collection) BatchMeta {
	meta := make(BatchMeta, len(coll.Meta))
	for k, v := range coll.Meta {
		if !identityMeta[k] {
			meta[k] = v
		}
	}
	return meta
}
