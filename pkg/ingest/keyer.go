package ingest

import (
	"strings"
	"time"

	"github.com/vjranagit/embedded/pkg/hash"
	"github.com/vjranagit/embedded/pkg/storage"
	"github.com/vjranagit/embedded/pkg/types"
)

// Reserved document fields
const (
	FieldKey          = "_key"
	FieldOurTimestamp = "ourTimestamp"
	FieldTimestamp    = "timestamp"
)

// KeyContext locates a document within its ingestion batch
type KeyContext struct {
	Index     int
	BatchSize int
	// Patched is set when the document's date field was auto-assigned.
	Patched bool
}

// DocumentKey computes the identity key of doc from its dimension values.
// With no dimensions declared every non-volatile field takes part.
func DocumentKey(doc storage.Document, dimensions []types.Dimension, kc KeyContext) (string, error) {
	candidate := make(map[string]any)

	if len(dimensions) == 0 {
		for field := range doc {
			if volatile(field) || strings.HasSuffix(field, BucketSuffix) {
				continue
			}
			candidate[field] = keyValue(field, doc[field])
		}
	}
	for _, dim := range dimensions {
		if volatile(dim.Key) {
			continue
		}
		candidate[dim.Key] = keyValue(dim.Key, doc[dim.Key])
	}

	// Auto-assigned timestamps are shared by the whole batch.
	if kc.Patched && kc.BatchSize > 1 {
		candidate["index"] = kc.Index
	}

	return hash.Object(candidate)
}

func volatile(field string) bool {
	return field == FieldKey || field == FieldOurTimestamp
}

func keyValue(field string, v any) any {
	if field != FieldTimestamp {
		return v
	}
	if t, ok := v.(time.Time); ok {
		return t.UnixMilli()
	}
	return v
}
