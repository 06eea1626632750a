package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// dateTag wraps time values on disk so they decode back to time.Time.
const dateTag = "$$date"

// encodeDocument serializes doc, compressing the JSON payload.
func (s *badgerStore) encodeDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(wrapDates(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return s.compressor.Compress(data), nil
}

// decodeDocument reverses encodeDocument.
func (s *badgerStore) decodeDocument(data []byte) (Document, error) {
	raw, err := s.compressor.Decompress(data)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return unwrapDates(doc).(Document), nil
}

func wrapDates(v any) any {
	switch val := v.(type) {
	case time.Time:
		return map[string]any{dateTag: val.UnixMilli()}
	case *time.Time:
		if val == nil {
			return nil
		}
		return map[string]any{dateTag: val.UnixMilli()}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = wrapDates(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = wrapDates(child)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = wrapDates(child)
		}
		return out
	default:
		return v
	}
}

func unwrapDates(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 1 {
			if ms, ok := val[dateTag].(float64); ok {
				return time.UnixMilli(int64(ms)).UTC()
			}
		}
		for k, child := range val {
			val[k] = unwrapDates(child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = unwrapDates(child)
		}
		return val
	default:
		return v
	}
}
