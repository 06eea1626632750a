package ingest

import (
	"encoding/json"
	"time"

	"github.com/jinzhu/now"

	"github.com/vjranagit/embedded/pkg/storage"
)

// BucketSuffix is appended to a date field name to name its bucket field
const BucketSuffix = "_timebucket"

// TimeBucket holds the truncations of one date value. Every truncation is
// in UTC; Dow and Hod come from the untruncated value.
type TimeBucket struct {
	Dow    int
	Hod    int
	Second time.Time
	Minute time.Time
	Hour   time.Time
	DDate  time.Time
	Month  time.Time
	Year   time.Time
}

// NewTimeBucket derives the bucket of t.
func NewTimeBucket(t time.Time) TimeBucket {
	t = t.UTC()
	n := now.With(t)
	return TimeBucket{
		Dow:    int(t.Weekday()),
		Hod:    t.Hour(),
		Second: t.Truncate(time.Second),
		Minute: n.BeginningOfMinute(),
		Hour:   n.BeginningOfHour(),
		DDate:  n.BeginningOfDay(),
		Month:  n.BeginningOfMonth(),
		Year:   n.BeginningOfYear(),
	}
}

// Document returns the stored form of the bucket.
func (b TimeBucket) Document() storage.Document {
	return storage.Document{
		"dow":    b.Dow,
		"hod":    b.Hod,
		"second": b.Second,
		"minute": b.Minute,
		"hour":   b.Hour,
		"ddate":  b.DDate,
		"month":  b.Month,
		"year":   b.Year,
	}
}

// DeriveTimeBucket normalizes doc[field] to a time value and stores its
// bucket under field+BucketSuffix. A missing or unusable value is replaced
// by ts; patched reports whether that happened.
func DeriveTimeBucket(doc storage.Document, field string, ts time.Time) (patched bool) {
	t, ok := parseTime(doc[field])
	if !ok {
		t = ts
		patched = true
	}
	t = t.UTC()
	doc[field+BucketSuffix] = NewTimeBucket(t).Document()
	doc[field] = t
	return patched
}

func parseTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, false
		}
		return *val, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case json.Number:
		ms, err := val.Int64()
		if err != nil || ms == 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(ms), true
	default:
		ms, ok := storage.ToFloat64(v)
		if !ok || ms == 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)), true
	}
}
