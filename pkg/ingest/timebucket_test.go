package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vjranagit/embedded/pkg/storage"
)

func TestNewTimeBucket(t *testing.T) {
	// Saturday, in a non-UTC zone to check normalization.
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 3, 16, 1, 45, 30, 123_000_000, loc)

	b := NewTimeBucket(ts)
	utc := ts.UTC()

	require.Equal(t, int(utc.Weekday()), b.Dow)
	require.Equal(t, 23, b.Hod)
	require.Equal(t, time.Date(2024, 3, 15, 23, 45, 30, 0, time.UTC), b.Second)
	require.Equal(t, time.Date(2024, 3, 15, 23, 45, 0, 0, time.UTC), b.Minute)
	require.Equal(t, time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC), b.Hour)
	require.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), b.DDate)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), b.Month)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), b.Year)
}

func TestDeriveTimeBucket(t *testing.T) {
	fallback := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   any
		want    time.Time
		patched bool
	}{
		{"time", time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC), time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"rfc3339", "2023-01-02T03:04:05Z", time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"date only", "2023-01-02", time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), false},
		{"epoch ms", float64(1672628645000), time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"json number", json.Number("1672628645000"), time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"missing", nil, fallback, true},
		{"garbage", "yesterday", fallback, true},
		{"zero", 0, fallback, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := storage.Document{}
			if tt.value != nil {
				doc["timestamp"] = tt.value
			}

			patched := DeriveTimeBucket(doc, "timestamp", fallback)
			require.Equal(t, tt.patched, patched)
			require.True(t, tt.want.Equal(doc["timestamp"].(time.Time)))

			bucket, ok := doc["timestamp"+BucketSuffix].(storage.Document)
			require.True(t, ok)
			require.Equal(t, NewTimeBucket(tt.want).DDate, bucket["ddate"])
			require.Equal(t, tt.want.Hour(), bucket["hod"])
		})
	}
}
