package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vjranagit/embedded/pkg/storage"
	"github.com/vjranagit/embedded/pkg/types"
)

func compileForMerge(t *testing.T) *QueryPlan {
	t.Helper()
	plan, err := Compile(&types.Query{
		Dimensions: []types.Dimension{
			{Key: "day", Datatype: types.DatatypeDate},
			{Key: "country", Datatype: types.DatatypeString},
		},
		Metrics: []types.Metric{
			{Key: "sum_metric", Collection: "orders", Attribute: "amount"},
			{Key: "count_metric", Collection: "sessions", Aggregation: "count"},
			{Key: "ratio", Formula: "sum_metric / count_metric"},
		},
	}, nil)
	require.NoError(t, err)
	return plan
}

func TestMergeJoinsPartialsByIdentity(t *testing.T) {
	plan := compileForMerge(t)
	partials := []PartialResult{
		{Rows: []storage.Document{
			{IDField: storage.Document{"day": "X", "country": "DE"}, "sum_metric": float64(10)},
			{IDField: storage.Document{"day": "Y", "country": "DE"}, "sum_metric": float64(7)},
		}},
		{Rows: []storage.Document{
			{IDField: storage.Document{"day": "X", "country": "DE"}, "count_metric": 3},
		}},
	}

	rows, err := Merge(plan, partials)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, map[string]any{
		"day":          "X",
		"country":      "DE",
		"sum_metric":   float64(10),
		"count_metric": 3,
	}, rows[0].Values)
	require.Equal(t, map[string]any{
		"day":          "Y",
		"country":      "DE",
		"sum_metric":   float64(7),
		"count_metric": nil,
	}, rows[1].Values)
	require.NotEqual(t, rows[0].Key, rows[1].Key)
}

func TestMergeSentinelBackfill(t *testing.T) {
	plan := compileForMerge(t)
	partials := []PartialResult{
		{Rows: []storage.Document{
			{IDField: storage.Document{"day": nil}, "sum_metric": float64(0)},
		}},
	}

	rows, err := Merge(plan, partials)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, NotSet, rows[0].Values["day"])
	require.Equal(t, NotSet, rows[0].Values["country"])
	require.Nil(t, rows[0].Values["sum_metric"])
	require.Contains(t, rows[0].Values, "count_metric")
	require.Nil(t, rows[0].Values["count_metric"])
	require.NotContains(t, rows[0].Values, "ratio", "formula metrics are not backfilled")
}

func TestMergeDimensionAttribute(t *testing.T) {
	plan := compileForMerge(t)
	rows, err := Merge(plan, []PartialResult{
		{Rows: []storage.Document{
			{IDField: storage.Document{"day": "X"}, "country": nil},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, NotSet, rows[0].Values["country"])
}

func TestMergeInconsistency(t *testing.T) {
	plan := compileForMerge(t)
	_, err := Merge(plan, []PartialResult{
		{Rows: []storage.Document{
			{IDField: storage.Document{"day": "X"}, "surprise": 1},
		}},
	})
	var merr *MergeInconsistencyError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, "surprise", merr.Attribute)
}

func TestMergePlaceholderRows(t *testing.T) {
	plan, err := Compile(&types.Query{
		Dimensions: []types.Dimension{{Key: "country", Datatype: types.DatatypeString, Collection: "orders"}},
	}, nil)
	require.NoError(t, err)

	rows, err := Merge(plan, []PartialResult{
		{Rows: []storage.Document{
			{IDField: storage.Document{"country": "DE"}},
			{IDField: storage.Document{"country": "FR"}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, map[string]any{"country": "DE"}, rows[0].Values)
}

func TestRowMarshalJSON(t *testing.T) {
	data, err := json.Marshal(Row{Key: "abc", Values: map[string]any{"country": "DE", "n": 1}})
	require.NoError(t, err)
	require.JSONEq(t, `{"key":"abc","country":"DE","n":1}`, string(data))
}

func TestIsFalsy(t *testing.T) {
	for _, v := range []any{nil, false, "", 0, 0.0, int64(0), json.Number("0")} {
		require.True(t, isFalsy(v), "%#v", v)
	}
	for _, v := range []any{true, "x", 1, -2.5, json.Number("3"), []any{}} {
		require.False(t, isFalsy(v), "%#v", v)
	}
}
