package storage

import (
	"testing"
)

func TestGroupFirstSeenOrder(t *testing.T) {
	docs := []Document{
		{"k": "b", "v": 1},
		{"k": "a", "v": 2},
		{"k": "b", "v": 3},
	}
	rows, err := group(docs, &GroupOperator{
		Key: []string{"k"},
		Initial: func() Document {
			return Document{"n": 0}
		},
		Reduce: func(doc, acc Document) error {
			acc["n"] = acc["n"].(int) + 1
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0]["k"] != "b" || rows[0]["n"] != 2 {
		t.Errorf("Unexpected first row: %v", rows[0])
	}
	if rows[1]["k"] != "a" || rows[1]["n"] != 1 {
		t.Errorf("Unexpected second row: %v", rows[1])
	}
}

func TestGroupMissingKey(t *testing.T) {
	docs := []Document{{"v": 1}, {"v": 2}}
	rows, err := group(docs, &GroupOperator{Key: []string{"__dummy"}})
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected a single group, got %d", len(rows))
	}
}

func TestGroupFinalize(t *testing.T) {
	docs := []Document{{"k": 1}}
	rows, err := group(docs, &GroupOperator{
		Key: []string{"k"},
		Finalize: func(row Document) error {
			row["done"] = true
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	if rows[0]["done"] != true {
		t.Errorf("Expected finalize to run, got %v", rows[0])
	}
}

func TestUnwindNonArray(t *testing.T) {
	docs := []Document{{"items": "single"}, {"items": nil}}
	out := unwind(docs, "items")
	if len(out) != 1 || out[0]["items"] != "single" {
		t.Errorf("Expected scalar to pass through and nil to be dropped, got %v", out)
	}
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{
		{"id": 1, "n": 2},
		{"id": 2},
		{"id": 3, "n": 1},
		{"id": 4, "n": 2},
	}

	SortDocuments(docs, []SortField{{Field: "n"}})
	want := []int{2, 3, 1, 4}
	for i, id := range want {
		if docs[i]["id"] != id {
			t.Errorf("Ascending position %d: expected id %d, got %v", i, id, docs[i]["id"])
		}
	}

	SortDocuments(docs, []SortField{{Field: "n", Descending: true}})
	want = []int{1, 4, 3, 2}
	for i, id := range want {
		if docs[i]["id"] != id {
			t.Errorf("Descending position %d: expected id %d, got %v", i, id, docs[i]["id"])
		}
	}
}
