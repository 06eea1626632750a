// Package hash provides the content hashing and identifier primitives
// shared by ingestion and query planning.
package hash

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/oklog/ulid/v2"
)

// String hashes s to a fixed width hex digest.
func String(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// Object hashes the JSON serialization of v. Map keys are serialized in
// sorted order so equal objects always hash equal.
func Object(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize hash input: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

// UID returns a new opaque unique identifier.
func UID() string {
	return ulid.Make().String()
}
