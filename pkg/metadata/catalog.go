// Package metadata keeps the collection definitions consulted while
// planning queries.
package metadata

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vjranagit/embedded/pkg/types"
)

// Catalog is an in-memory registry of collection definitions
type Catalog struct {
	mu          sync.RWMutex
	collections map[string]*types.Collection
}

// NewCatalog creates a catalog holding colls
func NewCatalog(colls ...*types.Collection) *Catalog {
	c := &Catalog{collections: make(map[string]*types.Collection)}
	for _, coll := range colls {
		if coll != nil && coll.Key != "" {
			c.collections[coll.Key] = coll
		}
	}
	return c
}

// Register adds or replaces a collection definition
func (c *Catalog) Register(coll *types.Collection) error {
	if coll == nil || coll.Key == "" {
		return fmt.Errorf("collection key is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collections[coll.Key] = coll
	return nil
}

// Collection looks up a collection definition by key
func (c *Catalog) Collection(key string) (*types.Collection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coll, ok := c.collections[key]
	return coll, ok
}

// Keys returns the registered collection keys in sorted order
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.collections))
	for k := range c.collections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsNestedArray reports whether path descends into an attribute the
// collection declares as an array of objects.
func (c *Catalog) IsNestedArray(collection, path string) bool {
	head, _, found := strings.Cut(path, ".")
	if !found || head == "" {
		return false
	}
	coll, ok := c.Collection(collection)
	if !ok {
		return false
	}
	for _, attr := range coll.Arrays {
		if attr == head {
			return true
		}
	}
	return false
}
