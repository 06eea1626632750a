package storage

import "strings"

// Document is a schemaless record. Nested objects are Documents or
// map[string]any values; dotted paths address them.
type Document = map[string]any

// Get resolves a dotted path against doc.
func Get(doc Document, path string) (any, bool) {
	if doc == nil {
		return nil, false
	}
	if v, ok := doc[path]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, false
	}
	child, ok := doc[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return Get(child, rest)
}

// Set writes value at a dotted path, creating intermediate objects.
func Set(doc Document, path string, value any) {
	head, rest, found := strings.Cut(path, ".")
	if !found {
		doc[path] = value
		return
	}
	child, ok := doc[head].(map[string]any)
	if !ok {
		child = make(map[string]any)
		doc[head] = child
	}
	Set(child, rest, value)
}

// clone copies the top level of doc.
func clone(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
