package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrClosed is returned by operations on a closed store
	ErrClosed = errors.New("storage: store is closed")
	// ErrInvalidNamespace is returned when a namespace sanitizes to nothing
	ErrInvalidNamespace = errors.New("storage: invalid namespace")
)

// docPrefix prefixes every document record key
var docPrefix = []byte("d/")

// Store is an embedded document collection
type Store interface {
	// Insert writes a batch of documents as one operation
	Insert(ctx context.Context, docs []Document) error

	// Scan filters, sorts and optionally groups the stored documents
	Scan(ctx context.Context, req *ScanRequest) ([]Document, error)

	// Count returns the number of stored documents
	Count(ctx context.Context) (int, error)

	// Size returns the on-disk footprint in bytes
	Size() int64

	// Close closes the store
	Close() error
}

// ScanRequest parameterizes Store.Scan
type ScanRequest struct {
	Filter Filter
	// Unwind names an array field; each element yields its own document.
	Unwind string
	Sort   []SortField
	Group  *GroupOperator
}

// Options holds store configuration
type Options struct {
	Path             string
	InMemory         bool
	CompressionLevel int
}

// DefaultOptions returns default store options
func DefaultOptions() *Options {
	return &Options{
		Path:             "./data/default.db",
		CompressionLevel: 3,
	}
}

// badgerStore implements Store using BadgerDB
type badgerStore struct {
	opts       *Options
	db         *badger.DB
	compressor *Compressor
	mu         sync.RWMutex
	closed     bool
}

// Open opens or creates a store
func Open(opts *Options) (Store, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	compressor, err := NewCompressor(opts.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	return &badgerStore{
		opts:       opts,
		db:         db,
		compressor: compressor,
	}, nil
}

// Insert implements Store.Insert
func (s *badgerStore) Insert(ctx context.Context, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	payloads := make([][]byte, len(docs))
	for i, doc := range docs {
		data, err := s.encodeDocument(doc)
		if err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
		payloads[i] = data
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, data := range payloads {
			if err := txn.Set(generateKey(), data); err != nil {
				return fmt.Errorf("failed to write document: %w", err)
			}
		}
		return nil
	})
}

// Scan implements Store.Scan
func (s *badgerStore) Scan(ctx context.Context, req *ScanRequest) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil {
		req = &ScanRequest{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	docs := make([]Document, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = docPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(docPrefix); it.ValidForPrefix(docPrefix); it.Next() {
			var doc Document
			err := it.Item().Value(func(val []byte) error {
				var err error
				doc, err = s.decodeDocument(val)
				return err
			})
			if err != nil {
				return err
			}

			ok, err := req.Filter.Matches(doc)
			if err != nil {
				return err
			}
			if ok {
				docs = append(docs, doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	if req.Unwind != "" {
		docs = unwind(docs, req.Unwind)
	}
	SortDocuments(docs, req.Sort)

	if req.Group == nil {
		return docs, nil
	}
	return group(docs, req.Group)
}

// Count implements Store.Count
func (s *badgerStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = docPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(docPrefix); it.ValidForPrefix(docPrefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Size implements Store.Size
func (s *badgerStore) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	lsm, vlog := s.db.Size()
	return lsm + vlog
}

// Close implements Store.Close
func (s *badgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.compressor.Close()
	return s.db.Close()
}

// generateKey generates a time-ordered record key
func generateKey() []byte {
	id := ulid.Make()
	key := make([]byte, 0, len(docPrefix)+len(id))
	key = append(key, docPrefix...)
	return append(key, id[:]...)
}
