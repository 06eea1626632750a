package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

var nonWord = regexp.MustCompile(`\W`)

// Sanitize strips every non-word character from a namespace name.
func Sanitize(name string) string {
	return nonWord.ReplaceAllString(name, "")
}

// OpenFunc opens the store backing one namespace
type OpenFunc func(opts *Options) (Store, error)

// ManagerOptions holds Manager configuration
type ManagerOptions struct {
	// Path is the directory holding one store per namespace.
	Path             string
	InMemory         bool
	CompressionLevel int
	Logger           zerolog.Logger
	// Open overrides how stores are opened. Defaults to Open.
	Open OpenFunc
}

// Manager owns the process-wide cache of open namespace stores. Stores are
// opened lazily and stay open until CloseAll, Drop or Purge.
type Manager struct {
	opts   ManagerOptions
	open   OpenFunc
	log    zerolog.Logger
	mu     sync.Mutex
	stores map[string]Store
}

// NewManager creates a store manager
func NewManager(opts ManagerOptions) *Manager {
	open := opts.Open
	if open == nil {
		open = Open
	}
	return &Manager{
		opts:   opts,
		open:   open,
		log:    opts.Logger.With().Str("component", "store-manager").Logger(),
		stores: make(map[string]Store),
	}
}

// Open returns the cached store for namespace, opening it on first use.
// Concurrent callers for the same namespace observe the same store.
func (m *Manager) Open(ctx context.Context, namespace string) (Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := Sanitize(namespace)
	if name == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[name]; ok {
		return s, nil
	}

	m.log.Debug().Str("namespace", name).Msg("opening store")
	s, err := m.open(&Options{
		Path:             m.path(name),
		InMemory:         m.opts.InMemory,
		CompressionLevel: m.opts.CompressionLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open namespace %s: %w", name, err)
	}
	m.stores[name] = s
	return s, nil
}

// Namespaces returns the sanitized names of all open stores
func (m *Manager) Namespaces() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.namesLocked()
}

// CloseAll closes every open store. All stores are attempted; the first
// failure is returned.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for _, name := range m.namesLocked() {
		m.log.Info().Str("namespace", name).Msg("closing store")
		if err := m.stores[name].Close(); err != nil && first == nil {
			first = fmt.Errorf("failed to close namespace %s: %w", name, err)
		}
		delete(m.stores, name)
	}
	return first
}

// Drop closes the namespace store, if open, and removes its files.
func (m *Manager) Drop(namespace string) error {
	name := Sanitize(namespace)
	if name == "" {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropLocked(name)
}

// Purge drops every open namespace.
func (m *Manager) Purge() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for _, name := range m.namesLocked() {
		if err := m.dropLocked(name); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *Manager) dropLocked(name string) error {
	if s, ok := m.stores[name]; ok {
		delete(m.stores, name)
		if err := s.Close(); err != nil {
			return fmt.Errorf("failed to close namespace %s: %w", name, err)
		}
	}
	if m.opts.InMemory {
		return nil
	}
	m.log.Info().Str("namespace", name).Msg("dropping store")
	if err := os.RemoveAll(m.path(name)); err != nil {
		return fmt.Errorf("failed to remove namespace %s: %w", name, err)
	}
	return nil
}

func (m *Manager) namesLocked() []string {
	names := make([]string, 0, len(m.stores))
	for name := range m.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.opts.Path, name+".db")
}
