package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	Store
	closeErr error
	closed   atomic.Bool
}

func (f *fakeStore) Close() error {
	f.closed.Store(true)
	return f.closeErr
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "acme_events", Sanitize("acme_events"))
	require.Equal(t, "acmeevents2024", Sanitize("acme-events/2024"))
	require.Equal(t, "", Sanitize("../.."))
}

func TestManagerOpenCachesHandle(t *testing.T) {
	var opened atomic.Int32
	m := NewManager(ManagerOptions{
		Path:   t.TempDir(),
		Logger: zerolog.Nop(),
		Open: func(opts *Options) (Store, error) {
			opened.Add(1)
			return &fakeStore{}, nil
		},
	})

	ctx := context.Background()
	const workers = 16
	stores := make([]Store, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i], errs[i] = m.Open(ctx, "default_events")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.EqualValues(t, 1, opened.Load())
	for _, s := range stores {
		require.Same(t, stores[0], s)
	}

	again, err := m.Open(ctx, "default_events!")
	require.NoError(t, err)
	require.Same(t, stores[0], again, "sanitized names share a handle")
	require.Equal(t, []string{"default_events"}, m.Namespaces())
}

func TestManagerInvalidNamespace(t *testing.T) {
	m := NewManager(ManagerOptions{Path: t.TempDir()})
	_, err := m.Open(context.Background(), "///")
	require.ErrorIs(t, err, ErrInvalidNamespace)
}

func TestManagerCloseAllAttemptsEveryStore(t *testing.T) {
	stores := map[string]*fakeStore{
		"a": {closeErr: errors.New("disk gone")},
		"b": {},
		"c": {closeErr: errors.New("second failure")},
	}
	m := NewManager(ManagerOptions{
		Path: t.TempDir(),
		Open: func(opts *Options) (Store, error) {
			return stores[strings.TrimSuffix(filepath.Base(opts.Path), ".db")], nil
		},
	})

	ctx := context.Background()
	for name := range stores {
		_, err := m.Open(ctx, name)
		require.NoError(t, err)
	}

	err := m.CloseAll()
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk gone")
	for name, s := range stores {
		require.True(t, s.closed.Load(), "store %s not closed", name)
	}
	require.Empty(t, m.Namespaces())
}

func TestManagerDrop(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(ManagerOptions{Path: dir, CompressionLevel: 1})
	ctx := context.Background()

	s, err := m.Open(ctx, "acme_events")
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, []Document{{"a": 1}}))

	_, err = os.Stat(filepath.Join(dir, "acme_events.db"))
	require.NoError(t, err)

	require.NoError(t, m.Drop("acme_events"))
	_, err = os.Stat(filepath.Join(dir, "acme_events.db"))
	require.True(t, os.IsNotExist(err))
	require.Empty(t, m.Namespaces())

	s, err = m.Open(ctx, "acme_events")
	require.NoError(t, err)
	count, err := s.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
	require.NoError(t, m.CloseAll())
}

func TestManagerPurge(t *testing.T) {
	m := NewManager(ManagerOptions{InMemory: true})
	ctx := context.Background()
	for _, name := range []string{"a", "b"} {
		_, err := m.Open(ctx, name)
		require.NoError(t, err)
	}
	require.NoError(t, m.Purge())
	require.Empty(t, m.Namespaces())
}
