package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

/*
MemStore is an in-memory storage provider backed by a map. It is only suitable
for tests. Content written through Create becomes visible when the writer is
closed.
*/

////////////////////////////////////////////////////////////////////////////////

// MemStore is an in-memory store.
type MemStore struct {
	data map[string][]byte
	mtx  *sync.RWMutex
}

// NewMemStore returns a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string][]byte),
		mtx:  &sync.RWMutex{},
	}
}

type memWriter struct {
	store  *MemStore
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write to closed object")
	}
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.store.Put(w.name, w.buf.Bytes())
}

// Create returns a writer that replaces name when closed.
func (m *MemStore) Create(_ context.Context, name string) (io.WriteCloser, error) {
	return &memWriter{store: m, name: name}, nil
}

// Open returns a reader over the stored object.
func (m *MemStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	data, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Glob returns the stored names that match pattern.
func (m *MemStore) Glob(_ context.Context, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("bad pattern %s: %w", pattern, doublestar.ErrBadPattern)
	}
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	matches := []string{}
	for name := range m.data {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("failed to match %s: %w", name, err)
		}
		if ok {
			matches = append(matches, name)
		}
	}
	slices.Sort(matches)
	return matches, nil
}

// Put stores an object.
func (m *MemStore) Put(name string, data []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.data[name] = bytes.Clone(data)
	return nil
}

// Get retrieves an object.
func (m *MemStore) Get(name string) ([]byte, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	data, ok := m.data[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrObjectNotFound)
	}
	return data, nil
}

// Delete removes an object from the store.
func (m *MemStore) Delete(_ context.Context, name string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	delete(m.data, name)
	return nil
}

func (m *MemStore) String() string {
	return "memory"
}
