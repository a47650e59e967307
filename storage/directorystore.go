package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

/*
DirectoryStore reads and writes files on the local filesystem. Relative names
resolve against the store's root; a store with an empty root resolves against
the process working directory. Absolute names are used as given.
*/

////////////////////////////////////////////////////////////////////////////////

// DirectoryStore is a local filesystem provider.
type DirectoryStore struct {
	root string
}

// NewDirectoryStore creates a new DirectoryStore.
func NewDirectoryStore(root string) *DirectoryStore {
	return &DirectoryStore{root: root}
}

func (d *DirectoryStore) resolve(name string) string {
	if d.root == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.root, name)
}

// Create opens a file for writing, truncating it if it exists. Parent
// directories are not created.
func (d *DirectoryStore) Create(_ context.Context, name string) (io.WriteCloser, error) {
	f, err := os.OpenFile(d.resolve(name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create failure: %w", err)
	}
	return f, nil
}

// Open opens a file for reading.
func (d *DirectoryStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(d.resolve(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("open failure: %w", err)
	}
	return f, nil
}

// Glob expands a doublestar pattern. Returned names are in the same form as
// the pattern: relative to the root for relative patterns.
func (d *DirectoryStore) Glob(_ context.Context, pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(d.resolve(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
	}
	if d.root != "" && !filepath.IsAbs(pattern) {
		for i, m := range matches {
			rel, err := filepath.Rel(d.root, m)
			if err != nil {
				return nil, fmt.Errorf("failed to relativize %s: %w", m, err)
			}
			matches[i] = rel
		}
	}
	slices.Sort(matches)
	return matches, nil
}

// Delete removes a file.
func (d *DirectoryStore) Delete(_ context.Context, name string) error {
	err := os.Remove(d.resolve(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) { // For conformance to S3 API
			return nil
		}
		return fmt.Errorf("deletion failure: %w", err)
	}
	return nil
}

func (d *DirectoryStore) String() string {
	if d.root == "" {
		return "directory(.)"
	}
	return fmt.Sprintf("directory(%s)", d.root)
}
