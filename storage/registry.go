package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

/*
Registry routes names to providers by URL scheme. Names without a scheme
("out.csv", "/tmp/out.csv") go to the default provider; "s3://bucket/key" goes
to the provider registered for "s3" with the scheme stripped.
*/

////////////////////////////////////////////////////////////////////////////////

// UnsupportedSchemeError is returned for a name whose scheme has no provider.
type UnsupportedSchemeError struct {
	Scheme string
}

// Error returns a string representation of the error.
func (e UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("no storage configured for scheme %q", e.Scheme)
}

// Is returns true if the target is an UnsupportedSchemeError.
func (e UnsupportedSchemeError) Is(target error) bool {
	_, ok := target.(UnsupportedSchemeError)
	return ok
}

// Registry is a Provider that dispatches on scheme.
type Registry struct {
	fallback Provider
	schemes  map[string]Provider
}

// NewRegistry returns a registry that sends unqualified names to fallback.
func NewRegistry(fallback Provider) *Registry {
	return &Registry{
		fallback: fallback,
		schemes:  make(map[string]Provider),
	}
}

// Register adds a provider for a scheme.
func (r *Registry) Register(scheme string, p Provider) {
	r.schemes[strings.ToLower(scheme)] = p
}

func (r *Registry) resolve(name string) (Provider, string, string, error) {
	scheme, rest, ok := strings.Cut(name, "://")
	if !ok {
		return r.fallback, name, "", nil
	}
	scheme = strings.ToLower(scheme)
	p, found := r.schemes[scheme]
	if !found {
		return nil, "", "", UnsupportedSchemeError{Scheme: scheme}
	}
	return p, rest, scheme + "://", nil
}

// Create opens name for writing on the matching provider.
func (r *Registry) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	p, rest, _, err := r.resolve(name)
	if err != nil {
		return nil, err
	}
	return p.Create(ctx, rest)
}

// Open opens name for reading on the matching provider.
func (r *Registry) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	p, rest, _, err := r.resolve(name)
	if err != nil {
		return nil, err
	}
	return p.Open(ctx, rest)
}

// Glob expands pattern on the matching provider. Results carry the scheme of
// the pattern.
func (r *Registry) Glob(ctx context.Context, pattern string) ([]string, error) {
	p, rest, prefix, err := r.resolve(pattern)
	if err != nil {
		return nil, err
	}
	matches, err := p.Glob(ctx, rest)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		matches[i] = prefix + matches[i]
	}
	return matches, nil
}

// Delete removes name on the matching provider.
func (r *Registry) Delete(ctx context.Context, name string) error {
	p, rest, _, err := r.resolve(name)
	if err != nil {
		return err
	}
	return p.Delete(ctx, rest)
}

func (r *Registry) String() string {
	return fmt.Sprintf("registry(%s)", r.fallback)
}
