package util

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
)

/*
An exec context is a tree of named counters carried on a context.Context. The
executor's stats nodes record into it as the plan is closed, producing one
child per operator, and the tree is rendered as JSON after the query.

Functions that record into a context without an exec context record into a
throwaway node, so instrumented code does not need to check whether stats are
enabled.
*/

////////////////////////////////////////////////////////////////////////////////

type contextKey int

const (
	// ContextKey is the context key under which the exec context is stored.
	ContextKey contextKey = iota
)

// Context is one node of an exec context tree.
type Context struct {
	Name     string             `json:"name"`
	Values   map[string]float64 `json:"values"`
	Data     map[string]string  `json:"data"`
	Children []*Context         `json:"children"`

	mtx *sync.Mutex
}

func newContext(name string) *Context {
	return &Context{
		Name:   name,
		Values: make(map[string]float64),
		Data:   make(map[string]string),
		mtx:    &sync.Mutex{},
	}
}

// WithContext returns a context carrying a new root exec context.
func WithContext(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ContextKey, newContext(name))
}

// WithChildContext adds a named child to the exec context on ctx and returns
// a context carrying the child.
func WithChildContext(ctx context.Context, name string) (context.Context, *Context) {
	c := fromContext(ctx)
	child := newContext(name)
	c.mtx.Lock()
	c.Children = append(c.Children, child)
	c.mtx.Unlock()
	return context.WithValue(ctx, ContextKey, child), child
}

// SetContextValue sets a numeric value.
func SetContextValue(ctx context.Context, name string, value float64) {
	c := fromContext(ctx)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.Values[name] = value
}

// SetContextData sets a string value.
func SetContextData(ctx context.Context, key string, data string) {
	c := fromContext(ctx)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.Data[key] = data
}

// JSONFromContext renders the exec context carried by ctx.
func JSONFromContext(ctx context.Context) ([]byte, error) {
	c := fromContext(ctx)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to render exec context: %w", err)
	}
	return data, nil
}

func fromContext(ctx context.Context) *Context {
	if c, ok := ctx.Value(ContextKey).(*Context); ok {
		return c
	}
	return newContext("")
}
