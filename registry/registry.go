package registry

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateKey is returned by Build when the same query key appears in
// more than one source. Registry construction is all-or-nothing.
var ErrDuplicateKey = errors.New("duplicate query key")

// ErrKeyNotFound is returned by Lookup for a key no source registered.
var ErrKeyNotFound = errors.New("query key not found")

// Source is one key → raw SQL template mapping, typically one per query
// file or feature area, merged into a single Registry at startup.
type Source map[string]string

// Registry is an immutable mapping from query key to raw template text.
// Safe for concurrent readers after Build.
type Registry struct {
	queries map[string]string
}

// Build merges the given sources into a Registry. A key occurring in more
// than one source aborts construction with ErrDuplicateKey.
func Build(sources ...Source) (*Registry, error) {
	queries := make(map[string]string)
	for _, src := range sources {
		for key, text := range src {
			if _, ok := queries[key]; ok {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
			}
			queries[key] = text
		}
	}
	return &Registry{queries: queries}, nil
}

// MustBuild is Build that panics on error, for use at the application's
// composition boundary where a duplicate key is a programming error.
func MustBuild(sources ...Source) *Registry {
	r, err := Build(sources...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the raw template registered under key.
func (r *Registry) Lookup(key string) (string, error) {
	text, ok := r.queries[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return text, nil
}

// Keys returns every registered key in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.queries))
	for key := range r.queries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len reports the number of registered queries.
func (r *Registry) Len() int {
	return len(r.queries)
}
