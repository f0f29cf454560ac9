// Package data holds the client-side synchronization primitives behind every
// list view: the search debouncer, the paged collection synchronizer, the
// mutation applier, and the realm that scopes their lifetime to one view.
package data

import (
	"context"
	"maps"
	"net/url"
	"slices"
)

// Filters is the opaque key/value bag sent alongside pagination parameters.
// Any change to it invalidates the collection it was applied to.
type Filters map[string]string

// Clone returns an independent copy.
func (f Filters) Clone() Filters {
	if f == nil {
		return Filters{}
	}
	return maps.Clone(f)
}

// With returns a copy with key set to value. An empty value removes the key.
func (f Filters) With(key, value string) Filters {
	out := f.Clone()
	if value == "" {
		delete(out, key)
	} else {
		out[key] = value
	}
	return out
}

// Equal reports whether both bags hold the same pairs. Nil and empty are equal.
func (f Filters) Equal(other Filters) bool {
	return maps.Equal(f, other)
}

// Values encodes the filters as query parameters, skipping empty values.
func (f Filters) Values() url.Values {
	v := url.Values{}
	for _, k := range slices.Sorted(maps.Keys(f)) {
		if f[k] != "" {
			v.Set(k, f[k])
		}
	}
	return v
}

// IDFunc extracts the identity of an entity.
type IDFunc[T any] func(T) string

// PageFetcher retrieves one page of a remote list. Pages are 1-based.
type PageFetcher[T any] func(ctx context.Context, page, limit int, filters Filters) ([]T, error)

// FetchObserver is notified after every completed page request, stale or not.
type FetchObserver func(key string, page, count int, err error)
