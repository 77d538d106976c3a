package evm

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Lookup is an append-only memo for values that never change once found,
// such as pool addresses. Concurrent misses for the same key share one load.
// Failed loads are not remembered.
type Lookup[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	group singleflight.Group
}

// NewLookup creates an empty Lookup.
func NewLookup[V any]() *Lookup[V] {
	return &Lookup[V]{items: make(map[string]V)}
}

// Get returns the cached value for key or calls load once to fill it.
func (l *Lookup[V]) Get(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	l.mu.RLock()
	v, ok := l.items[key]
	l.mu.RUnlock()
	if ok {
		return v, nil
	}

	res, err, _ := l.group.Do(key, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.items[key] = v
		l.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Len returns the number of cached entries.
func (l *Lookup[V]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
