package sync

import (
	"sync"
	"sync/atomic"
)

// Lazy holds a value that is loaded on first use and can be reset so that
// the next Get loads it again.
//
// A failed load is not cached; the next Get retries. Lazy is safe for
// concurrent use. Concurrent Gets during a load block until it finishes.
type Lazy[T any] struct {
	mu     sync.Mutex
	loaded atomic.Bool
	value  T
}

// Get returns the value, calling load if it has not been loaded since the
// last Reset.
func (l *Lazy[T]) Get(load func() (T, error)) (T, error) {
	if l.loaded.Load() {
		l.mu.Lock()
		v := l.value
		l.mu.Unlock()
		return v, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded.Load() {
		return l.value, nil
	}

	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	l.value = v
	l.loaded.Store(true)
	return v, nil
}

// Reset discards the loaded value. If a load is in progress, Reset waits for
// it to finish.
func (l *Lazy[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	l.value = zero
	l.loaded.Store(false)
}

// Loaded reports whether a value is currently loaded.
func (l *Lazy[T]) Loaded() bool {
	return l.loaded.Load()
}
