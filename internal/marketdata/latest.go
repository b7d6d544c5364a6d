package marketdata

import (
	"sync"
	"sync/atomic"
)

// Latest holds the result of the most recently issued request. Each request
// takes a generation token from Begin; Commit stores a result only if no
// newer request has been issued since, so a slow superseded retrieval can
// never overwrite a fresher one.
type Latest[T any] struct {
	issued atomic.Uint64

	mu        sync.RWMutex
	value     T
	err       error
	committed uint64
}

// Begin issues a new generation token.
func (l *Latest[T]) Begin() uint64 {
	return l.issued.Add(1)
}

// Current reports whether gen is still the newest token.
func (l *Latest[T]) Current(gen uint64) bool {
	return l.issued.Load() == gen
}

// Commit records the outcome of request gen. It returns false and discards
// the result when a newer request has been issued.
func (l *Latest[T]) Commit(gen uint64, value T, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.issued.Load() || gen <= l.committed {
		return false
	}
	l.value, l.err, l.committed = value, err, gen
	return true
}

// CommitWith runs apply and records its outcome only if gen is still the
// newest token when the commit lock is taken. apply runs under that lock,
// so side effects of a superseded request are never applied after those of
// a newer one. It reports false without calling apply when gen is stale.
func (l *Latest[T]) CommitWith(gen uint64, apply func() (T, error)) (T, error, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.issued.Load() || gen <= l.committed {
		var zero T
		return zero, nil, false
	}
	value, err := apply()
	l.value, l.err, l.committed = value, err, gen
	return value, err, true
}

// Get returns the last committed result and its generation, zero if none.
func (l *Latest[T]) Get() (T, uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.committed, l.err
}
