// Package clientpool provides a fixed-size, round-robin pool of client
// handles so independent sender goroutines do not serialize on a single
// connection.
package clientpool

import (
	"fmt"
	"sync/atomic"
)

// Pool hands out pre-constructed handles in round-robin order. The handle
// table is immutable after construction; Acquire only advances an atomic
// cursor, so it is safe for any number of concurrent callers. Handles are
// never destroyed or replaced before process exit.
type Pool[T any] struct {
	handles []T
	cursor  atomic.Uint64
}

// New builds a pool of the given size using the factory. A factory error
// aborts construction entirely; there is no partially initialized pool.
func New[T any](size int, factory func(i int) (T, error)) (*Pool[T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	handles := make([]T, 0, size)
	for i := 0; i < size; i++ {
		h, err := factory(i)
		if err != nil {
			return nil, fmt.Errorf("constructing pool handle %d: %w", i, err)
		}
		handles = append(handles, h)
	}
	return &Pool[T]{handles: handles}, nil
}

// Acquire returns the next handle in round-robin order, wrapping around.
func (p *Pool[T]) Acquire() T {
	n := p.cursor.Add(1) - 1
	return p.handles[n%uint64(len(p.handles))]
}

// Size returns the fixed pool size.
func (p *Pool[T]) Size() int {
	return len(p.handles)
}
