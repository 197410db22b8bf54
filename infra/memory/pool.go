package memory

import "sync"

// Pool is a typed free list over sync.Pool. Objects handed back via
// Put must already be unreachable from the shared structures; the
// epoch gate in Advance enforces that for retired orders.
type Pool[T any] struct {
	p sync.Pool
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	pool := &Pool[T]{}
	pool.p.New = func() any { return ctor() }
	return pool
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	p.p.Put(v)
}
