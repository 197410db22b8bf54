package book

import (
	"sync"
	"sync/atomic"
)

// Limit is one price level: a BST node keyed by price plus an
// intrusive FIFO queue of the orders resting at that price.
//
// Tree links and aggregates are lock-free. The queue is mutated only
// while holding mu; head/tail and the order links stay atomic so that
// readers can walk the queue without the lock.
type Limit struct {
	Price int64

	size   atomic.Int64
	volume atomic.Int64

	parent atomic.Pointer[Limit]
	left   atomic.Pointer[Limit]
	right  atomic.Pointer[Limit]

	mu   sync.Mutex
	head atomic.Pointer[Order]
	tail atomic.Pointer[Order]
}

func newLimit(price int64) *Limit {
	return &Limit{Price: price}
}

// LimitView is a point-in-time copy of a level's aggregates.
type LimitView struct {
	Price  int64
	Volume int64
	Count  int64
}

func (l *Limit) View() LimitView {
	return LimitView{
		Price:  l.Price,
		Volume: l.volume.Load(),
		Count:  l.size.Load(),
	}
}

// Count returns the number of orders currently linked in the queue.
func (l *Limit) Count() int64 { return l.size.Load() }

// Volume returns the sum of resting quantity at this level.
func (l *Limit) Volume() int64 { return l.volume.Load() }

// Head returns the oldest resting order, or nil for an empty level.
func (l *Limit) Head() *Order {
	return l.head.Load()
}

// enqueue appends o at the tail, preserving arrival order.
func (l *Limit) enqueue(o *Order) {
	l.mu.Lock()
	o.limit = l
	t := l.tail.Load()
	o.prev.Store(t)
	o.next.Store(nil)
	if t != nil {
		t.next.Store(o)
	} else {
		l.head.Store(o)
	}
	l.tail.Store(o)
	l.mu.Unlock()

	l.size.Add(1)
	l.volume.Add(o.Qty)
}

// unlink removes o from the queue. o must currently be linked here.
func (l *Limit) unlink(o *Order) {
	l.mu.Lock()
	prev := o.prev.Load()
	next := o.next.Load()
	if prev != nil {
		prev.next.Store(next)
	} else {
		l.head.Store(next)
	}
	if next != nil {
		next.prev.Store(prev)
	} else {
		l.tail.Store(prev)
	}
	o.next.Store(nil)
	o.prev.Store(nil)
	l.mu.Unlock()

	l.size.Add(-1)
	l.volume.Add(-o.Qty)
}
