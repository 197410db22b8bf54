package book

import "sync/atomic"

type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// Order is a resting order. Identity fields are written once, before
// the order is published into any shared structure; only the queue
// links mutate afterwards, and only under the owning level's lock.
type Order struct {
	ID        uint64
	Side      Side
	Qty       int64
	Price     int64
	EntryTime int64
	EventTime int64

	limit *Limit
	next  atomic.Pointer[Order]
	prev  atomic.Pointer[Order]
}

// Next returns the younger neighbour in the level's FIFO queue.
func (o *Order) Next() *Order {
	return o.next.Load()
}

// Limit returns the price level owning this order.
func (o *Order) Limit() *Limit {
	return o.limit
}
