package book

import "errors"

var (
	ErrDuplicateOrder   = errors.New("book: duplicate order id")
	ErrUnknownOrder     = errors.New("book: unknown order id")
	ErrAllocationFailed = errors.New("book: order allocation failed")
	ErrInvalidQuantity  = errors.New("book: quantity must be positive")
	ErrInvalidPrice     = errors.New("book: price must be positive")
)

const (
	defaultOrderBuckets = 1 << 14
	defaultPriceBuckets = 1 << 10
)

// Book composes the side trees and the order-id index into the
// new-order / cancel / best-price surface.
type Book struct {
	bids   *tree
	asks   *tree
	orders *index[Order]
	alloc  func() *Order
}

type Option func(*Book)

// WithAllocator routes order allocation through fn, typically a
// memory.Pool hook. fn returning nil surfaces as ErrAllocationFailed.
func WithAllocator(fn func() *Order) Option {
	return func(b *Book) { b.alloc = fn }
}

// WithOrderBuckets sets the order-id index bucket count (power of two).
func WithOrderBuckets(n int) Option {
	return func(b *Book) { b.orders = newIndex[Order](n) }
}

func New(opts ...Option) *Book {
	b := &Book{
		bids:   newTree(Bid, defaultPriceBuckets),
		asks:   newTree(Ask, defaultPriceBuckets),
		orders: newIndex[Order](defaultOrderBuckets),
		alloc:  func() *Order { return new(Order) },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Book) sideTree(s Side) *tree {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

// NewOrder rests a new order at its price level and makes it visible
// to queries. Ids already present are rejected; the check is
// best-effort under concurrent inserts of the same id, which upstream
// id assignment is expected to rule out anyway.
func (b *Book) NewOrder(id uint64, side Side, qty, price, entryTime, eventTime int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if price <= 0 {
		return ErrInvalidPrice
	}
	if b.orders.find(id) != nil {
		return ErrDuplicateOrder
	}

	o := b.alloc()
	if o == nil {
		return ErrAllocationFailed
	}
	o.ID = id
	o.Side = side
	o.Qty = qty
	o.Price = price
	o.EntryTime = entryTime
	o.EventTime = eventTime
	o.limit = nil
	o.next.Store(nil)
	o.prev.Store(nil)

	l := b.sideTree(side).findOrInsert(price)
	l.enqueue(o)
	b.orders.insert(id, o)
	return nil
}

// Cancel removes the order from its level queue and the id index and
// returns it. A second cancel of the same id, or an id never seen,
// reports ErrUnknownOrder.
//
// The returned order is no longer reachable through the book; the
// caller decides when it may be reused (see infra/memory).
func (b *Book) Cancel(id uint64) (*Order, error) {
	o := b.orders.erase(id)
	if o == nil {
		return nil, ErrUnknownOrder
	}
	o.limit.unlink(o)
	return o, nil
}

// BestBid returns the cached inside bid. The view may report zero
// quantity: the inside cache tracks the most aggressive price ever
// inserted, not the most aggressive price with resting interest.
func (b *Book) BestBid() (LimitView, bool) {
	return insideView(b.bids)
}

// BestAsk returns the cached inside ask; see BestBid for staleness.
func (b *Book) BestAsk() (LimitView, bool) {
	return insideView(b.asks)
}

func insideView(t *tree) (LimitView, bool) {
	l := t.inside.Load()
	if l == nil {
		return LimitView{}, false
	}
	return l.View(), true
}

// FindLimit reports the aggregates of one price level.
func (b *Book) FindLimit(side Side, price int64) (LimitView, bool) {
	l := b.sideTree(side).find(price)
	if l == nil {
		return LimitView{}, false
	}
	return l.View(), true
}

// FindOrder returns the resting order for id, or nil.
func (b *Book) FindOrder(id uint64) *Order {
	return b.orders.find(id)
}

// WalkBids visits bid levels best-first (descending price). Return
// false from fn to stop early. Emptied levels are visited too; they
// are never unlinked from the tree.
func (b *Book) WalkBids(fn func(*Limit) bool) {
	b.bids.descend(b.bids.root.Load(), fn)
}

// WalkAsks visits ask levels best-first (ascending price).
func (b *Book) WalkAsks(fn func(*Limit) bool) {
	b.asks.ascend(b.asks.root.Load(), fn)
}
