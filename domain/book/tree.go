package book

import "sync/atomic"

// tree is one side's price-level index: an unbalanced BST keyed by
// price with CAS insertion, a price hash index short-circuiting the
// walk, and the cached inside pointer for that side.
type tree struct {
	side   Side
	root   atomic.Pointer[Limit]
	inside atomic.Pointer[Limit]
	prices *index[Limit]
}

func newTree(side Side, priceBuckets int) *tree {
	return &tree{
		side:   side,
		prices: newIndex[Limit](priceBuckets),
	}
}

// findOrInsert returns the unique level for price, creating it if
// needed. Concurrent callers for the same price converge on a single
// winner; losers discard their freshly allocated node and retry the
// walk from the root, which is safe because an unlinked node was
// never visible to anyone.
func (t *tree) findOrInsert(price int64) *Limit {
	if l := t.prices.find(uint64(price)); l != nil {
		return l
	}

	for {
		var parent *Limit
		cur := t.root.Load()
		for cur != nil {
			if price == cur.Price {
				// The price index missed a recently linked node;
				// register it so the next caller takes the fast path.
				t.prices.insert(uint64(price), cur)
				return cur
			}
			parent = cur
			if price < cur.Price {
				cur = cur.left.Load()
			} else {
				cur = cur.right.Load()
			}
		}

		node := newLimit(price)

		if parent == nil {
			if t.root.CompareAndSwap(nil, node) {
				t.publish(node)
				return node
			}
			continue
		}

		slot := &parent.right
		if price < parent.Price {
			slot = &parent.left
		}
		if slot.CompareAndSwap(nil, node) {
			node.parent.Store(parent)
			t.publish(node)
			return node
		}
		// Lost the race for this slot; restart the whole walk.
	}
}

func (t *tree) publish(node *Limit) {
	t.updateInside(node)
	t.prices.insert(uint64(node.Price), node)
}

// find is the read-only lookup: price index first, tree walk second.
func (t *tree) find(price int64) *Limit {
	if l := t.prices.find(uint64(price)); l != nil {
		return l
	}
	cur := t.root.Load()
	for cur != nil {
		if price == cur.Price {
			return cur
		}
		if price < cur.Price {
			cur = cur.left.Load()
		} else {
			cur = cur.right.Load()
		}
	}
	return nil
}

// updateInside swings the cached inside pointer toward candidate if
// candidate is strictly more aggressive. The cache is a high-water
// mark: it advances monotonically under inserts and is never walked
// back when the referenced level empties.
func (t *tree) updateInside(candidate *Limit) {
	for {
		cur := t.inside.Load()
		if cur != nil && !t.moreAggressive(candidate.Price, cur.Price) {
			return
		}
		if t.inside.CompareAndSwap(cur, candidate) {
			return
		}
	}
}

func (t *tree) moreAggressive(a, b int64) bool {
	if t.side == Bid {
		return a > b
	}
	return a < b
}

// ascend visits levels in increasing price order.
func (t *tree) ascend(n *Limit, fn func(*Limit) bool) bool {
	if n == nil {
		return true
	}
	if !t.ascend(n.left.Load(), fn) {
		return false
	}
	if !fn(n) {
		return false
	}
	return t.ascend(n.right.Load(), fn)
}

// descend visits levels in decreasing price order.
func (t *tree) descend(n *Limit, fn func(*Limit) bool) bool {
	if n == nil {
		return true
	}
	if !t.descend(n.right.Load(), fn) {
		return false
	}
	if !fn(n) {
		return false
	}
	return t.descend(n.left.Load(), fn)
}
