package book

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeFindOrInsertIdempotent(t *testing.T) {
	tr := newTree(Ask, 16)

	l1 := tr.findOrInsert(100)
	l2 := tr.findOrInsert(100)
	require.Same(t, l1, l2, "one Limit object per price")
	assert.Equal(t, int64(100), l1.Price)
}

func TestTreeOrdering(t *testing.T) {
	tr := newTree(Ask, 16)
	for _, p := range []int64{50, 10, 90, 30, 70, 20, 80} {
		tr.findOrInsert(p)
	}

	var asc []int64
	tr.ascend(tr.root.Load(), func(l *Limit) bool {
		asc = append(asc, l.Price)
		return true
	})
	assert.Equal(t, []int64{10, 20, 30, 50, 70, 80, 90}, asc)

	var desc []int64
	tr.descend(tr.root.Load(), func(l *Limit) bool {
		desc = append(desc, l.Price)
		return true
	})
	assert.Equal(t, []int64{90, 80, 70, 50, 30, 20, 10}, desc)
}

func TestTreeConcurrentSamePriceSingleWinner(t *testing.T) {
	const n = 32
	tr := newTree(Ask, 16)

	results := make([]*Limit, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = tr.findOrInsert(20)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Same(t, results[0], results[i], "every caller must converge on the winner")
	}

	count := 0
	tr.ascend(tr.root.Load(), func(l *Limit) bool {
		if l.Price == 20 {
			count++
		}
		return true
	})
	assert.Equal(t, 1, count, "exactly one node with price 20 in the tree")
}

func TestTreeConcurrentDistinctPrices(t *testing.T) {
	const n = 128
	tr := newTree(Bid, 16)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(p int64) {
			defer wg.Done()
			tr.findOrInsert(p)
		}(int64(i + 1))
	}
	wg.Wait()

	var seen []int64
	tr.ascend(tr.root.Load(), func(l *Limit) bool {
		seen = append(seen, l.Price)
		return true
	})
	require.Len(t, seen, n)
	for i, p := range seen {
		assert.Equal(t, int64(i+1), p)
	}
}

func TestInsideMonotonicBid(t *testing.T) {
	tr := newTree(Bid, 16)

	tr.findOrInsert(10)
	require.Equal(t, int64(10), tr.inside.Load().Price)

	tr.findOrInsert(5) // less aggressive, no change
	assert.Equal(t, int64(10), tr.inside.Load().Price)

	tr.findOrInsert(12)
	assert.Equal(t, int64(12), tr.inside.Load().Price)
}

func TestInsideMonotonicAsk(t *testing.T) {
	tr := newTree(Ask, 16)

	tr.findOrInsert(100)
	tr.findOrInsert(110)
	assert.Equal(t, int64(100), tr.inside.Load().Price)

	tr.findOrInsert(95)
	assert.Equal(t, int64(95), tr.inside.Load().Price)
}

func TestTreeFindReadOnly(t *testing.T) {
	tr := newTree(Ask, 16)
	assert.Nil(t, tr.find(42))

	l := tr.findOrInsert(42)
	require.Same(t, l, tr.find(42))
	assert.Nil(t, tr.find(43), "find must never create")
}
