package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mako/domain/book"
)

func TestRetireRingBasic(t *testing.T) {
	r := NewRetireRing[book.Order](4)
	o1 := &book.Order{ID: 1}
	o2 := &book.Order{ID: 2}

	require.True(t, r.Enqueue(o1))
	require.True(t, r.Enqueue(o2))
	assert.Equal(t, 2, r.Len())

	assert.Same(t, o1, r.Dequeue())
	assert.Same(t, o2, r.Dequeue())
	assert.Nil(t, r.Dequeue(), "empty ring returns nil")
}

func TestRetireRingFull(t *testing.T) {
	r := NewRetireRing[book.Order](2)
	require.True(t, r.Enqueue(&book.Order{ID: 1}))
	require.True(t, r.Enqueue(&book.Order{ID: 2}))
	assert.False(t, r.Enqueue(&book.Order{ID: 3}), "full ring rejects")

	_ = r.Dequeue()
	assert.True(t, r.Enqueue(&book.Order{ID: 3}), "space frees after dequeue")
}

func TestRetireRingRejectsBadSize(t *testing.T) {
	assert.Panics(t, func() { NewRetireRing[book.Order](3) })
	assert.Panics(t, func() { NewRetireRing[book.Order](0) })
}

func TestAdvanceReclaimsWhenNoReaders(t *testing.T) {
	ring := NewRetireRing[book.Order](8)
	pool := NewPool(func() *book.Order { return new(book.Order) })

	retired := &book.Order{ID: 42}
	require.True(t, ring.Enqueue(retired))

	Advance(ring, pool)
	assert.Equal(t, 0, ring.Len(), "retired object reclaimed")
}

func TestAdvanceDefersWhileReaderActive(t *testing.T) {
	ring := NewRetireRing[book.Order](8)
	pool := NewPool(func() *book.Order { return new(book.Order) })
	reader := NewReaderEpoch()

	require.True(t, ring.Enqueue(&book.Order{ID: 1}))

	reader.Enter()
	Advance(ring, pool, reader)
	assert.Equal(t, 1, ring.Len(), "active reader blocks reuse")

	reader.Exit()
	Advance(ring, pool, reader)
	assert.Equal(t, 0, ring.Len(), "reclaimed once the reader left")
}

func TestEpochAdvances(t *testing.T) {
	ring := NewRetireRing[book.Order](2)
	pool := NewPool(func() *book.Order { return new(book.Order) })

	before := Epoch()
	Advance(ring, pool)
	assert.Greater(t, Epoch(), before)
}
