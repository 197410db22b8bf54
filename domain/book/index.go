package book

import "sync/atomic"

// index is a fixed-bucket lock-free hash map with logical deletion.
//
// insert prepends a fresh entry to the bucket chain and never checks
// for duplicates; with duplicate keys the newest entry is visited
// first. erase clears an entry's value in place; entries are never
// unlinked or freed, so chains only ever grow. The bucket count is
// fixed at construction.
type index[T any] struct {
	buckets []atomic.Pointer[indexEntry[T]]
	mask    uint64
}

type indexEntry[T any] struct {
	key  uint64
	val  atomic.Pointer[T]
	next *indexEntry[T]
}

// newIndex requires a power-of-two bucket count.
func newIndex[T any](buckets int) *index[T] {
	if buckets <= 0 || buckets&(buckets-1) != 0 {
		panic("book: index bucket count must be a power of two")
	}
	return &index[T]{
		buckets: make([]atomic.Pointer[indexEntry[T]], buckets),
		mask:    uint64(buckets) - 1,
	}
}

func (ix *index[T]) insert(key uint64, v *T) {
	e := &indexEntry[T]{key: key}
	e.val.Store(v)

	head := &ix.buckets[mix64(key)&ix.mask]
	for {
		old := head.Load()
		e.next = old
		if head.CompareAndSwap(old, e) {
			return
		}
	}
}

// find returns the newest live value for key, or nil.
func (ix *index[T]) find(key uint64) *T {
	for e := ix.buckets[mix64(key)&ix.mask].Load(); e != nil; e = e.next {
		if e.key != key {
			continue
		}
		if v := e.val.Load(); v != nil {
			return v
		}
	}
	return nil
}

// erase logically deletes one live entry for key and returns its
// value, or nil if no live entry exists. With duplicate keys exactly
// one entry is cleared per call.
func (ix *index[T]) erase(key uint64) *T {
	for e := ix.buckets[mix64(key)&ix.mask].Load(); e != nil; e = e.next {
		if e.key != key {
			continue
		}
		for {
			v := e.val.Load()
			if v == nil {
				break // lost to a concurrent erase, try the next entry
			}
			if e.val.CompareAndSwap(v, nil) {
				return v
			}
		}
	}
	return nil
}

// mix64 is the splitmix64 finalizer; order ids and tick prices are
// near-sequential, so they need scrambling before masking.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
