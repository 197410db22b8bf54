// Package memory provides the reclamation hooks for logically removed
// book objects: a typed free pool, an SPSC retire ring, and a minimal
// epoch scheme deciding when a retired object can re-enter the pool.
//
// The Go runtime already guarantees a retired order is never freed
// under a concurrent reader; the epoch gate additionally guarantees it
// is never *reused* while a snapshot reader that could still reach it
// is in flight.
package memory

import "sync/atomic"

// globalEpoch increases on every reclamation pass.
var globalEpoch atomic.Uint64

const inactive = ^uint64(0)

// ReaderEpoch marks when a reader entered a read section.
type ReaderEpoch struct {
	epoch atomic.Uint64
}

func NewReaderEpoch() *ReaderEpoch {
	r := &ReaderEpoch{}
	r.epoch.Store(inactive)
	return r
}

func (r *ReaderEpoch) Enter() {
	r.epoch.Store(globalEpoch.Load())
}

func (r *ReaderEpoch) Exit() {
	r.epoch.Store(inactive)
}

func (r *ReaderEpoch) value() uint64 {
	return r.epoch.Load()
}

// Epoch returns the current global epoch, for tests and diagnostics.
func Epoch() uint64 {
	return globalEpoch.Load()
}

// Advance bumps the global epoch and moves retired objects back into
// the pool while no registered reader is inside a read section. If a
// reader is active the pass stops before touching the ring; the ring
// is FIFO, so nothing in it can be safe while the oldest is not.
func Advance[T any](ring *RetireRing[T], pool *Pool[T], readers ...*ReaderEpoch) {
	globalEpoch.Add(1)

	if minReaderEpoch(readers...) != inactive {
		return
	}

	for {
		obj := ring.Dequeue()
		if obj == nil {
			return
		}
		pool.Put(obj)
	}
}

func minReaderEpoch(rs ...*ReaderEpoch) uint64 {
	min := inactive
	for _, r := range rs {
		if r == nil {
			continue
		}
		if v := r.value(); v < min {
			min = v
		}
	}
	return min
}
