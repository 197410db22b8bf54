// Package sequence issues the strictly monotonic engine sequence
// numbers stamped onto WAL records and outbox events.
package sequence

import "sync/atomic"

type Sequencer struct {
	last atomic.Uint64
}

// New starts issuing after start; pass 0 on a fresh boot, or the last
// replayed sequence after WAL recovery.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued sequence number.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Reset jumps the sequencer forward after replay. It must not be
// called once traffic is flowing.
func (s *Sequencer) Reset(v uint64) {
	s.last.Store(v)
}
