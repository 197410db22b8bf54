package snapshot

import "mako/infra/memory"

// Reader is a thin adapter over memory.ReaderEpoch: it only marks
// where a consistent read section begins and ends. Epoch advancement
// and reclamation live elsewhere.
type Reader struct {
	epoch *memory.ReaderEpoch
}

func NewReader() *Reader {
	return &Reader{epoch: memory.NewReaderEpoch()}
}

// Begin marks the start of a consistent read section.
func (r *Reader) Begin() {
	r.epoch.Enter()
}

// End marks the end of the read section.
func (r *Reader) End() {
	r.epoch.Exit()
}

// Epoch exposes the underlying epoch for the reclaimer.
func (r *Reader) Epoch() *memory.ReaderEpoch {
	return r.epoch
}
