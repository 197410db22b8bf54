package service

import (
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"mako/snapshot"
)

// RunReclaimer advances the reclamation epoch on a fixed cadence.
func (e *Engine) RunReclaimer(t *tomb.Tomb, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			e.AdvanceEpoch()
		}
	}
}

// RunSnapshots periodically persists the book, then truncates the
// entry WAL and garbage-collects acked outbox events up to the
// snapshotted sequence.
func (e *Engine) RunSnapshots(t *tomb.Tomb, dir string, interval time.Duration) error {
	w := &snapshot.Writer{Dir: dir}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			e.snapshotOnce(w)
		}
	}
}

// snapshotOnce cuts at the applied watermark, not the issued
// sequence: every command at or below the cut has finished its book
// mutation, so the walk cannot miss it. Orders applied after the cut
// may be over-included; replay rejects them as duplicates.
func (e *Engine) snapshotOnce(w *snapshot.Writer) {
	seq := e.applied.Load()

	e.reader.Begin()
	err := w.Write(seq, e.book)
	e.reader.End()
	if err != nil {
		log.Error().Err(err).Msg("snapshot write failed")
		return
	}

	if err := e.wal.TruncateBefore(seq); err != nil {
		log.Warn().Err(err).Msg("WAL truncate failed")
	}
	if err := e.outbox.GC(seq); err != nil {
		log.Warn().Err(err).Msg("outbox GC failed")
	}
	log.Info().Uint64("seq", seq).Msg("snapshot written")
}
