package service

import (
	"errors"

	"github.com/rs/zerolog/log"

	"mako/domain/book"
	"mako/infra/sequence"
	"mako/infra/wal"
)

// Replay rebuilds book state from the entry WAL. Records at or below
// afterSeq (covered by a loaded snapshot) are skipped. Must complete
// before the engine accepts traffic.
//
// Commands are re-applied with their logged outcome tolerance:
// the WAL is written before validation, so a record the book rejected
// at runtime is rejected identically here and simply skipped.
func Replay(walDir string, afterSeq uint64, b *book.Book, seqGen *sequence.Sequencer) error {
	lastSeq, err := wal.Replay(walDir, func(rec *wal.Record) error {
		if rec.Seq <= afterSeq {
			return nil
		}

		switch rec.Type {
		case wal.RecordPlace:
			cmd, err := wal.DecodePlace(rec.Data)
			if err != nil {
				return err
			}
			err = b.NewOrder(cmd.OrderID, book.Side(cmd.Side), cmd.Qty, cmd.Price, cmd.EntryTime, cmd.EventTime)
			if err != nil {
				log.Debug().Err(err).Uint64("seq", rec.Seq).Msg("replay: place skipped")
			}

		case wal.RecordCancel:
			cmd, err := wal.DecodeCancel(rec.Data)
			if err != nil {
				return err
			}
			if _, err := b.Cancel(cmd.OrderID); err != nil && !errors.Is(err, book.ErrUnknownOrder) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if lastSeq < afterSeq {
		lastSeq = afterSeq
	}
	seqGen.Reset(lastSeq)

	log.Info().Uint64("last_seq", lastSeq).Msg("WAL replay complete")
	return nil
}
