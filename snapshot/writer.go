package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"mako/domain/book"
)

const fileName = "snapshot.bin"

type Writer struct {
	Dir string
}

// Write walks both sides of the book and persists every resting
// order together with the sequence the snapshot is consistent up to.
// The write goes to a temp file first so a crash mid-write never
// clobbers the previous snapshot.
func (w *Writer) Write(seq uint64, b *book.Book) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}

	s := Snapshot{
		Seq:     seq,
		Created: time.Now(),
		Orders:  make([]OrderEntry, 0, 1024),
	}

	collect := func(l *book.Limit) bool {
		for o := l.Head(); o != nil; o = o.Next() {
			s.Orders = append(s.Orders, OrderEntry{
				ID:        o.ID,
				Side:      int(o.Side),
				Price:     o.Price,
				Qty:       o.Qty,
				EntryTime: o.EntryTime,
				EventTime: o.EventTime,
			})
		}
		return true
	}
	b.WalkBids(collect)
	b.WalkAsks(collect)

	tmp := filepath.Join(w.Dir, fileName+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(&s); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(w.Dir, fileName))
}
