package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"mako/domain/book"
)

// Load rebuilds resting orders from the snapshot file, if one exists,
// and returns the sequence the book is now consistent up to. A
// missing snapshot is a fresh boot, not an error.
func Load(dir string, b *book.Book) (uint64, error) {
	f, err := os.Open(filepath.Join(dir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return 0, err
	}

	for _, e := range s.Orders {
		err := b.NewOrder(e.ID, book.Side(e.Side), e.Qty, e.Price, e.EntryTime, e.EventTime)
		if err != nil {
			return 0, err
		}
	}

	return s.Seq, nil
}
