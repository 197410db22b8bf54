package snapshot

import "time"

type Snapshot struct {
	Seq     uint64
	Created time.Time
	Orders  []OrderEntry
}

// OrderEntry is the durable form of one resting order.
type OrderEntry struct {
	ID        uint64
	Side      int
	Price     int64
	Qty       int64
	EntryTime int64
	EventTime int64
}
