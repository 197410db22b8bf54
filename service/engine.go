package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"mako/domain/book"
	"mako/infra/memory"
	"mako/infra/outbox"
	"mako/infra/sequence"
	"mako/infra/wal"
	"mako/snapshot"
)

// Engine coordinates the book with its durability and reclamation
// infrastructure. Commands may arrive from any number of goroutines:
// a single engine lock orders sequence issuance, the WAL append and
// the book mutation, so the log replays in sequence order and the
// retire ring sees one producer at a time. Queries never take the
// lock.
type Engine struct {
	book   *book.Book
	pool   *memory.Pool[book.Order]
	ring   *memory.RetireRing[book.Order]
	reader *snapshot.Reader
	seq    *sequence.Sequencer
	wal    *wal.WAL
	outbox *outbox.Outbox

	mu sync.Mutex
	// applied is the highest sequence whose command has finished its
	// book mutation. Snapshots cut at this watermark, never at the
	// issued sequence: an issued-but-unapplied command must stay in
	// the WAL's replayable suffix.
	applied atomic.Uint64
}

func NewEngine(
	b *book.Book,
	pool *memory.Pool[book.Order],
	ring *memory.RetireRing[book.Order],
	reader *snapshot.Reader,
	seq *sequence.Sequencer,
	w *wal.WAL,
	ob *outbox.Outbox,
) *Engine {
	e := &Engine{
		book:   b,
		pool:   pool,
		ring:   ring,
		reader: reader,
		seq:    seq,
		wal:    w,
		outbox: ob,
	}
	e.applied.Store(seq.Current())
	return e
}

// Event is the market-data payload stored in the outbox and published
// by the broadcaster.
type Event struct {
	V       int    `json:"v"`
	Type    string `json:"type"`
	OrderID uint64 `json:"order_id"`
	Side    string `json:"side,omitempty"`
	Price   int64  `json:"price,omitempty"`
	Qty     int64  `json:"qty,omitempty"`
	Seq     uint64 `json:"seq"`
}

// Removed reports what a cancel took out of the book.
type Removed struct {
	OrderID uint64
	Side    book.Side
	Price   int64
	Qty     int64
	Seq     uint64
}

// PlaceOrder logs, applies and announces a new resting order. The WAL
// append happens before the book mutation: a command that was never
// logged must never be visible.
func (e *Engine) PlaceOrder(id uint64, side book.Side, qty, price int64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.seq.Next()
	now := time.Now().UnixNano()

	cmd := wal.PlaceCommand{
		OrderID:   id,
		Side:      uint8(side),
		Price:     price,
		Qty:       qty,
		EntryTime: now,
		EventTime: now,
	}
	if err := e.wal.Append(wal.NewRecord(wal.RecordPlace, seq, cmd.Encode())); err != nil {
		return 0, fmt.Errorf("wal append: %w", err)
	}

	err := e.book.NewOrder(id, side, qty, price, now, now)
	// Rejected commands are accounted for too: the record is in the
	// WAL and replay rejects it the same way.
	e.applied.Store(seq)
	if err != nil {
		return 0, err
	}

	e.emit(Event{
		V:       1,
		Type:    "place",
		OrderID: id,
		Side:    side.String(),
		Price:   price,
		Qty:     qty,
		Seq:     seq,
	})
	return seq, nil
}

// CancelOrder removes a resting order and retires it for reuse once
// no snapshot reader can still hold it.
func (e *Engine) CancelOrder(id uint64) (Removed, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.seq.Next()

	cmd := wal.CancelCommand{OrderID: id}
	if err := e.wal.Append(wal.NewRecord(wal.RecordCancel, seq, cmd.Encode())); err != nil {
		return Removed{}, fmt.Errorf("wal append: %w", err)
	}

	o, err := e.book.Cancel(id)
	e.applied.Store(seq)
	if err != nil {
		return Removed{}, err
	}

	removed := Removed{
		OrderID: o.ID,
		Side:    o.Side,
		Price:   o.Price,
		Qty:     o.Qty,
		Seq:     seq,
	}

	e.emit(Event{
		V:       1,
		Type:    "cancel",
		OrderID: removed.OrderID,
		Side:    removed.Side.String(),
		Price:   removed.Price,
		Qty:     removed.Qty,
		Seq:     seq,
	})

	// A full ring just means the order is left to the garbage
	// collector instead of the pool.
	if !e.ring.Enqueue(o) {
		log.Warn().Uint64("order_id", id).Msg("retire ring full, dropping order to GC")
	}
	return removed, nil
}

func (e *Engine) emit(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Uint64("seq", ev.Seq).Msg("encode outbox event")
		return
	}
	if err := e.outbox.Put(ev.Seq, payload); err != nil {
		// The command already applied; delivery is at-least-once from
		// the outbox onward, so all we can do here is report.
		log.Error().Err(err).Uint64("seq", ev.Seq).Msg("store outbox event")
	}
}

// ---- queries ----

func (e *Engine) BestBid() (book.LimitView, bool) { return e.book.BestBid() }
func (e *Engine) BestAsk() (book.LimitView, bool) { return e.book.BestAsk() }

func (e *Engine) FindLimit(side book.Side, price int64) (book.LimitView, bool) {
	return e.book.FindLimit(side, price)
}

// DepthView is a point-in-time ladder of non-empty levels, best
// first on both sides.
type DepthView struct {
	Bids []book.LimitView
	Asks []book.LimitView
}

// Depth collects up to maxLevels non-empty levels per side inside an
// epoch read section. maxLevels <= 0 means no bound.
func (e *Engine) Depth(maxLevels int) DepthView {
	e.reader.Begin()
	defer e.reader.End()

	var d DepthView
	collect := func(out *[]book.LimitView) func(*book.Limit) bool {
		return func(l *book.Limit) bool {
			v := l.View()
			if v.Count == 0 {
				return true
			}
			*out = append(*out, v)
			return maxLevels <= 0 || len(*out) < maxLevels
		}
	}
	e.book.WalkBids(collect(&d.Bids))
	e.book.WalkAsks(collect(&d.Asks))
	return d
}

// AdvanceEpoch performs one reclamation pass. Intended to be driven
// by the reclaimer job.
func (e *Engine) AdvanceEpoch() {
	memory.Advance(e.ring, e.pool, e.reader.Epoch())
}
