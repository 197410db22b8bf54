// Package outbox is the durable market-data outbox: every accepted
// book mutation leaves one seq-keyed event here, and the broadcaster
// drains pending events to Kafka with at-least-once delivery. State
// survives restarts, so an event is never lost between the engine and
// the broker.
package outbox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

var ErrNotFound = errors.New("outbox: event not found")

const (
	keyPrefix = "event/"
	headerLen = 1 + 4 + 8
)

// Event is one stored outbox entry.
type Event struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// value encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeValue(e Event) []byte {
	buf := make([]byte, headerLen+len(e.Payload))
	buf[0] = byte(e.State)
	binary.BigEndian.PutUint32(buf[1:5], e.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(e.LastAttempt))
	copy(buf[headerLen:], e.Payload)
	return buf
}

func decodeValue(seq uint64, b []byte) (Event, error) {
	if len(b) < headerLen {
		return Event{}, errors.New("outbox: truncated event record")
	}
	payload := make([]byte, len(b)-headerLen)
	copy(payload, b[headerLen:])
	return Event{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false,
	})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Put stores a new pending event under seq.
func (o *Outbox) Put(seq uint64, payload []byte) error {
	e := Event{Seq: seq, State: StateNew, Payload: payload}
	return o.db.Set(keyFor(seq), encodeValue(e), pebble.Sync)
}

// MarkSent transitions an event to SENT and bumps its retry counter.
func (o *Outbox) MarkSent(seq uint64) error {
	return o.transition(seq, StateSent)
}

// MarkAcked transitions an event to ACKED after broker confirmation.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.transition(seq, StateAcked)
}

func (o *Outbox) transition(seq uint64, to State) error {
	e, err := o.Get(seq)
	if err != nil {
		return err
	}
	e.State = to
	if to == StateSent {
		e.Retries++
	}
	e.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(seq), encodeValue(e), pebble.Sync)
}

func (o *Outbox) Get(seq uint64) (Event, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	defer closer.Close()
	return decodeValue(seq, val)
}

// ScanPending visits every event not yet ACKED, in sequence order.
// SENT events are revisited too: a crash between send and ack means
// the broker may or may not have the message, and at-least-once
// resolves that by resending.
func (o *Outbox) ScanPending(fn func(Event) error) error {
	return o.scan(func(e Event) error {
		if e.State == StateAcked {
			return nil
		}
		return fn(e)
	})
}

// GC removes ACKED events with sequence <= upto.
func (o *Outbox) GC(upto uint64) error {
	return o.scan(func(e Event) error {
		if e.State == StateAcked && e.Seq <= upto {
			return o.db.Delete(keyFor(e.Seq), pebble.NoSync)
		}
		return nil
	})
}

func (o *Outbox) scan(fn func(Event) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		e, err := decodeValue(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(b[len(keyPrefix):]), "%d", &seq)
	return seq, err
}
