package wal

import (
	"encoding/binary"
	"errors"
)

// Command payloads are fixed-width binary, not text: replay is on the
// boot path and must not depend on parsing ambiguity.

var ErrBadPayload = errors.New("wal: malformed command payload")

const (
	placePayloadLen  = 8 + 1 + 8 + 8 + 8 + 8
	cancelPayloadLen = 8
)

// PlaceCommand is the durable form of a new-order command. Side is
// the book's side constant narrowed to a byte.
type PlaceCommand struct {
	OrderID   uint64
	Side      uint8
	Price     int64
	Qty       int64
	EntryTime int64
	EventTime int64
}

type CancelCommand struct {
	OrderID uint64
}

func (c PlaceCommand) Encode() []byte {
	buf := make([]byte, placePayloadLen)
	binary.BigEndian.PutUint64(buf[0:8], c.OrderID)
	buf[8] = c.Side
	binary.BigEndian.PutUint64(buf[9:17], uint64(c.Price))
	binary.BigEndian.PutUint64(buf[17:25], uint64(c.Qty))
	binary.BigEndian.PutUint64(buf[25:33], uint64(c.EntryTime))
	binary.BigEndian.PutUint64(buf[33:41], uint64(c.EventTime))
	return buf
}

func DecodePlace(b []byte) (PlaceCommand, error) {
	if len(b) != placePayloadLen {
		return PlaceCommand{}, ErrBadPayload
	}
	return PlaceCommand{
		OrderID:   binary.BigEndian.Uint64(b[0:8]),
		Side:      b[8],
		Price:     int64(binary.BigEndian.Uint64(b[9:17])),
		Qty:       int64(binary.BigEndian.Uint64(b[17:25])),
		EntryTime: int64(binary.BigEndian.Uint64(b[25:33])),
		EventTime: int64(binary.BigEndian.Uint64(b[33:41])),
	}, nil
}

func (c CancelCommand) Encode() []byte {
	buf := make([]byte, cancelPayloadLen)
	binary.BigEndian.PutUint64(buf, c.OrderID)
	return buf
}

func DecodeCancel(b []byte) (CancelCommand, error) {
	if len(b) != cancelPayloadLen {
		return CancelCommand{}, ErrBadPayload
	}
	return CancelCommand{OrderID: binary.BigEndian.Uint64(b)}, nil
}
