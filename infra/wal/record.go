// Package wal is the segmented entry write-ahead log. Every accepted
// command is framed, checksummed and appended before it mutates the
// book, so a restart can rebuild in-memory state by replay.
//
// Frame layout, big-endian:
//
//	[type:1][seq:8][time:8][len:4][payload][crc:4]
//
// The CRC covers header and payload.
package wal

import (
	"hash/crc32"
	"time"
)

type RecordType uint8

const (
	RecordPlace RecordType = iota
	RecordCancel
)

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

func checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
