package wire

import (
	"bytes"
	"encoding/binary"
)

// Every multi-byte integer is big-endian on the wire. Fields are read and
// written at explicit offsets; nothing assumes alignment.

func putU16(b []byte, off int, v uint16) { binary.BigEndian.PutUint16(b[off:off+2], v) }
func getU16(b []byte, off int) uint16    { return binary.BigEndian.Uint16(b[off : off+2]) }
func putU32(b []byte, off int, v uint32) { binary.BigEndian.PutUint32(b[off:off+4], v) }
func getU32(b []byte, off int) uint32    { return binary.BigEndian.Uint32(b[off : off+4]) }

func putI16(b []byte, off int, v int16) { putU16(b, off, uint16(v)) }
func getI16(b []byte, off int) int16    { return int16(getU16(b, off)) }
func putI32(b []byte, off int, v int32) { putU32(b, off, uint32(v)) }
func getI32(b []byte, off int) int32    { return int32(getU32(b, off)) }

// putString copies s into the n-byte field at off, truncating and leaving
// the remainder NUL.
func putString(b []byte, off, n int, s string) {
	field := b[off : off+n]
	clear(field)
	copy(field, s)
}

// getString returns the field at off up to its first NUL.
func getString(b []byte, off, n int) string {
	field := b[off : off+n]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// FrameLen returns the length declared in a frame header.
func FrameLen(header []byte) int {
	return int(getU16(header, 0))
}
