// Package endian provides byte-order-aware primitives for reading the fixed-width integer
// and floating point fields that make up a SAS7BDAT file.
//
// SAS7BDAT files declare their own byte order in the header (spec.md 4.1); every other
// component reads through the EndianEngine discovered there rather than assuming the host's
// native order.
package endian

import (
	"encoding/binary"
	"math"
)

// EndianEngine combines ByteOrder and AppendByteOrder from the standard library into a single
// interface, satisfied directly by binary.LittleEndian and binary.BigEndian.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// LittleEndian returns the little-endian engine.
func LittleEndian() EndianEngine {
	return binary.LittleEndian
}

// BigEndian returns the big-endian engine.
func BigEndian() EndianEngine {
	return binary.BigEndian
}

// ForByte picks the engine from the header's endianness byte: 0x01 means little-endian,
// anything else means big-endian (spec.md 4.1).
func ForByte(b byte) EndianEngine {
	if b == 0x01 {
		return LittleEndian()
	}

	return BigEndian()
}

// ReadUint reads an unsigned integer of the given width (1, 2, 4, or 8 bytes) from buf at off
// using engine's byte order. It is the width-generic counterpart of binary.ByteOrder.Uint64,
// needed because SAS7BDAT widths vary with architecture (int_width) and per-field packing.
func ReadUint(buf []byte, off, width int, engine EndianEngine) (uint64, bool) {
	if off < 0 || width < 0 || off+width > len(buf) {
		return 0, false
	}

	switch width {
	case 1:
		return uint64(buf[off]), true
	case 2:
		return uint64(engine.Uint16(buf[off : off+2])), true
	case 4:
		return uint64(engine.Uint32(buf[off : off+4])), true
	case 8:
		return engine.Uint64(buf[off : off+8]), true
	default:
		return 0, false
	}
}

// ReadInt reads a signed integer of the given width (1, 2, 4, or 8 bytes), sign-extending
// from the narrower unsigned read. Used for page type, which is a signed 2-byte field
// (spec.md 4.2).
func ReadInt(buf []byte, off, width int, engine EndianEngine) (int64, bool) {
	u, ok := ReadUint(buf, off, width, engine)
	if !ok {
		return 0, false
	}

	switch width {
	case 1:
		return int64(int8(u)), true
	case 2:
		return int64(int16(u)), true
	case 4:
		return int64(int32(u)), true
	case 8:
		return int64(u), true
	default:
		return 0, false
	}
}

// ReadFloat64 reads an 8-byte IEEE-754 double from buf at off using engine's byte order.
func ReadFloat64(buf []byte, off int, engine EndianEngine) (float64, bool) {
	u, ok := ReadUint(buf, off, 8, engine)
	if !ok {
		return 0, false
	}

	return math.Float64frombits(u), true
}
