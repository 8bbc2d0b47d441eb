// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// A ByteReader decodes fixed-width values out of a borrowed byte range
// in a single, file-wide endianness. It never allocates and never
// retains its argument; every method is a pure function of (buf, swap).
//
// A ByteReader is a value type: copying it is cheap and safe.
type ByteReader struct {
	// swap is true if the file's byte order is the opposite of the
	// host's, and every multi-byte read must be reversed.
	swap bool
}

// NewByteReader returns a ByteReader configured once for a session:
// swap is true if the file was written in the non-host byte order.
func NewByteReader(swap bool) ByteReader {
	return ByteReader{swap: swap}
}

// Swap reports whether this ByteReader reverses multi-byte values.
func (b ByteReader) Swap() bool {
	return b.swap
}

// U16 decodes a uint16 from the first 2 bytes of buf.
func (b ByteReader) U16(buf []byte) uint16 {
	x := binary.LittleEndian.Uint16(buf)
	if b.swap {
		x = bits16(x)
	}
	return x
}

// U32 decodes a uint32 from the first 4 bytes of buf.
func (b ByteReader) U32(buf []byte) uint32 {
	x := binary.LittleEndian.Uint32(buf)
	if b.swap {
		x = bits32(x)
	}
	return x
}

// U64 decodes a uint64 from the first 8 bytes of buf.
func (b ByteReader) U64(buf []byte) uint64 {
	x := binary.LittleEndian.Uint64(buf)
	if b.swap {
		x = bits64(x)
	}
	return x
}

// I16, I32, I64 are the signed equivalents of U16, U32, U64.
func (b ByteReader) I16(buf []byte) int16 { return int16(b.U16(buf)) }
func (b ByteReader) I32(buf []byte) int32 { return int32(b.U32(buf)) }
func (b ByteReader) I64(buf []byte) int64 { return int64(b.U64(buf)) }

// F32 and F64 decode IEEE-754 floats.
func (b ByteReader) F32(buf []byte) float32 {
	return math.Float32frombits(b.U32(buf))
}

func (b ByteReader) F64(buf []byte) float64 {
	return math.Float64frombits(b.U64(buf))
}

// ReadGUIDBigEndian decodes the first 16 bytes of buf as a GUID using
// the Microsoft mixed-endian layout: the first three fields
// (Data1 uint32, Data2 uint16, Data3 uint16) are stored in the file's
// byte order, and the remaining 8 bytes (Data4) are a plain byte
// sequence, independent of file byte order. The result is canonical
// big-endian RFC 4122 byte order, suitable for uuid.UUID.
func (b ByteReader) ReadGUIDBigEndian(buf []byte) uuid.UUID {
	var out uuid.UUID
	binary.BigEndian.PutUint32(out[0:4], b.U32(buf[0:4]))
	binary.BigEndian.PutUint16(out[4:6], b.U16(buf[4:6]))
	binary.BigEndian.PutUint16(out[6:8], b.U16(buf[6:8]))
	copy(out[8:16], buf[8:16])
	return out
}

func bits16(x uint16) uint16 {
	return x<<8 | x>>8
}

func bits32(x uint32) uint32 {
	return x<<24 | (x&0xff00)<<8 | (x&0xff0000)>>8 | x>>24
}

func bits64(x uint64) uint64 {
	return uint64(bits32(uint32(x)))<<32 | uint64(bits32(uint32(x>>32)))
}

// byteSwapBits reverses the bits within each byte of x, without
// reordering the bytes themselves. This mirrors how a C bitfield
// packed into a little-endian word is laid out after a byte-swap: the
// bytes move, but the bit order within each byte (as the compiler
// assigned it) is preserved relative to the byte, which looks like a
// per-byte bit reversal once the bytes are swapped back to host order.
//
// See EventAttr.byteSwap and spec.md §4.1.
func byteSwapBits(x uint64) uint64 {
	var out uint64
	for i := 0; i < 8; i++ {
		b := byte(x >> (8 * i))
		out |= uint64(reverseByte(b)) << (8 * i)
	}
	return out
}

func reverseByte(b byte) byte {
	b = (b&0xf0)>>4 | (b&0x0f)<<4
	b = (b&0xcc)>>2 | (b&0x33)<<2
	b = (b&0xaa)>>1 | (b&0x55)<<1
	return b
}
