// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByteReaderPassthrough(t *testing.T) {
	br := NewByteReader(false)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 0x0102030405060708)
	assert.Equal(t, uint64(0x0102030405060708), br.U64(buf))
	assert.Equal(t, uint32(0x05060708), br.U32(buf[4:]))
	assert.Equal(t, uint16(0x0708), br.U16(buf[6:]))
	assert.False(t, br.Swap())
}

func TestByteReaderSwap(t *testing.T) {
	br := NewByteReader(true)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 0x0102030405060708)
	assert.Equal(t, uint64(0x0807060504030201), br.U64(buf))
	assert.True(t, br.Swap())
}

func TestBitsRoundTrip(t *testing.T) {
	assert.Equal(t, uint16(0x1234), bits16(bits16(0x1234)))
	assert.Equal(t, uint32(0x12345678), bits32(bits32(0x12345678)))
	assert.Equal(t, uint64(0x0102030405060708), bits64(bits64(0x0102030405060708)))
}

func TestByteSwapBitsReversesWithinByte(t *testing.T) {
	// 0b10000000 -> 0b00000001 within the low byte.
	in := uint64(0x80)
	out := byteSwapBits(in)
	assert.Equal(t, uint64(0x01), out)
}

func TestReverseByte(t *testing.T) {
	assert.Equal(t, byte(0x01), reverseByte(0x80))
	assert.Equal(t, byte(0xFF), reverseByte(0xFF))
	assert.Equal(t, byte(0x00), reverseByte(0x00))
}
