// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"encoding/binary"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ItemEncoding is the physical layout of a tracepoint field: how many
// bytes it occupies and whether it's a scalar, a fixed array, a
// nul-terminated string, or a length-prefixed string (spec.md §3,
// §4.10).
type ItemEncoding int

const (
	EncodingInvalid ItemEncoding = iota
	EncodingValue8
	EncodingValue16
	EncodingValue32
	EncodingValue64
	EncodingValue128
	EncodingStruct
	EncodingZStringChar8
	EncodingZStringChar16
	EncodingZStringChar32
	EncodingLen16StringChar8
	EncodingLen16StringChar16
	EncodingLen16StringChar32
)

// ItemFormat is the interpretation applied to an ItemEncoding's bytes:
// e.g. the same 4-byte value may format as an unsigned int, an errno,
// or an IPv4 address (spec.md §3, §4.10).
type ItemFormat int

const (
	FormatDefault ItemFormat = iota
	FormatUnsignedInt
	FormatSignedInt
	FormatHexInt
	FormatBoolean
	FormatFloat
	FormatErrno
	FormatTime
	FormatPID
	FormatPort
	FormatIPv4
	FormatIPv6
	FormatUUID
	FormatHexBytes
	FormatString8
	FormatStringUTF
	FormatStringUTFBOM
	FormatStringXML
	FormatStringJSON
)

// ItemType fully describes how to interpret the bytes of one
// tracepoint field or array element.
type ItemType struct {
	Encoding ItemEncoding
	Format   ItemFormat

	// FieldTag is the field's index within its EventFormat, used by
	// callers to correlate an ItemValue back to its FieldFormat.
	FieldTag int

	ElementSize      int // size of one element, in bytes
	ElementCount     int // 1 for scalars; >1 for fixed arrays
	StructFieldCount int // valid only for EncodingStruct

	byteOrder ByteReader
}

// ItemValue is a typed, zero-copy view over a single field or array
// element inside an event payload (spec.md §3, §4.10). Bytes aliases
// the caller-supplied payload slice and is only valid as long as that
// slice is.
type ItemValue struct {
	Bytes []byte
	Type  ItemType
}

// NewItemValue constructs an ItemValue over bytes, honoring the
// byte-length conventions from spec.md §4.10: scalar types get
// exactly ElementSize bytes, fixed arrays get ElementCount *
// ElementSize, and struct/complex-array types get no bytes at all
// (callers walk them with a separate enumerator).
func NewItemValue(bytes []byte, typ ItemType) ItemValue {
	switch typ.Encoding {
	case EncodingStruct:
		return ItemValue{Type: typ}
	default:
		if typ.ElementCount > 1 {
			n := typ.ElementCount * typ.ElementSize
			if n > len(bytes) {
				n = len(bytes)
			}
			return ItemValue{Bytes: bytes[:n], Type: typ}
		}
		n := typ.ElementSize
		if n > len(bytes) {
			n = len(bytes)
		}
		return ItemValue{Bytes: bytes[:n], Type: typ}
	}
}

// Uint returns the value's bytes interpreted as an unsigned integer in
// the session's byte order. Valid for EncodingValue{8,16,32,64}.
func (v ItemValue) Uint() uint64 {
	br := v.Type.byteOrder
	switch len(v.Bytes) {
	case 1:
		return uint64(v.Bytes[0])
	case 2:
		return uint64(br.U16(v.Bytes))
	case 4:
		return uint64(br.U32(v.Bytes))
	case 8:
		return br.U64(v.Bytes)
	default:
		return 0
	}
}

// Int returns the value's bytes interpreted as a signed integer in
// the session's byte order.
func (v ItemValue) Int() int64 {
	br := v.Type.byteOrder
	switch len(v.Bytes) {
	case 1:
		return int64(int8(v.Bytes[0]))
	case 2:
		return int64(br.I16(v.Bytes))
	case 4:
		return int64(br.I32(v.Bytes))
	case 8:
		return br.I64(v.Bytes)
	default:
		return 0
	}
}

// Bool interprets the value as a boolean: any nonzero value is true.
func (v ItemValue) Bool() bool { return v.Uint() != 0 }

// Float returns the value's bytes interpreted as an IEEE-754 float in
// the session's byte order.
func (v ItemValue) Float() float64 {
	br := v.Type.byteOrder
	switch len(v.Bytes) {
	case 4:
		return float64(br.F32(v.Bytes))
	case 8:
		return br.F64(v.Bytes)
	default:
		return 0
	}
}

// IPv4 reads the value's bytes as a big-endian (network order) IPv4
// address, ignoring the session's byte order: IP addresses are
// wire-format, not host-format (spec.md §4.10).
func (v ItemValue) IPv4() [4]byte {
	var out [4]byte
	copy(out[:], v.Bytes)
	return out
}

// IPv6 reads the value's bytes as a 16-byte IPv6 address, always in
// wire (big-endian) byte order.
func (v ItemValue) IPv6() [16]byte {
	var out [16]byte
	copy(out[:], v.Bytes)
	return out
}

// Port reads the value's bytes as a big-endian 16-bit port number,
// ignoring the session's byte order.
func (v ItemValue) Port() uint16 {
	if len(v.Bytes) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(v.Bytes)
}

// UUID interprets the value's 16 bytes as a GUID using the session's
// byte order for the mixed-endian Microsoft layout.
func (v ItemValue) UUID() uuid.UUID {
	if len(v.Bytes) < 16 {
		return uuid.UUID{}
	}
	return v.Type.byteOrder.ReadGUIDBigEndian(v.Bytes)
}

// HexBytes returns the raw bytes for hex-dump style formatting.
func (v ItemValue) HexBytes() []byte { return v.Bytes }

// stringEncoding identifies a detected or declared text encoding for
// a string field.
type stringEncoding int

const (
	stringLatin1 stringEncoding = iota
	stringUTF8
	stringUTF16LE
	stringUTF16BE
	stringUTF32LE
	stringUTF32BE
)

// getStringBytes implements spec.md §4.10's get_string_bytes: given
// the field's declared Format and the raw (nul-terminated or
// length-prefixed) bytes, determine the encoding and return the
// payload bytes with the BOM, if any, stripped.
func getStringBytes(format ItemFormat, raw []byte, byteOrder ByteReader) ([]byte, stringEncoding) {
	switch format {
	case FormatString8:
		return raw, stringLatin1
	case FormatStringUTFBOM, FormatStringXML, FormatStringJSON:
		if enc, n, ok := detectBOM(raw); ok {
			return raw[n:], enc
		}
		fallthrough
	default:
		return stringBytesByWidth(raw, byteOrder)
	}
}

// detectBOM recognizes the five byte-order marks named in spec.md
// §8's BOM-detection invariant and returns the encoding and the
// length of the BOM itself.
func detectBOM(b []byte) (enc stringEncoding, bomLen int, ok bool) {
	switch {
	case len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF:
		return stringUTF8, 3, true
	case len(b) >= 4 && b[0] == 0xFF && b[1] == 0xFE && b[2] == 0x00 && b[3] == 0x00:
		return stringUTF32LE, 4, true
	case len(b) >= 4 && b[0] == 0x00 && b[1] == 0x00 && b[2] == 0xFE && b[3] == 0xFF:
		return stringUTF32BE, 4, true
	case len(b) >= 2 && b[0] == 0xFF && b[1] == 0xFE:
		return stringUTF16LE, 2, true
	case len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF:
		return stringUTF16BE, 2, true
	default:
		return 0, 0, false
	}
}

// stringBytesByWidth picks UTF-8/16/32 based on the element width
// implied by the field's encoding width and the session byte order,
// used when no BOM is present (spec.md §4.10 fallback).
func stringBytesByWidth(raw []byte, byteOrder ByteReader) ([]byte, stringEncoding) {
	if byteOrder.Swap() {
		return raw, stringUTF16BE
	}
	return raw, stringUTF8
}

// DecodeString converts the raw string bytes returned by
// getStringBytes into a Go string, transcoding UTF-16/UTF-32 and
// Latin-1 to UTF-8 as needed.
func DecodeString(format ItemFormat, raw []byte, byteOrder ByteReader) string {
	b, enc := getStringBytes(format, raw, byteOrder)
	switch enc {
	case stringLatin1:
		return latin1ToUTF8(b)
	case stringUTF16LE:
		return utf16ToUTF8(b, binary.LittleEndian)
	case stringUTF16BE:
		return utf16ToUTF8(b, binary.BigEndian)
	case stringUTF32LE:
		return utf32ToUTF8(b, binary.LittleEndian)
	case stringUTF32BE:
		return utf32ToUTF8(b, binary.BigEndian)
	default:
		return string(b)
	}
}

func latin1ToUTF8(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func utf16ToUTF8(b []byte, order binary.ByteOrder) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = order.Uint16(b[i*2:])
	}
	return string(utf16.Decode(units))
}

func utf32ToUTF8(b []byte, order binary.ByteOrder) string {
	buf := make([]byte, 0, len(b))
	for i := 0; i+4 <= len(b); i += 4 {
		r := rune(order.Uint32(b[i:]))
		tmp := make([]byte, utf8.UTFMax)
		n := utf8.EncodeRune(tmp, r)
		buf = append(buf, tmp[:n]...)
	}
	return string(buf)
}
