// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func le8(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func le4(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

// buildAttrBytes lays out a 128-byte perf_event_attr record in native
// (little-endian) byte order for test fixtures.
func buildAttrBytes(typ EventType, config uint64, sampleType SampleFormat, readFormat ReadFormat, flags EventFlags) []byte {
	raw := make([]byte, attrSize)
	copy(raw[attrOffType:], le4(uint32(typ)))
	copy(raw[attrOffConfig:], le8(config))
	copy(raw[attrOffSampleType:], le8(uint64(sampleType)))
	copy(raw[attrOffReadFormat:], le8(uint64(readFormat)))
	copy(raw[attrOffOptions:], le8(uint64(flags)))
	return raw
}

// buildRecord assembles a record's 8-byte header plus body in native
// byte order.
func buildRecord(typ RecordType, misc uint16, body []byte) []byte {
	out := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint32(out[0:4], uint32(typ))
	binary.LittleEndian.PutUint16(out[4:6], misc)
	binary.LittleEndian.PutUint16(out[6:8], uint16(8+len(body)))
	copy(out[8:], body)
	return out
}

func pipeFileHeader() []byte {
	var h [pipeHeaderSize]byte
	binary.LittleEndian.PutUint64(h[0:8], magicLE)
	binary.LittleEndian.PutUint64(h[8:16], pipeHeaderSize)
	return h[:]
}

// buildNormalFile assembles a complete normal-mode perf.data file with
// no feature headers: a 104-byte header, an attr table (attr + ids
// descriptor per entry), the concatenated ids sections, and the data
// section (spec.md §4.2).
func buildNormalFile(attrs [][]byte, ids [][]uint64, data []byte) []byte {
	const attrRecordSize = attrSize + 16
	const headerSize = normalHeaderSize

	attrsOffset := int64(headerSize)
	attrsSize := int64(len(attrs)) * attrRecordSize

	idsOffset := attrsOffset + attrsSize
	idsSizes := make([]int64, len(ids))
	idsOffsets := make([]int64, len(ids))
	off := idsOffset
	for i, idList := range ids {
		idsOffsets[i] = off
		idsSizes[i] = int64(len(idList)) * 8
		off += idsSizes[i]
	}
	dataOffset := off
	dataSize := int64(len(data))

	var buf bytes.Buffer
	buf.Write(le8(magicLE))
	buf.Write(le8(uint64(headerSize)))
	buf.Write(le8(uint64(attrRecordSize)))
	buf.Write(le8(uint64(attrsOffset)))
	buf.Write(le8(uint64(attrsSize)))
	buf.Write(le8(uint64(dataOffset)))
	buf.Write(le8(uint64(dataSize)))
	buf.Write(make([]byte, 16)) // event_types section, unused
	buf.Write(make([]byte, 32)) // feature bitmap, no headers set

	for i, attr := range attrs {
		buf.Write(attr)
		buf.Write(le8(uint64(idsOffsets[i])))
		buf.Write(le8(uint64(idsSizes[i])))
	}
	for _, idList := range ids {
		for _, id := range idList {
			buf.Write(le8(id))
		}
	}
	buf.Write(data)

	return buf.Bytes()
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "perf.data")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestPipeModeMinimalTrace(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(pipeFileHeader())
	buf.Write(buildRecord(RecordTypeFinishedInit, 0, nil))

	r, err := NewReader(bytes.NewReader(buf.Bytes()), Options{})
	require.NoError(t, err)
	defer r.Close()

	eb, err := r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, RecordTypeFinishedInit, eb.Type())

	_, err = r.ReadEvent()
	assert.ErrorIs(t, err, ErrEndOfFile)
}

func TestNormalModeTwoAttrsSharedOffsets(t *testing.T) {
	sampleType := SampleFormatIdentifier | SampleFormatIP | SampleFormatTime
	attrA := buildAttrBytes(EventTypeHardware, 1, sampleType, 0, 0)
	attrB := buildAttrBytes(EventTypeHardware, 2, sampleType, 0, 0)

	file := buildNormalFile([][]byte{attrA, attrB}, [][]uint64{{0x11}, {0x22}}, nil)
	path := writeTempFile(t, file)

	r, err := Open(path, Options{})
	require.NoError(t, err)
	defer r.Close()

	descA, ok := r.EventDescByID(0x11)
	require.True(t, ok)
	assert.Equal(t, uint64(1), descA.Attr.Config())

	descB, ok := r.EventDescByID(0x22)
	require.True(t, ok)
	assert.Equal(t, uint64(2), descB.Attr.Config())

	assert.Len(t, r.EventDescs(), 2)
}

func TestNormalModeOffsetDisagreementFailsOpen(t *testing.T) {
	attrA := buildAttrBytes(EventTypeHardware, 1, SampleFormatIdentifier, 0, 0)
	attrB := buildAttrBytes(EventTypeHardware, 2, SampleFormatID|SampleFormatIP, 0, 0)

	file := buildNormalFile([][]byte{attrA, attrB}, [][]uint64{{0x11}, {0x22}}, nil)
	path := writeTempFile(t, file)

	_, err := Open(path, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestTimeOrderedReorderAcrossRound(t *testing.T) {
	attr := buildAttrBytes(EventTypeHardware, 0, SampleFormatTime, 0, 0)

	var buf bytes.Buffer
	buf.Write(pipeFileHeader())
	buf.Write(buildRecord(RecordTypeHeaderAttr, 0, attr))
	buf.Write(buildRecord(RecordTypeSample, 0, le8(30)))
	buf.Write(buildRecord(RecordTypeSample, 0, le8(10)))
	buf.Write(buildRecord(RecordTypeSample, 0, le8(20)))
	buf.Write(buildRecord(RecordTypeFinishedRound, 0, nil))
	buf.Write(buildRecord(RecordTypeSample, 0, le8(5)))

	r, err := NewReader(bytes.NewReader(buf.Bytes()), Options{EventOrder: EventOrderTime})
	require.NoError(t, err)
	defer r.Close()

	sampleTime := func(eb EventBytes) uint64 {
		return binary.LittleEndian.Uint64(eb.Body())
	}

	eb, err := r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, RecordTypeHeaderAttr, eb.Type())

	var gotTimes []uint64
	for i := 0; i < 3; i++ {
		eb, err := r.ReadEvent()
		require.NoError(t, err)
		require.Equal(t, RecordTypeSample, eb.Type())
		gotTimes = append(gotTimes, sampleTime(eb))
	}
	assert.Equal(t, []uint64{10, 20, 30}, gotTimes)

	eb, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, RecordTypeFinishedRound, eb.Type())

	eb, err = r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, RecordTypeSample, eb.Type())
	assert.Equal(t, uint64(5), sampleTime(eb))

	_, err = r.ReadEvent()
	assert.ErrorIs(t, err, ErrEndOfFile)
}

func TestGroupedReadFormatSize(t *testing.T) {
	attr := newEventAttr(
		buildAttrBytes(EventTypeHardware, 0, SampleFormatIdentifier|SampleFormatRead,
			ReadFormatGroup|ReadFormatID|ReadFormatTotalTimeEnabled, 0),
		NewByteReader(false))

	r := &FileReader{ids: newIDIndex()}
	r.session.byteOrder = NewByteReader(false)
	r.ids.add(&EventDesc{Attr: attr})

	body := make([]byte, 8+8+48)                 // identifier + 48-byte read block (nr, time_enabled, 2 * (value+id)) + 8 spare
	binary.LittleEndian.PutUint64(body[8:16], 2) // nr = 2
	span := append([]byte{0, 0, 0, 0, 0, 0, 0, 0}, body...)
	eb := EventBytes{Header: recordHeader{Type: RecordTypeSample, Size: uint16(len(span))}, Span: span}

	info, err := r.GetSampleInfo(eb)
	require.NoError(t, err)
	assert.Equal(t, 48, info.ReadRange.Length)
}

func TestGroupedReadFormatOverflowRejected(t *testing.T) {
	attr := newEventAttr(
		buildAttrBytes(EventTypeHardware, 0, SampleFormatIdentifier|SampleFormatRead,
			ReadFormatGroup|ReadFormatID|ReadFormatTotalTimeEnabled, 0),
		NewByteReader(false))

	r := &FileReader{ids: newIDIndex()}
	r.session.byteOrder = NewByteReader(false)
	r.ids.add(&EventDesc{Attr: attr})

	body := make([]byte, 16)
	binary.LittleEndian.PutUint64(body[8:16], 0x2000) // nr == maxReadNR, the first rejected value
	span := append(make([]byte, 8), body...)
	eb := EventBytes{Header: recordHeader{Type: RecordTypeSample, Size: uint16(len(span))}, Span: span}

	_, err := r.GetSampleInfo(eb)
	assert.ErrorIs(t, err, ErrInvalidData)
}
