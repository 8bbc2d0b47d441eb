// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfdecode/perfdata/perffile/tracefmt"
)

const testSchedSwitchFormat = `name: sched_switch
ID: 301
format:
	field:unsigned short common_type;	offset:0;	size:2;	signed:0;
	field:unsigned char common_flags;	offset:2;	size:1;	signed:0;
	field:unsigned char common_preempt_count;	offset:3;	size:1;	signed:0;
	field:int common_pid;	offset:4;	size:4;	signed:1;

	field:char prev_comm[16];	offset:8;	size:16;	signed:0;
	field:pid_t prev_pid;	offset:24;	size:4;	signed:1;

print fmt: "prev_comm=%s prev_pid=%d"
`

// buildTracingDataBlob assembles a minimal, well-formed
// HEADER_TRACING_DATA payload (spec.md §4.5) carrying a single system
// with a single tracepoint format, for use as test fixture data.
func buildTracingDataBlob(t *testing.T, systemName string, formatText string) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(tracingDataMagic[:])
	buf.WriteString("0.6")
	buf.WriteByte(0)
	buf.WriteByte(0) // little-endian
	buf.WriteByte(8) // long_size

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], 4096)
	buf.Write(u32[:]) // page_size

	writeCString := func(s string) {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	writeU64Section := func(b []byte) {
		var u64 [8]byte
		binary.LittleEndian.PutUint64(u64[:], uint64(len(b)))
		buf.Write(u64[:])
		buf.Write(b)
	}
	writeU32Section := func(b []byte) {
		var u32 [4]byte
		binary.LittleEndian.PutUint32(u32[:], uint32(len(b)))
		buf.Write(u32[:])
		buf.Write(b)
	}
	writeU32 := func(v uint32) {
		var u32 [4]byte
		binary.LittleEndian.PutUint32(u32[:], v)
		buf.Write(u32[:])
	}

	writeCString("header_page")
	writeU64Section(nil)
	writeCString("header_event")
	writeU64Section(nil)

	writeU32(0) // ftrace format count

	writeU32(1) // system count
	writeCString(systemName)
	writeU32(1) // event count in this system
	writeU64Section([]byte(formatText))

	writeU32Section(nil) // kallsyms
	writeU32Section(nil) // printk
	writeU64Section(nil) // saved_cmdline (version >= 6)

	return buf.Bytes()
}

func TestParseTracingDataMinimal(t *testing.T) {
	blob := buildTracingDataBlob(t, "sched", testSchedSwitchFormat)
	cache := make(map[uint64]*tracefmt.EventFormat)

	td, err := parseTracingData(blob, cache)
	require.NoError(t, err)
	assert.Equal(t, 6, td.version)
	assert.False(t, td.dataBigEndian)
	assert.Equal(t, 8, td.longSize)
	assert.Equal(t, uint32(4096), td.pageSize)

	ef, ok := td.systems[301]
	require.True(t, ok)
	assert.Equal(t, "sched_switch", ef.Name)
}

func TestParseTracingDataBadMagic(t *testing.T) {
	_, err := parseTracingData([]byte("not tracing data at all"), make(map[uint64]*tracefmt.EventFormat))
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestParseTracingDataFormatCacheHit(t *testing.T) {
	cache := make(map[uint64]*tracefmt.EventFormat)
	blob := buildTracingDataBlob(t, "sched", testSchedSwitchFormat)

	_, err := parseTracingData(blob, cache)
	require.NoError(t, err)
	require.Len(t, cache, 1)

	// Parsing an identical format text a second time must reuse the
	// cached *EventFormat rather than allocate a new one.
	ef, ok := parseOneFormat(cache, true, "sched", []byte(testSchedSwitchFormat))
	require.True(t, ok)
	assert.Same(t, cache[xxhash.Sum64String(testSchedSwitchFormat)], ef)
}

func TestCommonTypeAnchorMismatchSkipsFormat(t *testing.T) {
	const mismatched = `name: other_event
ID: 55
format:
	field:unsigned int common_type;	offset:0;	size:4;	signed:0;
	field:unsigned char common_flags;	offset:4;	size:1;	signed:0;

print fmt: "x"
`
	blob := buildTracingDataBlob(t, "sched", testSchedSwitchFormat)
	cache := make(map[uint64]*tracefmt.EventFormat)
	td, err := parseTracingData(blob, cache)
	require.NoError(t, err)
	require.Len(t, td.systems, 1)

	// A second, independent parse establishes its own anchor; simulate
	// the mismatch check directly against an anchor already observed
	// at size 2 (as sched_switch's common_type is).
	ef, err := tracefmt.ParseFormat(true, "x", mismatched)
	require.NoError(t, err)
	ct, ok := ef.CommonTypeField()
	require.True(t, ok)
	assert.False(t, td.anchor.matches(ct))
}

func TestBindTracepointFormats(t *testing.T) {
	blob := buildTracingDataBlob(t, "sched", testSchedSwitchFormat)
	cache := make(map[uint64]*tracefmt.EventFormat)
	td, err := parseTracingData(blob, cache)
	require.NoError(t, err)

	desc := &EventDesc{Attr: makeTracepointAttr(301)}
	td.bindTracepointFormats([]*EventDesc{desc})

	f, ok := desc.Format()
	require.True(t, ok)
	assert.Equal(t, "sched_switch", f.Name)
}

func makeTracepointAttr(config uint64) EventAttr {
	raw := make([]byte, attrSize)
	binary.LittleEndian.PutUint32(raw[attrOffType:], uint32(EventTypeTracepoint))
	binary.LittleEndian.PutUint64(raw[attrOffConfig:], config)
	return newEventAttr(raw, NewByteReader(false))
}
