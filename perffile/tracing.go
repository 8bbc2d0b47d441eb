// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/perfdecode/perfdata/perffile/tracefmt"
)

// tracingDataMagic is the 10-byte prefix of a HEADER_TRACING_DATA
// payload (spec.md §4.5): 0x17 0x08 0x44 "tracing".
var tracingDataMagic = [10]byte{0x17, 0x08, 0x44, 't', 'r', 'a', 'c', 'i', 'n', 'g'}

// commonTypeAnchor is the {offset, size} of the common_type field, as
// established by the first successfully parsed tracepoint format
// (spec.md §3). Every subsequent format's common_type must agree, or
// it is silently skipped.
type commonTypeAnchor struct {
	set    bool
	offset int
	size   int
}

func (a *commonTypeAnchor) matches(f tracefmt.FieldFormat) bool {
	if !a.set {
		return f.Size == 1 || f.Size == 2 || f.Size == 4
	}
	return f.Offset == a.offset && f.Size == a.size
}

func (a *commonTypeAnchor) observe(f tracefmt.FieldFormat) {
	if !a.set {
		a.set = true
		a.offset = f.Offset
		a.size = f.Size
	}
}

// tracingData is the fully parsed HEADER_TRACING_DATA blob.
type tracingData struct {
	version       int
	dataBigEndian bool
	longSize      int // 4 or 8
	pageSize      uint32

	headerPage  []byte
	headerEvent []byte // legacy; stored but unused for decoding

	ftraceFormats [][]byte // raw format text, one per ftrace builtin event

	// systems maps a tracepoint id (from the format's "ID:" line) to
	// its parsed field layout.
	systems map[uint64]*tracefmt.EventFormat

	kallsyms     []byte
	printk       []byte
	savedCmdline []byte

	anchor commonTypeAnchor
}

// parseTracingData parses a HEADER_TRACING_DATA payload per
// spec.md §4.5. formatCache deduplicates identical format-text blobs
// across tracepoints (common for auto-generated syscall tracepoints
// that share a body) by hashing the raw text with xxhash before
// invoking the (comparatively expensive) text parser.
func parseTracingData(raw []byte, formatCache map[uint64]*tracefmt.EventFormat) (*tracingData, error) {
	if len(raw) < len(tracingDataMagic) || string(raw[:len(tracingDataMagic)]) != string(tracingDataMagic[:]) {
		return nil, fmt.Errorf("%w: bad tracing-data magic", ErrInvalidData)
	}
	d := &bufDecoder{buf: raw[len(tracingDataMagic):], order: binary.LittleEndian}

	versionStr, err := d.cstring()
	if err != nil {
		return nil, fmt.Errorf("%w: tracing-data version: %v", ErrInvalidData, err)
	}
	version, err := parseVersion(versionStr)
	if err != nil {
		return nil, err
	}

	bigEndianByte, err := d.byte()
	if err != nil {
		return nil, err
	}
	td := &tracingData{version: version, dataBigEndian: bigEndianByte != 0, systems: make(map[uint64]*tracefmt.EventFormat)}
	if td.dataBigEndian {
		d.order = binary.BigEndian
	}

	longSize, err := d.byte()
	if err != nil {
		return nil, err
	}
	if longSize != 4 && longSize != 8 {
		return nil, fmt.Errorf("%w: tracing-data long_size %d", ErrInvalidData, longSize)
	}
	td.longSize = int(longSize)

	td.pageSize, err = d.u32()
	if err != nil {
		return nil, err
	}

	if err := expectLabel(d, "header_page"); err != nil {
		return nil, err
	}
	if td.headerPage, err = d.u64Section(); err != nil {
		return nil, err
	}

	if err := expectLabel(d, "header_event"); err != nil {
		return nil, err
	}
	if td.headerEvent, err = d.u64Section(); err != nil {
		return nil, err
	}

	ftraceCount, err := d.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < ftraceCount; i++ {
		section, err := d.u64Section()
		if err != nil {
			return nil, err
		}
		td.ftraceFormats = append(td.ftraceFormats, section)
	}

	systemCount, err := d.u32()
	if err != nil {
		return nil, err
	}
	longIs64 := td.longSize == 8
	for i := uint32(0); i < systemCount; i++ {
		name, err := d.cstring()
		if err != nil {
			return nil, err
		}
		eventCount, err := d.u32()
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < eventCount; j++ {
			text, err := d.u64Section()
			if err != nil {
				return nil, err
			}
			ef, ok := parseOneFormat(formatCache, longIs64, name, text)
			if !ok {
				continue
			}
			ct, hasCT := ef.CommonTypeField()
			if !hasCT || !td.anchor.matches(ct) {
				continue
			}
			td.anchor.observe(ct)
			td.systems[uint64(ef.ID)] = ef
		}
	}

	if td.kallsyms, err = d.u32Section(); err != nil {
		return nil, err
	}
	if td.printk, err = d.u32Section(); err != nil {
		return nil, err
	}
	if version >= 6 {
		if td.savedCmdline, err = d.u64Section(); err != nil {
			return nil, err
		}
	}

	return td, nil
}

// parseVersion converts the dotted/bare decimal version string (e.g.
// "0.6" or "6") into a comparable integer: the minor component, since
// every observed tracing-data version is "0.N". Falls back to parsing
// the whole string as an integer if there's no dot.
func parseVersion(s string) (int, error) {
	s = strings.TrimSpace(s)
	if major, minor, ok := strings.Cut(s, "."); ok {
		_ = major
		n, err := strconv.Atoi(minor)
		if err != nil {
			return 0, fmt.Errorf("%w: bad tracing-data version %q: %v", ErrInvalidData, s, err)
		}
		return n, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad tracing-data version %q: %v", ErrInvalidData, s, err)
	}
	return n, nil
}

// expectLabel consumes the nul-terminated label string that precedes
// each named section in the tracing-data blob (e.g. "header_page\0"),
// per spec.md §4.5 steps 5-6.
func expectLabel(d *bufDecoder, want string) error {
	got, err := d.cstring()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: expected tracing-data label %q, got %q", ErrInvalidData, want, got)
	}
	return nil
}

// parseOneFormat hashes text to consult formatCache before invoking
// tracefmt.ParseFormat; a cache hit skips the text parse entirely.
// Formats that fail to parse are skipped (spec.md §4.5 step 8: "A
// format that parses successfully contributes...").
func parseOneFormat(cache map[uint64]*tracefmt.EventFormat, longIs64 bool, systemName string, text []byte) (*tracefmt.EventFormat, bool) {
	h := xxhash.Sum64(text)
	if ef, ok := cache[h]; ok {
		return ef, true
	}
	ef, err := tracefmt.ParseFormat(longIs64, systemName, string(text))
	if err != nil {
		return nil, false
	}
	cache[h] = &ef
	return &ef, true
}

// bindTracepointFormats implements the back-fill described at the end
// of spec.md §4.5: every existing EventDesc of attr type tracepoint
// with no bound format looks up its attr Config() in td.systems.
func (td *tracingData) bindTracepointFormats(descs []*EventDesc) {
	for _, d := range descs {
		if d.Attr.Type() != EventTypeTracepoint {
			continue
		}
		if _, ok := d.Format(); ok {
			continue
		}
		if ef, ok := td.systems[d.Attr.Config()]; ok {
			d.setFormat(ef)
		}
	}
}

// TraceEventFormat is an alias so callers of EventDesc.Format don't
// need to import the tracefmt package directly for the common case of
// just reading field names and offsets.
type TraceEventFormat = tracefmt.EventFormat
