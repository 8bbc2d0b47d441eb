// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import "encoding/binary"

// attrSize is the fixed size FileReader stores every EventAttr at.
// Larger on-disk attrs are truncated; smaller ones are zero-extended
// (spec.md §6). This is the ABI v7 perf_event_attr layout.
const attrSize = 128

// Byte offsets of perf_event_attr fields within the 128-byte record.
// See spec.md §9: "treat the on-disk attr as a flat record with named
// views rather than a tagged union" — the overlapping fields
// (bp_addr/config1/kprobe_func/uprobe_path, etc.) are disambiguated by
// Type at the call site, never by the record itself.
const (
	attrOffType             = 0
	attrOffSize             = 4
	attrOffConfig           = 8
	attrOffSamplePeriod     = 16
	attrOffSampleType       = 24
	attrOffReadFormat       = 32
	attrOffOptions          = 40 // bit-packed flags; see byteSwap
	attrOffWakeup           = 48
	attrOffBPType           = 52
	attrOffConfig1          = 56 // aka bp_addr
	attrOffConfig2          = 64 // aka bp_len
	attrOffBranchSampleType = 72
	attrOffSampleRegsUser   = 80
	attrOffSampleStackUser  = 88
	attrOffClockID          = 92
	attrOffSampleRegsIntr   = 96
	attrOffAuxWatermark     = 104
	attrOffSampleMaxStack   = 108
	attrOffAuxSampleSize    = 112
	attrOffSigData          = 120
)

// EventType is the general class of a performance event
// (perf_type_id in include/uapi/linux/perf_event.h).
type EventType uint32

const (
	EventTypeHardware EventType = iota
	EventTypeSoftware
	EventTypeTracepoint
	EventTypeHWCache
	EventTypeRaw
	EventTypeBreakpoint
)

// SampleFormat is a bitmask of the fields recorded by a sample
// (perf_event_sample_format).
type SampleFormat uint64

const (
	SampleFormatIP SampleFormat = 1 << iota
	SampleFormatTID
	SampleFormatTime
	SampleFormatAddr
	SampleFormatRead
	SampleFormatCallchain
	SampleFormatID
	SampleFormatCPU
	SampleFormatPeriod
	SampleFormatStreamID
	SampleFormatRaw
	SampleFormatBranchStack
	SampleFormatRegsUser
	SampleFormatStackUser
	SampleFormatWeight
	SampleFormatDataSrc
	SampleFormatIdentifier
	SampleFormatTransaction
	SampleFormatRegsIntr
	SampleFormatPhysAddr
	SampleFormatAux
	SampleFormatCGroup
	SampleFormatDataPageSize
	SampleFormatCodePageSize
	SampleFormatWeightStruct
)

// ReadFormat is a bitmask of the fields recorded in a READ block
// (perf_event_read_format).
type ReadFormat uint64

const (
	ReadFormatTotalTimeEnabled ReadFormat = 1 << iota
	ReadFormatTotalTimeRunning
	ReadFormatID
	ReadFormatGroup
)

// EventFlags is a bitmask of boolean perf_event_attr options.
type EventFlags uint64

const (
	EventFlagDisabled EventFlags = 1 << iota
	EventFlagInherit
	EventFlagPinned
	EventFlagExclusive
	EventFlagExcludeUser
	EventFlagExcludeKernel
	EventFlagExcludeHypervisor
	EventFlagExcludeIdle
	EventFlagMmap
	EventFlagComm
	EventFlagFreq
	EventFlagInheritStat
	EventFlagEnableOnExec
	EventFlagTask
	EventFlagWakeupWatermark
	_ // precise_ip bit 0
	_ // precise_ip bit 1
	EventFlagMmapData
	EventFlagSampleIDAll
	EventFlagExcludeHost
	EventFlagExcludeGuest
	EventFlagExcludeCallchainKernel
	EventFlagExcludeCallchainUser
	EventFlagMmapInodeData
	EventFlagCommExec
	EventFlagClockID
	EventFlagContextSwitch
	EventFlagWriteBackward
	EventFlagNamespaces
	EventFlagKsymbol
	EventFlagAuxOutput
	EventFlagCGroup
)

// EventAttr is a strongly typed view of a kernel perf_event_attr
// record: the collection-time descriptor of one event source. It is
// constructed once per attr (from the attr table or a late
// HEADER_ATTR record) and is immutable thereafter (spec.md §3).
type EventAttr struct {
	raw  [attrSize]byte
	size uint32 // original on-disk size, before zero-extension
}

// newEventAttr copies up to attrSize bytes of src into a zeroed
// EventAttr (zero-extending short records, truncating long ones per
// spec.md §6), byte-swapping if byteOrder.Swap().
func newEventAttr(src []byte, byteOrder ByteReader) EventAttr {
	var a EventAttr
	n := len(src)
	if n > attrSize {
		n = attrSize
	}
	copy(a.raw[:n], src[:n])
	a.size = uint32(len(src))
	if byteOrder.Swap() {
		a.byteSwap()
	}
	return a
}

// byteSwap reverses every numeric field of the attr in place. The
// bit-packed options word additionally has its bits reversed within
// each byte (not across bytes): this mirrors how a C bitfield,
// written out in the compiler's bit order, ends up laid out after a
// naive byte-swap of the containing word. See spec.md §4.1, §9.
func (a *EventAttr) byteSwap() {
	order := binary.LittleEndian
	swap32 := func(off int) {
		order.PutUint32(a.raw[off:], bits32(order.Uint32(a.raw[off:])))
	}
	swap64 := func(off int) {
		order.PutUint64(a.raw[off:], bits64(order.Uint64(a.raw[off:])))
	}
	swap16 := func(off int) {
		order.PutUint16(a.raw[off:], bits16(order.Uint16(a.raw[off:])))
	}

	swap32(attrOffType)
	swap32(attrOffSize)
	swap64(attrOffConfig)
	swap64(attrOffSamplePeriod)
	swap64(attrOffSampleType)
	swap64(attrOffReadFormat)

	opts := order.Uint64(a.raw[attrOffOptions:])
	opts = bits64(opts)
	opts = byteSwapBits(opts)
	order.PutUint64(a.raw[attrOffOptions:], opts)

	swap32(attrOffWakeup)
	swap32(attrOffBPType)
	swap64(attrOffConfig1)
	swap64(attrOffConfig2)
	swap64(attrOffBranchSampleType)
	swap64(attrOffSampleRegsUser)
	swap32(attrOffSampleStackUser)
	swap32(attrOffClockID)
	swap64(attrOffSampleRegsIntr)
	swap32(attrOffAuxWatermark)
	swap16(attrOffSampleMaxStack)
	swap32(attrOffAuxSampleSize)
	swap64(attrOffSigData)
}

func (a *EventAttr) u32(off int) uint32 { return binary.LittleEndian.Uint32(a.raw[off:]) }
func (a *EventAttr) u64(off int) uint64 { return binary.LittleEndian.Uint64(a.raw[off:]) }

// Type returns the general class of this event.
func (a *EventAttr) Type() EventType { return EventType(a.u32(attrOffType)) }

// Config returns the event-type-specific identifier (e.g. tracepoint
// id, for Type() == EventTypeTracepoint).
func (a *EventAttr) Config() uint64 { return a.u64(attrOffConfig) }

// SampleFormat returns the mask of fields recorded by SAMPLE records
// for this event.
func (a *EventAttr) SampleFormat() SampleFormat { return SampleFormat(a.u64(attrOffSampleType)) }

// ReadFormat returns the mask of fields recorded by READ blocks for
// this event.
func (a *EventAttr) ReadFormat() ReadFormat { return ReadFormat(a.u64(attrOffReadFormat)) }

// Flags returns the event's boolean option bitfield.
func (a *EventAttr) Flags() EventFlags { return EventFlags(a.u64(attrOffOptions)) }

// SampleIDAll reports whether non-sample records for this event carry
// a sample_id trailer (spec.md §4.3).
func (a *EventAttr) SampleIDAll() bool { return a.Flags()&EventFlagSampleIDAll != 0 }

// Size returns the attr's original on-disk size, before any
// zero-extension to attrSize.
func (a *EventAttr) Size() uint32 { return a.size }

// BPType returns the breakpoint access type, for Type() ==
// EventTypeBreakpoint (aka perf_event_attr.bp_type).
func (a *EventAttr) BPType() uint32 { return a.u32(attrOffBPType) }

// Config1 returns the event's first type-specific extra field (aka
// perf_event_attr.config1, aka bp_addr for breakpoint events).
func (a *EventAttr) Config1() uint64 { return a.u64(attrOffConfig1) }

// Config2 returns the event's second type-specific extra field (aka
// perf_event_attr.config2, aka bp_len for breakpoint events).
func (a *EventAttr) Config2() uint64 { return a.u64(attrOffConfig2) }

// offsetTable is the scalar, file-wide set of byte offsets at which
// the sample-id and timestamp fields appear in SAMPLE and non-sample
// records. Every attr added to a FileReader must agree on all four
// values (spec.md §3, §4.3).
type offsetTable struct {
	set bool

	sampleIDOffset      int // -1 if not present
	nonsampleIDOffset   int // -1 if not present; negative, relative to record end
	sampleTimeOffset    int
	nonsampleTimeOffset int
}

// sampleIDOffset returns the byte offset (from byte 8 of the record,
// i.e. past the 8-byte event header) of the sample-id u64 field in a
// SAMPLE record with this sample format, or -1 if none is present.
// See spec.md §4.3.
func (s SampleFormat) sampleIDOffset() int {
	if s&SampleFormatIdentifier != 0 {
		return 0
	}
	if s&SampleFormatID == 0 {
		return -1
	}
	off := 0
	for _, bit := range [...]SampleFormat{SampleFormatIP, SampleFormatTID, SampleFormatTime, SampleFormatAddr} {
		if s&bit != 0 {
			off += 8
		}
	}
	return off
}

// nonsampleIDOffset returns the byte offset, measured backward from
// the end of a non-sample record, of the sample-id u64 field, or -1
// if none is present. See spec.md §4.3.
func (s SampleFormat) nonsampleIDOffset() int {
	if s&SampleFormatIdentifier != 0 {
		return -8
	}
	if s&SampleFormatID == 0 {
		return -1
	}
	off := 0
	for _, bit := range [...]SampleFormat{SampleFormatCPU, SampleFormatStreamID} {
		if s&bit != 0 {
			off -= 8
		}
	}
	return off - 8
}

// sampleTimeOffset mirrors sampleIDOffset for the TIME field.
func (s SampleFormat) sampleTimeOffset() int {
	if s&SampleFormatTime == 0 {
		return -1
	}
	off := 0
	for _, bit := range [...]SampleFormat{SampleFormatIP, SampleFormatTID} {
		if s&bit != 0 {
			off += 8
		}
	}
	if s&SampleFormatIdentifier != 0 {
		off += 8
	}
	return off
}

// nonsampleTimeOffset mirrors nonsampleIDOffset for the TIME field.
func (s SampleFormat) nonsampleTimeOffset() int {
	if s&SampleFormatTime == 0 {
		return -1
	}
	off := 0
	for _, bit := range [...]SampleFormat{SampleFormatCPU, SampleFormatStreamID, SampleFormatID} {
		if s&bit != 0 {
			off -= 8
		}
	}
	if s&SampleFormatIdentifier != 0 {
		off -= 8
	}
	return off - 8
}

// trailerBytes returns the length of the sample_id trailer appended
// to non-sample records when sample_id_all is set.
func (s SampleFormat) trailerBytes() int {
	s &= SampleFormatTID | SampleFormatTime | SampleFormatID | SampleFormatStreamID | SampleFormatCPU | SampleFormatIdentifier
	return 8 * popcount64(uint64(s))
}

func popcount64(x uint64) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}
