// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

//go:generate stringer -type=RecordType

// A RecordType identifies the kind of a perf.data event record. Values
// below recordTypeUserStart come from the kernel's perf_event_type
// enum and may carry a sample_id trailer; values at or above it are
// perf-tool-private "user" records (perf_user_event_type) that never
// do (spec.md §4.9).
type RecordType uint32

const (
	RecordTypeMmap RecordType = 1 + iota
	RecordTypeLost
	RecordTypeComm
	RecordTypeExit
	RecordTypeThrottle
	RecordTypeUnthrottle
	RecordTypeFork
	RecordTypeRead
	RecordTypeSample
	RecordTypeMmap2
	RecordTypeAux
	RecordTypeItraceStart
	RecordTypeLostSamples
	RecordTypeSwitch
	RecordTypeSwitchCPUWide
	RecordTypeNamespaces
	RecordTypeKsymbol
	RecordTypeBPFEvent
	RecordTypeCGroup
	RecordTypeTextPoke
	RecordTypeAuxOutputHardwareID

	// recordTypeUserStart is USER_TYPE_START from spec.md §4.9:
	// records at or above this value never carry a sample_id
	// trailer, even if sample_id_all is set.
	recordTypeUserStart RecordType = 64

	RecordTypeHeaderAttr        RecordType = 64
	recordTypeHeaderEventType   RecordType = 65 // deprecated
	RecordTypeHeaderTracingData RecordType = 66
	RecordTypeHeaderBuildID     RecordType = 67
	RecordTypeFinishedRound     RecordType = 68
	recordTypeIDIndex           RecordType = 69
	RecordTypeAuxtraceInfo      RecordType = 70
	RecordTypeAuxtraceRecord    RecordType = 71
	recordTypeAuxtraceError     RecordType = 72
	recordTypeThreadMap         RecordType = 73
	recordTypeCPUMap            RecordType = 74
	recordTypeStatConfig        RecordType = 75
	recordTypeStat              RecordType = 76
	recordTypeStatRound         RecordType = 77
	recordTypeEventUpdate       RecordType = 78
	recordTypeTimeConv          RecordType = 79
	RecordTypeHeaderFeature     RecordType = 80
	recordTypeCompressed        RecordType = 81
	RecordTypeFinishedInit      RecordType = 82
)

// recordHeader is the 8-byte perf_event_header prefix of every
// record: type, misc flags, and total size including this header.
type recordHeader struct {
	Type RecordType
	Misc uint16
	Size uint16
}

type recordMisc uint16

const (
	recordMiscCPUModeMask recordMisc = 7
	recordMiscMmapData               = 1 << 13 // RecordTypeMmap*
	recordMiscCommExec               = 1 << 13 // RecordTypeComm
	recordMiscExactIP                = 1 << 14 // RecordTypeSample
	recordMiscSwitchOut              = 1 << 13 // RecordTypeSwitch*
	recordMiscMmapBuildID            = 1 << 14 // RecordTypeMmap2
)

// A CPUMode indicates the privilege level of a sample or event, taken
// from the low 3 bits of recordHeader.Misc.
type CPUMode uint16

const (
	CPUModeUnknown CPUMode = iota
	CPUModeKernel
	CPUModeUser
	CPUModeHypervisor
	CPUModeGuestKernel
	CPUModeGuestUser
)

// EventBytes is the immutable-looking, but aliased, view FileReader
// returns from ReadEvent: the 8-byte record header plus the record
// body. Span aliases FileReader's internal scratch buffer (file-order
// mode) or the current time-order round's buffer list (time-order
// mode) and is invalidated by the next ReadEvent call, or, in
// time-order mode, once the current round is fully drained. See
// spec.md §3 and §5.
type EventBytes struct {
	Header recordHeader
	Span   []byte // header + body; len(Span) == Header.Size
	Offset int64  // position of the record header: file offset (normal mode) or stream position (pipe mode); 0 in time-order mode
}

// Type returns the record's type.
func (e EventBytes) Type() RecordType {
	return e.Header.Type
}

// Body returns the record bytes past the 8-byte header.
func (e EventBytes) Body() []byte {
	return e.Span[8:]
}

// CPUMode decodes the CPU-mode bits of Header.Misc.
func (e EventBytes) CPUMode() CPUMode {
	return CPUMode(e.Header.Misc & uint16(recordMiscCPUModeMask))
}
