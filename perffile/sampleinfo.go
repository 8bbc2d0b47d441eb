// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import "fmt"

// byteRange is an {offset, length} pair into an EventBytes.Span,
// used for the variable-length sections of a sample (read-values,
// callchain, raw payload) that GetSampleInfo locates but does not
// copy (spec.md §3, §4.10).
type byteRange struct {
	Offset int
	Length int
}

// Slice returns the bytes this range covers within span.
func (br byteRange) Slice(span []byte) []byte {
	return span[br.Offset : br.Offset+br.Length]
}

// SampleEventInfo is the decoded fixed-width fields of a SAMPLE
// record, plus the byte ranges of its variable-width sections
// (spec.md §4.8). Only the fields selected by the owning attr's
// SampleFormat are meaningful; others are zero.
type SampleEventInfo struct {
	ID       uint64
	IP       uint64
	PID, TID int32
	Time     uint64
	Addr     uint64
	StreamID uint64
	CPU      uint32
	Period   uint64

	ReadRange      byteRange
	CallchainRange byteRange
	RawRange       byteRange

	span []byte
}

// ReadValues returns the raw READ-format bytes (spec.md §4.8); the
// caller interprets them according to the owning attr's ReadFormat.
func (s *SampleEventInfo) ReadValues() []byte { return s.ReadRange.Slice(s.span) }

// Callchain returns the raw ip-array bytes of the CALLCHAIN section,
// excluding the leading nr count.
func (s *SampleEventInfo) Callchain() []byte { return s.CallchainRange.Slice(s.span) }

// RawPayload returns the tracepoint's raw field bytes.
func (s *SampleEventInfo) RawPayload() []byte { return s.RawRange.Slice(s.span) }

const maxReadNR = 0x10000 / 8

// GetSampleInfo decodes the fixed- and variable-width fields of a
// SAMPLE record (spec.md §4.8). eb must have Type() ==
// RecordTypeSample.
func (r *FileReader) GetSampleInfo(eb EventBytes) (*SampleEventInfo, error) {
	desc, ok := r.descForSample(eb)
	if !ok {
		return nil, ErrIdNotFound
	}
	sf := desc.Attr.SampleFormat()
	rf := desc.Attr.ReadFormat()
	br := r.session.byteOrder

	body := eb.Body()
	cursor := 0
	need := func(n int) error {
		if cursor+n > len(body) {
			return fmt.Errorf("%w: sample truncated at offset %d, need %d more bytes", ErrInvalidData, cursor, n)
		}
		return nil
	}

	info := &SampleEventInfo{span: eb.Span}

	if sf&SampleFormatIdentifier != 0 {
		if err := need(8); err != nil {
			return nil, err
		}
		info.ID = br.U64(body[cursor:])
		cursor += 8
	}
	if sf&SampleFormatIP != 0 {
		if err := need(8); err != nil {
			return nil, err
		}
		info.IP = br.U64(body[cursor:])
		cursor += 8
	}
	if sf&SampleFormatTID != 0 {
		if err := need(8); err != nil {
			return nil, err
		}
		info.PID = br.I32(body[cursor:])
		info.TID = br.I32(body[cursor+4:])
		cursor += 8
	}
	if sf&SampleFormatTime != 0 {
		if err := need(8); err != nil {
			return nil, err
		}
		info.Time = br.U64(body[cursor:])
		cursor += 8
	}
	if sf&SampleFormatAddr != 0 {
		if err := need(8); err != nil {
			return nil, err
		}
		info.Addr = br.U64(body[cursor:])
		cursor += 8
	}
	if sf&SampleFormatID != 0 {
		if err := need(8); err != nil {
			return nil, err
		}
		if sf&SampleFormatIdentifier == 0 {
			info.ID = br.U64(body[cursor:])
		}
		cursor += 8
	}
	if sf&SampleFormatStreamID != 0 {
		if err := need(8); err != nil {
			return nil, err
		}
		info.StreamID = br.U64(body[cursor:])
		cursor += 8
	}
	if sf&SampleFormatCPU != 0 {
		if err := need(8); err != nil {
			return nil, err
		}
		info.CPU = br.U32(body[cursor:])
		cursor += 8
	}
	if sf&SampleFormatPeriod != 0 {
		if err := need(8); err != nil {
			return nil, err
		}
		info.Period = br.U64(body[cursor:])
		cursor += 8
	}
	if sf&SampleFormatRead != 0 {
		n, err := readReadFormatSize(rf, body, &cursor, br)
		if err != nil {
			return nil, err
		}
		info.ReadRange = byteRange{Offset: cursor + 8, Length: n}
		cursor += n
	}
	if sf&SampleFormatCallchain != 0 {
		if err := need(8); err != nil {
			return nil, err
		}
		nr := br.U64(body[cursor:])
		cursor += 8
		n := int(nr) * 8
		if err := need(n); err != nil {
			return nil, err
		}
		info.CallchainRange = byteRange{Offset: cursor + 8, Length: n}
		cursor += n
	}
	if sf&SampleFormatRaw != 0 {
		if err := need(4); err != nil {
			return nil, err
		}
		size := int(br.U32(body[cursor:]))
		cursor += 4
		if err := need(size); err != nil {
			return nil, err
		}
		info.RawRange = byteRange{Offset: cursor + 8, Length: size}
		cursor += size
		cursor = alignUp8(cursor)
	}

	return info, nil
}

// readReadFormatSize implements the READ-format size computation from
// spec.md §4.8. The returned byte count covers the whole READ
// section, including a group's leading "nr" word; cursor is not
// advanced (the caller does that based on the returned byte count).
func readReadFormatSize(rf ReadFormat, body []byte, cursor *int, br ByteReader) (int, error) {
	const supported = ReadFormatTotalTimeEnabled | ReadFormatTotalTimeRunning | ReadFormatID | ReadFormatGroup
	if rf&^supported != 0 {
		return 0, ErrNotSupported
	}
	if rf&ReadFormatGroup == 0 {
		n := 1 + popcount64(uint64(rf&(ReadFormatTotalTimeEnabled|ReadFormatTotalTimeRunning|ReadFormatID)))
		size := n * 8
		if *cursor+size > len(body) {
			return 0, fmt.Errorf("%w: read-format truncated", ErrInvalidData)
		}
		return size, nil
	}
	if *cursor+8 > len(body) {
		return 0, fmt.Errorf("%w: read-format nr truncated", ErrInvalidData)
	}
	nr := br.U64(body[*cursor:])
	if nr >= maxReadNR {
		return 0, fmt.Errorf("%w: read-format nr %d exceeds limit", ErrInvalidData, nr)
	}
	staticItems := 1 + popcount64(uint64(rf&(ReadFormatTotalTimeEnabled|ReadFormatTotalTimeRunning)))
	dynItems := 1 + popcount64(uint64(rf&ReadFormatID))
	size := 8 * (staticItems + int(nr)*dynItems)
	if *cursor+size > len(body) {
		return 0, fmt.Errorf("%w: read-format truncated", ErrInvalidData)
	}
	return size, nil
}

func alignUp8(n int) int { return (n + 7) &^ 7 }

// descForSample resolves eb's owning EventDesc using the session's
// sample-id offset, without performing the full field walk.
func (r *FileReader) descForSample(eb EventBytes) (*EventDesc, bool) {
	if r.offsets.sampleIDOffset < 0 {
		if d := r.soleDesc(); d != nil {
			return d, true
		}
		return nil, false
	}
	body := eb.Body()
	off := r.offsets.sampleIDOffset
	if off+8 > len(body) {
		return nil, false
	}
	id := r.session.byteOrder.U64(body[off:])
	return r.ids.lookup(id)
}

func (r *FileReader) soleDesc() *EventDesc {
	all := r.ids.all()
	if len(all) == 1 {
		return all[0]
	}
	return nil
}

// NonSampleEventInfo is the decoded sample-id trailer of a non-sample
// record (spec.md §4.9).
type NonSampleEventInfo struct {
	ID       uint64
	Time     uint64
	CPU      uint32
	StreamID uint64
}

// GetNonSampleInfo decodes the sample-id trailer of a non-sample
// record by walking backward from the record end (spec.md §4.9).
// Records whose type is at or above recordTypeUserStart never carry
// this suffix.
func (r *FileReader) GetNonSampleInfo(eb EventBytes) (*NonSampleEventInfo, error) {
	if uint32(eb.Type()) >= uint32(recordTypeUserStart) {
		return nil, ErrIdNotFound
	}
	desc, ok := r.descForNonSample(eb)
	if !ok {
		return nil, ErrIdNotFound
	}
	sf := desc.Attr.SampleFormat()
	br := r.session.byteOrder
	span := eb.Span
	end := len(span)

	info := &NonSampleEventInfo{}

	// Walk backward: IDENTIFIER (the last u64, if present), then
	// StreamID, CPU, the ID slot and Time; TID is not decoded since
	// NonSampleEventInfo has no pid/tid.
	pos := end
	if sf&SampleFormatIdentifier != 0 {
		pos -= 8
	}
	if sf&SampleFormatStreamID != 0 {
		if pos-8 < 0 {
			return nil, fmt.Errorf("%w: truncated sample-id trailer", ErrInvalidData)
		}
		pos -= 8
		info.StreamID = br.U64(span[pos:])
	}
	if sf&SampleFormatCPU != 0 {
		if pos-8 < 0 {
			return nil, fmt.Errorf("%w: truncated sample-id trailer", ErrInvalidData)
		}
		pos -= 8
		info.CPU = br.U32(span[pos:])
	}
	if sf&SampleFormatID != 0 {
		if pos-8 < 0 {
			return nil, fmt.Errorf("%w: truncated sample-id trailer", ErrInvalidData)
		}
		pos -= 8
		if sf&SampleFormatIdentifier == 0 {
			info.ID = br.U64(span[pos:])
		}
	}
	if sf&SampleFormatTime != 0 {
		if pos-8 < 0 {
			return nil, fmt.Errorf("%w: truncated sample-id trailer", ErrInvalidData)
		}
		pos -= 8
		info.Time = br.U64(span[pos:])
	}
	if sf&SampleFormatIdentifier != 0 {
		if end-8 < 0 {
			return nil, fmt.Errorf("%w: truncated sample-id trailer", ErrInvalidData)
		}
		info.ID = br.U64(span[end-8:])
	}

	return info, nil
}

func (r *FileReader) descForNonSample(eb EventBytes) (*EventDesc, bool) {
	if r.offsets.nonsampleIDOffset != -1 {
		end := len(eb.Span)
		off := end + r.offsets.nonsampleIDOffset
		if off >= 0 && off+8 <= end {
			id := r.session.byteOrder.U64(eb.Span[off:])
			return r.ids.lookup(id)
		}
	}
	return r.soleDesc(), r.soleDesc() != nil
}
