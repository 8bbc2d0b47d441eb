// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"bytes"
	"testing"
)

// FuzzReadEvent feeds arbitrary byte streams through pipe-mode decoding
// and exercises every record's GetSampleInfo/GetNonSampleInfo. The
// decoder must never panic on corrupted input; any malformed record
// should surface as an error.
func FuzzReadEvent(f *testing.F) {
	var minimal bytes.Buffer
	minimal.Write(pipeFileHeader())
	minimal.Write(buildRecord(RecordTypeFinishedInit, 0, nil))
	f.Add(minimal.Bytes())

	attr := buildAttrBytes(EventTypeHardware, 0,
		SampleFormatIdentifier|SampleFormatIP|SampleFormatTime|SampleFormatTID,
		0, 0)
	var withAttrAndSample bytes.Buffer
	withAttrAndSample.Write(pipeFileHeader())
	withAttrAndSample.Write(buildRecord(RecordTypeHeaderAttr, 0, attr))
	// identifier, ip, pid, tid, time
	sampleBody := make([]byte, 0, 32)
	sampleBody = append(sampleBody, le8(0x1)...)
	sampleBody = append(sampleBody, le8(0xdeadbeef)...)
	sampleBody = append(sampleBody, le4(1)...)
	sampleBody = append(sampleBody, le4(2)...)
	sampleBody = append(sampleBody, le8(12345)...)
	withAttrAndSample.Write(buildRecord(RecordTypeSample, 0, sampleBody))
	withAttrAndSample.Write(buildRecord(RecordTypeFinishedRound, 0, nil))
	f.Add(withAttrAndSample.Bytes())

	var truncatedHeader bytes.Buffer
	truncatedHeader.Write([]byte{1, 2, 3})
	f.Add(truncatedHeader.Bytes())

	var badMagic bytes.Buffer
	badMagic.Write(le8(0xbadc0ffee0ddf00d))
	badMagic.Write(le8(pipeHeaderSize))
	f.Add(badMagic.Bytes())

	f.Fuzz(func(t *testing.T, data []byte) {
		r, err := NewReader(bytes.NewReader(data), Options{})
		if err != nil {
			return
		}
		defer r.Close()

		for i := 0; i < 1000; i++ {
			eb, err := r.ReadEvent()
			if err != nil {
				return
			}
			if eb.Type() == RecordTypeSample {
				_, _ = r.GetSampleInfo(eb)
			} else {
				_, _ = r.GetNonSampleInfo(eb)
			}
		}
	})
}

// FuzzParseCPUSet exercises the cpulist parser used by CPU topology
// feature headers (§6) against arbitrary strings.
func FuzzParseCPUSet(f *testing.F) {
	f.Add("0-2,4,6-7")
	f.Add("3,1,1-2")
	f.Add("")
	f.Add("x-y")
	f.Add("0-0-0")

	f.Fuzz(func(t *testing.T, s string) {
		set, err := parseCPUSet(s)
		if err != nil {
			return
		}
		_ = set.String()
	})
}
