// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import "fmt"

// SessionInfo holds the file-wide decoding parameters established at
// open: byte order and, if the file recorded a clock-id/clock-data
// feature header, the offset between the sampling clock and wall
// clock. The byte order is fixed at open; in pipe mode the clock
// fields are filled in later by in-band HEADER_FEATURE records. See
// spec.md §3.
type SessionInfo struct {
	byteOrder ByteReader

	// clockIDValid is true if the file declared which clock was
	// used to timestamp samples (feature clock-id).
	clockIDValid bool
	clockID      int32

	// wallClockValid is true if the file recorded the offset
	// between its sampling clock and the wall clock (feature
	// clock-data).
	wallClockValid bool
	wallClockNS    uint64 // wall-clock time corresponding to timeZero
	timeZero       uint64 // sampling-clock reading at wallClockNS
	timeMult       uint32
	timeShift      uint32
}

// ByteOrder returns the ByteReader configured for this session. It
// never changes after open.
func (s *SessionInfo) ByteOrder() ByteReader {
	return s.byteOrder
}

// ClockID returns the clock-id used to timestamp samples, and whether
// the file recorded one at all.
func (s *SessionInfo) ClockID() (id int32, ok bool) {
	return s.clockID, s.clockIDValid
}

// WallClockTime converts a sample's raw 64-bit nanosecond timestamp
// into a (seconds, nanoseconds) wall-clock pair using this session's
// recorded clock offset. If no clock-data feature header was present,
// ok is false: the caller only has a clock-relative timestamp, not a
// wall-clock one.
func (s *SessionInfo) WallClockTime(sampleNS uint64) (sec int64, nsec int64, ok bool) {
	if !s.wallClockValid {
		return 0, 0, false
	}
	// See perf_time_to_tsc / tsc_to_perf_time in tools/perf/util/tsc.c
	// for the inverse of this computation; here we go from the
	// recorded cycle-derived ns value back to wall-clock ns using
	// the linear model perf records: wall = wallClockNS +
	// ((sampleNS - timeZero) * timeMult) >> timeShift.
	delta := sampleNS - s.timeZero
	scaled := (delta * uint64(s.timeMult)) >> s.timeShift
	wall := s.wallClockNS + scaled
	return int64(wall / 1e9), int64(wall % 1e9), true
}

func (s *SessionInfo) String() string {
	if !s.clockIDValid {
		return "SessionInfo{clock:unknown}"
	}
	return fmt.Sprintf("SessionInfo{clock:%d wallClock:%v}", s.clockID, s.wallClockValid)
}
