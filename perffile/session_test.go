// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionInfoClockIDAbsent(t *testing.T) {
	var s SessionInfo
	_, ok := s.ClockID()
	assert.False(t, ok)
	assert.Equal(t, "SessionInfo{clock:unknown}", s.String())
}

func TestSessionInfoWallClockTime(t *testing.T) {
	s := SessionInfo{
		wallClockValid: true,
		wallClockNS:    1_000_000_000,
		timeZero:       0,
		timeMult:       1 << 10,
		timeShift:      10,
	}
	sec, nsec, ok := s.WallClockTime(500)
	assert.True(t, ok)
	assert.Equal(t, int64(1), sec)
	assert.Equal(t, int64(500), nsec)
}

func TestSessionInfoWallClockTimeAbsent(t *testing.T) {
	var s SessionInfo
	_, _, ok := s.WallClockTime(123)
	assert.False(t, ok)
}

func TestSessionInfoByteOrder(t *testing.T) {
	s := SessionInfo{byteOrder: NewByteReader(true)}
	assert.True(t, s.ByteOrder().Swap())
}
