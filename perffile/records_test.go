// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBytesTypeAndBody(t *testing.T) {
	eb := EventBytes{
		Header: recordHeader{Type: RecordTypeSample, Misc: 0, Size: 12},
		Span:   []byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4},
	}
	assert.Equal(t, RecordTypeSample, eb.Type())
	assert.Equal(t, []byte{1, 2, 3, 4}, eb.Body())
}

func TestEventBytesCPUMode(t *testing.T) {
	cases := []struct {
		misc uint16
		want CPUMode
	}{
		{0, CPUModeUnknown},
		{1, CPUModeKernel},
		{2, CPUModeUser},
		{uint16(recordMiscExactIP) | 3, CPUModeHypervisor},
	}
	for _, c := range cases {
		eb := EventBytes{Header: recordHeader{Misc: c.misc}}
		assert.Equal(t, c.want, eb.CPUMode())
	}
}
