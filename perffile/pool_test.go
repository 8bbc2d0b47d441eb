// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPooledBufferStartsEmpty(t *testing.T) {
	pb := GetPooledBuffer()
	defer pb.Release()
	assert.Equal(t, 0, pb.Len())
	assert.GreaterOrEqual(t, pb.Cap(), poolMinBufferSize)
}

func TestPooledBufferReserveKeepsPrefix(t *testing.T) {
	pb := GetPooledBuffer()
	defer pb.Release()
	pb.SetLen(4)
	copy(pb.Bytes(), []byte{1, 2, 3, 4})

	pb.Reserve(1 << 20)
	assert.GreaterOrEqual(t, pb.Cap(), 1<<20)
	assert.Equal(t, []byte{1, 2, 3, 4}, pb.Bytes())
}

func TestPooledBufferSetLenGrowsAndShrinks(t *testing.T) {
	pb := GetPooledBuffer()
	defer pb.Release()

	pb.SetLen(100)
	assert.Equal(t, 100, pb.Len())

	pb.SetLen(10)
	assert.Equal(t, 10, pb.Len())
}

func TestPooledBufferResetTrimsOversizedBuffer(t *testing.T) {
	pb := GetPooledBuffer()
	defer pb.Release()

	pb.SetLen(poolReturnThreshold + 1)
	pb.Reset()

	assert.Equal(t, 0, pb.Len())
	assert.Less(t, pb.Cap(), poolReturnThreshold+1)
}

func TestPooledBufferReleaseDropsOversizedBuffer(t *testing.T) {
	pb := GetPooledBuffer()
	pb.SetLen(poolReturnThreshold + 1)
	pb.Release() // should not panic; oversized buffer is simply dropped
}

func TestPooledBufferReleaseNilIsNoop(t *testing.T) {
	var pb *PooledBuffer
	assert.NotPanics(t, func() { pb.Release() })
}
