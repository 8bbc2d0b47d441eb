// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import "sync"

// poolMinBufferSize is the smallest scratch buffer FileReader will
// ever allocate for a single record (spec.md §4.4: "at least 64
// KiB").
const poolMinBufferSize = 64 << 10

// poolReturnThreshold is the largest buffer PooledBuffer will return
// to the shared pool on Release; larger buffers are simply dropped so
// one oversized record doesn't bloat the pool for the life of the
// process (see spec.md §5).
const poolReturnThreshold = 4 << 20

var bufferPool = sync.Pool{
	New: func() any {
		return &PooledBuffer{buf: make([]byte, 0, poolMinBufferSize)}
	},
}

// A PooledBuffer is a growable byte buffer with a valid-length cursor,
// backed by a shared sync.Pool. It is the scratch storage behind
// every EventBytes span FileReader hands out (feature headers are
// kept in separately allocated slices): a
// single PooledBuffer may be reused across many reads by callers that
// track how much of it is valid via n.
type PooledBuffer struct {
	buf []byte
	n   int // valid length; n <= len(buf)
}

// GetPooledBuffer obtains a PooledBuffer from the shared pool, empty
// (Len() == 0) but usually already carrying spare capacity.
func GetPooledBuffer() *PooledBuffer {
	pb, _ := bufferPool.Get().(*PooledBuffer)
	pb.n = 0
	return pb
}

// Release returns pb to the shared pool for reuse, unless it has
// grown unusually large, in which case it's left for the garbage
// collector instead of bloating the pool.
func (pb *PooledBuffer) Release() {
	if pb == nil {
		return
	}
	if cap(pb.buf) > poolReturnThreshold {
		return
	}
	pb.n = 0
	bufferPool.Put(pb)
}

// Bytes returns the valid portion of the buffer, Bytes()[:Len()].
func (pb *PooledBuffer) Bytes() []byte {
	return pb.buf[:pb.n]
}

// Len returns the number of valid bytes currently in the buffer.
func (pb *PooledBuffer) Len() int {
	return pb.n
}

// Cap returns the total capacity backing the buffer.
func (pb *PooledBuffer) Cap() int {
	return cap(pb.buf)
}

// Reserve ensures the buffer has capacity for at least n bytes,
// preserving any existing valid bytes (Bytes() before the call is a
// prefix of Bytes() after, up to the old length). It does not change
// Len().
func (pb *PooledBuffer) Reserve(n int) {
	if cap(pb.buf) >= n {
		return
	}
	grown := make([]byte, pb.n, n)
	copy(grown, pb.buf[:pb.n])
	pb.buf = grown
}

// SetLen grows or shrinks the valid region to exactly n bytes,
// reserving capacity first if necessary. Bytes beyond the old valid
// length are zeroed only if newly exposed by growth via Reserve
// (which does not itself zero); callers that need zeroed extension
// should write into the returned Bytes() slice.
func (pb *PooledBuffer) SetLen(n int) {
	pb.Reserve(n)
	pb.buf = pb.buf[:cap(pb.buf)][:n]
	pb.n = n
}

// Reset truncates the buffer to zero length. If the buffer has grown
// past poolReturnThreshold, Reset also trims it back down to the pool
// default so one oversized record doesn't permanently inflate a
// buffer that's kept (rather than released) across close/reopen.
func (pb *PooledBuffer) Reset() {
	if cap(pb.buf) > poolReturnThreshold {
		pb.buf = make([]byte, 0, poolMinBufferSize)
	}
	pb.n = 0
}
