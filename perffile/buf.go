// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"errors"
	"io"
)

// pipeStreamReader is a buffered io.Reader with offset tracking, used
// as the backing store for pipe-mode files (spec.md §4.2): the input
// stream need not be seekable, so unlike normal-mode's mmap-go-backed
// source, every byte is read exactly once, in order, through this
// buffer.
//
// This is based on bufio.Reader, trimmed to the one access pattern
// FileReader needs (sequential Read, current offset via Pos) so the
// compiler can inline and devirtualize the hot path.
type pipeStreamReader struct {
	buf  []byte
	rd   io.Reader
	r, w int // buf read and write positions
	err  error
	pos  int64 // stream position of the next unread byte
}

func newPipeStreamReader(rd io.Reader) *pipeStreamReader {
	return &pipeStreamReader{
		buf: make([]byte, 16<<10),
		rd:  rd,
	}
}

var errNegativeRead = errors.New("reader returned negative count from Read")

func (b *pipeStreamReader) readErr() error {
	err := b.err
	b.err = nil
	return err
}

// Pos returns the stream offset of the next byte Read will return.
func (b *pipeStreamReader) Pos() int64 { return b.pos }

func (b *pipeStreamReader) Read(p []byte) (n int, err error) {
	n = len(p)
	if n == 0 {
		return 0, b.readErr()
	}
	if b.r == b.w {
		if b.err != nil {
			return 0, b.readErr()
		}
		if len(p) >= len(b.buf) {
			// Large read, empty buffer.
			// Read directly into p to avoid copy.
			n, b.err = b.rd.Read(p)
			if n < 0 {
				panic(errNegativeRead)
			}
			b.pos += int64(n)
			return n, b.readErr()
		}
		b.fill() // buffer is empty
		if b.r == b.w {
			return 0, b.readErr()
		}
	}

	// copy as much as we can
	n = copy(p, b.buf[b.r:b.w])
	b.r += n
	b.pos += int64(n)
	return n, nil
}

// fill reads a new chunk into the buffer.
func (b *pipeStreamReader) fill() {
	// Slide existing data to beginning.
	if b.r > 0 {
		copy(b.buf, b.buf[b.r:b.w])
		b.w -= b.r
		b.r = 0
	}

	if b.w >= len(b.buf) {
		panic("tried to fill full buffer")
	}

	// Read new data: try a limited number of times.
	for i := 0; i < 100; i++ {
		n, err := b.rd.Read(b.buf[b.w:])
		if n < 0 {
			panic(errNegativeRead)
		}
		b.w += n
		if err != nil {
			b.err = err
			return
		}
		if n > 0 {
			return
		}
	}
	b.err = io.ErrNoProgress
}
