// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"encoding/binary"
	"fmt"
)

// bufDecoder is a bounds-checked sequential reader over an in-memory
// byte slice. It backs the HEADER_TRACING_DATA blob parser (§4.5) and
// the event-desc feature header parser (§4.6): both are sequences of
// fixed fields and length/count-prefixed sections read from a buffer
// that, unlike the main event stream, has already been read fully
// into memory. Every method returns ErrInvalidData on underflow
// rather than panicking, since this data is as untrusted as the rest
// of the file.
type bufDecoder struct {
	buf   []byte
	order binary.ByteOrder
}

func (b *bufDecoder) need(n int) error {
	if n < 0 || n > len(b.buf) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidData, n, len(b.buf))
	}
	return nil
}

func (b *bufDecoder) skip(n int) error {
	if err := b.need(n); err != nil {
		return err
	}
	b.buf = b.buf[n:]
	return nil
}

func (b *bufDecoder) bytes(n int) ([]byte, error) {
	if err := b.need(n); err != nil {
		return nil, err
	}
	x := b.buf[:n]
	b.buf = b.buf[n:]
	return x, nil
}

func (b *bufDecoder) byte() (byte, error) {
	x, err := b.bytes(1)
	if err != nil {
		return 0, err
	}
	return x[0], nil
}

func (b *bufDecoder) u16() (uint16, error) {
	x, err := b.bytes(2)
	if err != nil {
		return 0, err
	}
	return b.order.Uint16(x), nil
}

func (b *bufDecoder) u32() (uint32, error) {
	x, err := b.bytes(4)
	if err != nil {
		return 0, err
	}
	return b.order.Uint32(x), nil
}

func (b *bufDecoder) i32() (int32, error) {
	x, err := b.u32()
	return int32(x), err
}

func (b *bufDecoder) u64() (uint64, error) {
	x, err := b.bytes(8)
	if err != nil {
		return 0, err
	}
	return b.order.Uint64(x), nil
}

func (b *bufDecoder) u64s(n int) ([]uint64, error) {
	if err := b.need(n * 8); err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = b.order.Uint64(b.buf[i*8:])
	}
	b.buf = b.buf[n*8:]
	return out, nil
}

func (b *bufDecoder) cstring() (string, error) {
	for i, c := range b.buf {
		if c == 0 {
			x := string(b.buf[:i])
			b.buf = b.buf[i+1:]
			return x, nil
		}
	}
	return "", fmt.Errorf("%w: unterminated string", ErrInvalidData)
}

// lenString reads a u32-prefixed nul-terminated (or length-exact)
// Latin-1 string, as used by the event-desc header (§4.6).
func (b *bufDecoder) lenString() (string, error) {
	l, err := b.u32()
	if err != nil {
		return "", err
	}
	section, err := b.bytes(int(l))
	if err != nil {
		return "", err
	}
	for i, c := range section {
		if c == 0 {
			return latin1ToUTF8(section[:i]), nil
		}
	}
	return latin1ToUTF8(section), nil
}

// stringList reads a u32 count followed by that many
// u32-length-prefixed Latin-1 strings, as used by the cmdline and CPU
// topology feature headers (§6).
func (b *bufDecoder) stringList() ([]string, error) {
	count, err := b.u32()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		s, err := b.lenString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// u32Section reads a u32-length-prefixed byte section, as used for
// the kallsyms and printk blobs (§4.5 steps 9–10).
func (b *bufDecoder) u32Section() ([]byte, error) {
	l, err := b.u32()
	if err != nil {
		return nil, err
	}
	return b.bytes(int(l))
}

// u64Section reads a u64-length-prefixed byte section, as used for
// the header_page/header_event/ftrace-format/tracepoint-format
// sections (§4.5 steps 5–8, 11).
func (b *bufDecoder) u64Section() ([]byte, error) {
	l, err := b.u64()
	if err != nil {
		return nil, err
	}
	if l > uint64(len(b.buf)) {
		return nil, fmt.Errorf("%w: section length %d exceeds remaining %d", ErrInvalidData, l, len(b.buf))
	}
	return b.bytes(int(l))
}
