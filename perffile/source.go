// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// source is FileReader's backing store. Normal-mode files are
// memory-mapped, and FileReader copies each record out of the mapping
// into its own scratch buffer, so EventBytes.Span does not alias the
// mapping; pipe-mode files are read through a plain buffered stream
// since they need not be seekable.
type source interface {
	// mode reports which physical layout this source was opened
	// against.
	mode() fileMode

	// readAt copies n bytes starting at off into dst, for normal-mode
	// sources only (feature-header and attr-table loading, and every
	// event record FileReader reads in normal mode).
	readAt(dst []byte, off int64) error

	// span returns a slice of the mapping covering [off, off+n),
	// valid only for normal-mode sources; it aliases the mapping with
	// no copy. Pipe-mode sources do not implement this.
	span(off int64, n int) ([]byte, error)

	// read copies up to len(dst) bytes from the current stream
	// position, for pipe-mode sources only, advancing the position.
	read(dst []byte) (int, error)

	// pos returns the current read position (pipe mode) or
	// mmapSource's own absolute read cursor (normal mode; FileReader
	// keeps its own cursor in normal mode and does not call this).
	pos() int64

	size() (int64, bool) // total stream size, if known (normal mode)

	close() error
}

type fileMode int

const (
	modeNormal fileMode = iota
	modePipe
)

// mmapSource backs a seekable normal-mode file with a read-only
// memory mapping (grounded on the mmap.Map usage in saferwall-pe's
// PE-file reader).
type mmapSource struct {
	f        *os.File
	mapping  mmap.MMap
	ownsFile bool
	cursor   int64
}

func openMmapSource(path string) (*mmapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := newMmapSourceFromFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	m.ownsFile = true
	return m, nil
}

func newMmapSourceFromFile(f *os.File) (*mmapSource, error) {
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("perffile: mmap: %w", err)
	}
	return &mmapSource{f: f, mapping: m}, nil
}

func (s *mmapSource) mode() fileMode { return modeNormal }

func (s *mmapSource) readAt(dst []byte, off int64) error {
	if off < 0 || off+int64(len(dst)) > int64(len(s.mapping)) {
		return fmt.Errorf("%w: read [%d,%d) out of bounds (size %d)", ErrInvalidData, off, off+int64(len(dst)), len(s.mapping))
	}
	copy(dst, s.mapping[off:off+int64(len(dst))])
	return nil
}

func (s *mmapSource) span(off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+int64(n) > int64(len(s.mapping)) {
		return nil, fmt.Errorf("%w: span [%d,%d) out of bounds (size %d)", ErrInvalidData, off, off+int64(n), len(s.mapping))
	}
	return s.mapping[off : off+int64(n) : off+int64(n)], nil
}

func (s *mmapSource) read(dst []byte) (int, error) {
	n, err := s.readAtCursor(dst)
	return n, err
}

func (s *mmapSource) readAtCursor(dst []byte) (int, error) {
	if s.cursor >= int64(len(s.mapping)) {
		return 0, io.EOF
	}
	n := copy(dst, s.mapping[s.cursor:])
	s.cursor += int64(n)
	return n, nil
}

func (s *mmapSource) seek(off int64) { s.cursor = off }

func (s *mmapSource) pos() int64 { return s.cursor }

func (s *mmapSource) size() (int64, bool) { return int64(len(s.mapping)), true }

func (s *mmapSource) close() error {
	err := s.mapping.Unmap()
	if s.ownsFile {
		if cerr := s.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// pipeSource backs a pipe-mode file with a sequential buffered
// stream. Every EventBytes span in pipe mode is a copy into a
// PooledBuffer, never an alias of pipeSource itself.
type pipeSource struct {
	r      *pipeStreamReader
	closer io.Closer // non-nil if the stream is owned (closed on Close)
}

func newPipeSource(r io.Reader, owned bool) *pipeSource {
	ps := &pipeSource{r: newPipeStreamReader(r)}
	if owned {
		if c, ok := r.(io.Closer); ok {
			ps.closer = c
		}
	}
	return ps
}

func (s *pipeSource) mode() fileMode { return modePipe }

func (s *pipeSource) readAt(dst []byte, off int64) error {
	return fmt.Errorf("perffile: readAt unsupported in pipe mode")
}

func (s *pipeSource) span(off int64, n int) ([]byte, error) {
	return nil, fmt.Errorf("perffile: span unsupported in pipe mode")
}

func (s *pipeSource) read(dst []byte) (int, error) { return s.r.Read(dst) }

func (s *pipeSource) pos() int64 { return s.r.Pos() }

func (s *pipeSource) size() (int64, bool) { return 0, false }

func (s *pipeSource) close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// readFull reads exactly len(dst) bytes from src via src.read,
// looping over short reads the way io.ReadFull does, since
// pipeSource's Read has the usual io.Reader short-read allowance.
func readFull(src source, dst []byte) error {
	got := 0
	for got < len(dst) {
		n, err := src.read(dst[got:])
		got += n
		if err != nil {
			if err == io.EOF && got == 0 {
				return io.EOF
			}
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}
