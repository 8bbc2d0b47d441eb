// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import "errors"

// Sentinel errors forming the reader's error taxonomy (spec.md §7).
// Decode functions wrap these with fmt.Errorf's %w so callers can
// errors.Is against the taxonomy while still getting a specific
// message.
var (
	// ErrEndOfFile is the normal termination condition from
	// ReadEvent. It is also returned by every call made after the
	// reader has hit a fatal error or been closed.
	ErrEndOfFile = errors.New("perffile: end of file")

	// ErrInvalidData means a malformed record was found at or past
	// the current position. Encountered during ReadEvent, this is
	// fatal: every subsequent ReadEvent returns ErrEndOfFile. The
	// stream itself is not closed until Close. Encountered during
	// GetSampleInfo/GetNonSampleInfo, it is scoped to that one call.
	ErrInvalidData = errors.New("perffile: invalid data")

	// ErrIdNotFound means a decoded sample id has no corresponding
	// EventDesc. Per-call; the reader remains usable.
	ErrIdNotFound = errors.New("perffile: id not found")

	// ErrNotSupported means an attr's read_format carries bits this
	// decoder cannot interpret.
	ErrNotSupported = errors.New("perffile: read_format not supported")

	// ErrNoData means the attr chain for this event does not collect
	// the id or time field needed to interpret it.
	ErrNoData = errors.New("perffile: attr does not collect required field")
)
