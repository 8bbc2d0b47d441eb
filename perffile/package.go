// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package perffile decodes Linux perf.data profiles.
//
// Opening a perf.data file starts with a call to Open (normal mode,
// memory-mapped) or NewReader (pipe mode, streamed from an
// io.Reader). Both return a *FileReader, whose ReadEvent method
// yields the file's records in either file order or, with
// Options.EventOrder set to EventOrderTime, timestamp order. Sample
// and non-sample records are decoded on demand with GetSampleInfo and
// GetNonSampleInfo; session-identifying feature headers are available
// through Meta.
package perffile // import "github.com/perfdecode/perfdata/perffile"
