// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import "fmt"

// EventDesc names and describes one event source within a file: the
// attr that configured it, the ids assigned to it, a human name (if
// HEADER_EVENT_DESC or tracing data supplied one), and, for
// tracepoints, the late-bound field format (spec.md §3, §9).
//
// EventDesc follows a single-shot set-or-accept pattern: each of its
// optional fields is filled in at most once, by whichever header or
// record supplies it first, and later writers silently accept the
// existing value rather than overwriting it. This mirrors how the
// kernel's own layering works: a HEADER_EVENT_DESC name should not be
// clobbered by a later ATTR_ID record naming the same event generically.
type EventDesc struct {
	Attr EventAttr
	Name string
	IDs  []uint64

	format    *TraceEventFormat
	hasFormat bool
}

// setName assigns Name if it hasn't already been set.
func (d *EventDesc) setName(name string) {
	if d.Name == "" && name != "" {
		d.Name = name
	}
}

// setFormat assigns the tracepoint format if it hasn't already been set.
func (d *EventDesc) setFormat(f *TraceEventFormat) {
	if !d.hasFormat && f != nil {
		d.format = f
		d.hasFormat = true
	}
}

// Format returns the tracepoint field format for this event, if one
// has been resolved from tracing data (spec.md §4.5, §9). ok is false
// for non-tracepoint events or if no tracing data was present.
func (d *EventDesc) Format() (f *TraceEventFormat, ok bool) {
	return d.format, d.hasFormat
}

func (d *EventDesc) String() string {
	if d.Name != "" {
		return d.Name
	}
	g := genericOf(&d.Attr)
	if s := describeEvent(g.Decode()); s != "" {
		return s
	}
	return fmt.Sprintf("event(type=%d config=%#x)", d.Attr.Type(), d.Attr.Config())
}

// idIndex maps a file's sample ids to the EventDesc that owns them. A
// file's attrs may declare overlapping or absent id lists (e.g. a
// single-event non-grouped trace with no ATTR_IDs at all); idIndex
// resolves lookups the FileReader needs while decoding sample-id
// trailers.
type idIndex struct {
	byID  map[uint64]*EventDesc
	descs []*EventDesc
	// solo holds the only EventDesc when a file defines exactly one
	// attr and no event ever carries an explicit sample id; in that
	// case every sample belongs to it unconditionally (spec.md §4.3).
	solo *EventDesc
}

func newIDIndex() *idIndex {
	return &idIndex{byID: make(map[uint64]*EventDesc)}
}

// add registers desc's ids in the index. Per the resolved Open
// Question in spec.md §5 ("duplicate ids across attrs"), a later add
// for an id already claimed by a different EventDesc overwrites the
// earlier mapping: last write wins. This matches how perf itself
// behaves when a HEADER_ATTR record or id-index record updates a
// previously-declared id.
func (x *idIndex) add(desc *EventDesc) {
	x.descs = append(x.descs, desc)
	if len(x.descs) == 1 && len(desc.IDs) == 0 {
		x.solo = desc
	} else {
		x.solo = nil
	}
	for _, id := range desc.IDs {
		x.byID[id] = desc
	}
}

// lookup returns the EventDesc for id, or the sole EventDesc if the
// file never assigned explicit ids, or (nil, false) if id is unknown
// and there is more than one candidate event.
func (x *idIndex) lookup(id uint64) (*EventDesc, bool) {
	if d, ok := x.byID[id]; ok {
		return d, true
	}
	if x.solo != nil {
		return x.solo, true
	}
	return nil, false
}

// all returns every EventDesc registered in file-attr order.
func (x *idIndex) all() []*EventDesc {
	return x.descs
}
