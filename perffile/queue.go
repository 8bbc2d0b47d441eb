// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import "sort"

// timeOrderSentinel is the timestamp assigned to FINISHED_ROUND and
// FINISHED_INIT markers, which always sort to the end of their round
// (spec.md §4.4 step 4, §5).
const timeOrderSentinel = ^uint64(0)

// queueEntry is one event accumulated into the current time-order
// round (spec.md §3's QueueEntry). bufIndex/off/size locate the
// event's bytes within the reader's buffer list rather than holding a
// direct slice, per the index-based scheme spec.md §9 recommends:
// buffers are dropped together at round end, and holding only an
// index avoids keeping a live Go slice header (and thus the
// underlying array) pinned by a stale direct reference if the buffer
// list itself is reallocated.
type queueEntry struct {
	timeNS        uint64
	roundSequence uint32

	header   recordHeader
	bufIndex int
	off      int
	size     int
}

// roundQueue accumulates one time-order round's worth of events,
// stable-sorts them by (timeNS, roundSequence) once the round closes,
// and drains them one at a time.
type roundQueue struct {
	entries []queueEntry
	drainAt int
}

func (q *roundQueue) reset() {
	q.entries = q.entries[:0]
	q.drainAt = 0
}

func (q *roundQueue) push(e queueEntry) {
	q.entries = append(q.entries, e)
}

// closeRound stable-sorts the accumulated entries by (timeNS,
// roundSequence); zero sorts before any positive timestamp, and the
// round-boundary sentinel (timeOrderSentinel) always sorts last
// (spec.md §5).
func (q *roundQueue) closeRound() {
	sort.SliceStable(q.entries, func(i, j int) bool {
		return q.entries[i].timeNS < q.entries[j].timeNS
	})
	q.drainAt = 0
}

// hasPending reports whether any entry remains undrained.
func (q *roundQueue) hasPending() bool {
	return q.drainAt < len(q.entries)
}

// next returns the next entry to drain, advancing the cursor.
func (q *roundQueue) next() (queueEntry, bool) {
	if !q.hasPending() {
		return queueEntry{}, false
	}
	e := q.entries[q.drainAt]
	q.drainAt++
	return e, true
}
