// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundQueueDrainOrder(t *testing.T) {
	var q roundQueue
	q.push(queueEntry{timeNS: 30, roundSequence: 0})
	q.push(queueEntry{timeNS: 10, roundSequence: 1})
	q.push(queueEntry{timeNS: timeOrderSentinel, roundSequence: 2})
	q.push(queueEntry{timeNS: 20, roundSequence: 3})

	q.closeRound()

	var got []uint64
	for q.hasPending() {
		e, ok := q.next()
		require.True(t, ok)
		got = append(got, e.timeNS)
	}
	assert.Equal(t, []uint64{10, 20, 30, timeOrderSentinel}, got)
}

func TestRoundQueueStableOnTiesSameTime(t *testing.T) {
	var q roundQueue
	q.push(queueEntry{timeNS: 5, roundSequence: 0})
	q.push(queueEntry{timeNS: 5, roundSequence: 1})
	q.closeRound()

	first, ok := q.next()
	require.True(t, ok)
	assert.Equal(t, uint32(0), first.roundSequence)

	second, ok := q.next()
	require.True(t, ok)
	assert.Equal(t, uint32(1), second.roundSequence)
}

func TestRoundQueueResetClears(t *testing.T) {
	var q roundQueue
	q.push(queueEntry{timeNS: 1})
	q.closeRound()
	q.reset()

	assert.False(t, q.hasPending())
	_, ok := q.next()
	assert.False(t, ok)
}

func TestRoundQueueNextOnEmptyIsFalse(t *testing.T) {
	var q roundQueue
	_, ok := q.next()
	assert.False(t, ok)
}
