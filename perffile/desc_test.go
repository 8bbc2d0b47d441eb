// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventDescSetNameOnce(t *testing.T) {
	d := &EventDesc{}
	d.setName("first")
	d.setName("second")
	assert.Equal(t, "first", d.Name)
}

func TestEventDescSetFormatOnce(t *testing.T) {
	d := &EventDesc{}
	f1 := &TraceEventFormat{Name: "f1"}
	f2 := &TraceEventFormat{Name: "f2"}
	d.setFormat(f1)
	d.setFormat(f2)

	got, ok := d.Format()
	require.True(t, ok)
	assert.Equal(t, "f1", got.Name)
}

func TestEventDescStringFallsBackToAttr(t *testing.T) {
	d := &EventDesc{}
	assert.Equal(t, "hardware:0", d.String())
}

func TestEventDescStringFallsBackToNumericForUnknownType(t *testing.T) {
	raw := buildAttrBytes(EventType(0xff), 0x2a, 0, 0, 0)
	d := &EventDesc{Attr: newEventAttr(raw, NewByteReader(false))}
	assert.Contains(t, d.String(), "event(type=255")
}

func TestIDIndexLookupByID(t *testing.T) {
	x := newIDIndex()
	a := &EventDesc{Name: "a", IDs: []uint64{1, 2}}
	b := &EventDesc{Name: "b", IDs: []uint64{3}}
	x.add(a)
	x.add(b)

	got, ok := x.lookup(2)
	require.True(t, ok)
	assert.Same(t, a, got)

	got, ok = x.lookup(3)
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = x.lookup(99)
	assert.False(t, ok)
}

func TestIDIndexSoloFallback(t *testing.T) {
	x := newIDIndex()
	a := &EventDesc{Name: "only"}
	x.add(a)

	got, ok := x.lookup(12345)
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestIDIndexSoloClearedBySecondAdd(t *testing.T) {
	x := newIDIndex()
	a := &EventDesc{Name: "a"}
	b := &EventDesc{Name: "b"}
	x.add(a)
	x.add(b)

	_, ok := x.lookup(999)
	assert.False(t, ok)
}

func TestIDIndexDuplicateIDLastWriteWins(t *testing.T) {
	x := newIDIndex()
	a := &EventDesc{Name: "a", IDs: []uint64{7}}
	b := &EventDesc{Name: "b", IDs: []uint64{7}}
	x.add(a)
	x.add(b)

	got, ok := x.lookup(7)
	require.True(t, ok)
	assert.Same(t, b, got)
}

func TestIDIndexAllPreservesOrder(t *testing.T) {
	x := newIDIndex()
	a := &EventDesc{Name: "a"}
	b := &EventDesc{Name: "b"}
	x.add(a)
	x.add(b)
	assert.Equal(t, []*EventDesc{a, b}, x.all())
}
