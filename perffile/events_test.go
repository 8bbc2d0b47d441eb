// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventGenericRoundTrip(t *testing.T) {
	cases := []Event{
		EventHardware(EventHardwareCPUCycles),
		EventSoftware(EventSoftwarePageFaults),
		EventTracepoint(301),
		EventHWCache{HWCacheL1D, HWCacheOpRead, HWCacheResultMiss},
		EventRaw(0x530110),
		EventBreakpoint{BreakpointOpRW, 0x1000, 8},
	}
	for _, e := range cases {
		g := e.Generic()
		assert.Equal(t, e, g.Decode(), "%#v", e)
	}
}

func TestEventGenericDecodeUnknown(t *testing.T) {
	g := EventGeneric{Type: EventType(99), ID: 1}
	got := g.Decode()
	u, ok := got.(eventUnknown)
	if !ok {
		t.Fatalf("expected eventUnknown, got %T", got)
	}
	assert.Equal(t, g, u.Generic())
}

func TestHWCacheEventGenericEncoding(t *testing.T) {
	e := EventHWCache{HWCacheLL, HWCacheOpWrite, HWCacheResultAccess}
	g := e.Generic()
	assert.Equal(t, EventTypeHWCache, g.Type)
	assert.Equal(t, uint64(HWCacheLL)|uint64(HWCacheOpWrite)<<8|uint64(HWCacheResultAccess)<<16, g.ID)
}

func TestGenericOfBreakpointUsesBPTypeAndConfigFields(t *testing.T) {
	raw := buildAttrBytes(EventTypeBreakpoint, 0xdeadbeef, 0, 0, 0)
	attr := newEventAttr(raw, NewByteReader(false))
	g := genericOf(&attr)
	assert.Equal(t, EventTypeBreakpoint, g.Type)
	assert.Equal(t, uint64(0), g.ID) // bp_type defaults to 0, distinct from config
	assert.Equal(t, []uint64{0, 0}, g.Config)
}

func TestDescribeEvent(t *testing.T) {
	cases := []struct {
		e    Event
		want string
	}{
		{EventHardware(EventHardwareCacheMisses), "hardware:3"},
		{EventSoftware(EventSoftwareDummy), "software:9"},
		{EventTracepoint(42), "tracepoint:42"},
		{EventHWCache{HWCacheBPU, HWCacheOpPrefetch, HWCacheResultMiss}, "hwcache:level=5,op=2,result=1"},
		{EventRaw(0x1a), "raw:0x1a"},
		{EventBreakpoint{BreakpointOpX, 0x400000, 4}, "breakpoint:op=4,addr=0x400000,len=4"},
		{eventUnknown{EventGeneric{Type: EventType(99)}}, ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, describeEvent(c.e))
	}
}
