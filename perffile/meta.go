// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import (
	"fmt"
)

// FileMeta collects the session-identifying feature headers of a
// perf.data file (spec.md §6): hostname, OS/CPU description, build
// IDs, command line, and topology. Meta decodes these lazily from the
// raw bytes FileReader already captured in Open, so a caller that
// never asks for them pays nothing beyond the single-pass read.
type FileMeta struct {
	// BuildIDs is the list of build IDs for processes and
	// libraries in this profile, or nil if unknown. Note that in
	// "live mode" (e.g., a file written by perf inject), it's
	// possible for build IDs to be introduced in the sample
	// stream itself.
	BuildIDs []BuildIDInfo

	// Hostname is the hostname of the machine that recorded this
	// profile, or "" if unknown.
	Hostname string

	// OSRelease is the OS release of the machine that recorded
	// this profile such as "3.13.0-62", or "" if unknown.
	OSRelease string

	// Version is the perf version that recorded this profile such
	// as "3.13.11", or "" if unknown.
	Version string

	// Arch is the host architecture of the machine that recorded
	// this profile such as "x86_64", or "" if unknown.
	Arch string

	// CPUsOnline and CPUsAvail are the number of online and
	// available CPUs of the machine that recorded this profile,
	// or 0, 0 if unknown.
	CPUsOnline, CPUsAvail int

	// CPUDesc describes the CPU of the machine that recorded this
	// profile such as "Intel(R) Core(TM) i7-4600U CPU @ 2.10GHz",
	// or "" if unknown.
	CPUDesc string

	// CPUID describes the CPU type of the machine that recorded
	// this profile, or "" if unknown. The exact format of this
	// varies between architectures. On x86 architectures, it is a
	// comma-separated list of vendor, family, model, and
	// stepping, such as "GenuineIntel,6,69,1".
	CPUID string

	// TotalMem is the total memory in bytes of the machine that
	// recorded this profile, or 0 if unknown.
	TotalMem int64

	// CmdLine is the list of command line arguments perf was
	// invoked with, or nil if unknown.
	CmdLine []string

	// CoreGroups and ThreadGroups describe the CPU topology of the
	// machine that recorded this profile. Each CPUSet in
	// CoreGroups is a set of CPUs in the same package, and each
	// CPUSet in ThreadGroups is a set of hardware threads in the
	// same core. Both are nil if unknown.
	CoreGroups, ThreadGroups []CPUSet

	// NUMANodes is the set of NUMA nodes in the NUMA topology of
	// the machine that recorded this profile, or nil if unknown.
	NUMANodes []NUMANode

	// PMUMappings is a map from numerical PMU type to name for
	// event classes supported by the machine that recorded this
	// profile, or nil if unknown.
	PMUMappings map[PMUTypeID]string

	// Groups is the description of each perf event group in this
	// profile, or nil if unknown.
	Groups []GroupDesc
}

// A BuildIDInfo records the mapping between a single build ID and the
// path of an executable with that build ID.
type BuildIDInfo struct {
	CPUMode  CPUMode
	PID      int // Usually -1; for VM kernels
	BuildID  BuildID
	Filename string
}

type BuildID []byte

func (b BuildID) String() string {
	return fmt.Sprintf("%x", []byte(b))
}

// A NUMANode represents a single hardware NUMA node.
type NUMANode struct {
	// Node is the system identifier of this NUMA node.
	Node int

	// MemTotal and MemFree are the total and free number of bytes
	// of memory in this NUMA node.
	MemTotal, MemFree int64

	// CPUs is the set of CPUs in this NUMA node.
	CPUs CPUSet
}

// A GroupDesc describes a group of PMU events that are scheduled
// together.
type GroupDesc struct {
	Name       string
	Leader     int
	NumMembers int
}

// PMUTypeID is the perf_event_attr.type value registered for a named
// PMU (e.g. "cpu", "uncore_imc_0"), as reported by HeaderPMUMappings.
type PMUTypeID uint32

type metaParser func(*FileMeta, *bufDecoder) error

var metaParsers = map[HeaderIndex]metaParser{
	HeaderBuildID:      (*FileMeta).parseBuildID,
	HeaderHostname:     stringMeta(func(m *FileMeta) *string { return &m.Hostname }),
	HeaderOSRelease:    stringMeta(func(m *FileMeta) *string { return &m.OSRelease }),
	HeaderVersion:      stringMeta(func(m *FileMeta) *string { return &m.Version }),
	HeaderArch:         stringMeta(func(m *FileMeta) *string { return &m.Arch }),
	HeaderNrCPUs:       (*FileMeta).parseNrCPUs,
	HeaderCPUDesc:      stringMeta(func(m *FileMeta) *string { return &m.CPUDesc }),
	HeaderCPUID:        stringMeta(func(m *FileMeta) *string { return &m.CPUID }),
	HeaderTotalMem:     (*FileMeta).parseTotalMem,
	HeaderCmdline:      (*FileMeta).parseCmdLine,
	HeaderCPUTopology:  (*FileMeta).parseCPUTopology,
	HeaderNUMATopology: (*FileMeta).parseNUMATopology,
	HeaderPMUMappings:  (*FileMeta).parsePMUMappings,
	HeaderGroupDesc:    (*FileMeta).parseGroupDesc,
}

// Meta decodes the session-identifying feature headers present in the
// file into a FileMeta. Headers that weren't captured in the feature
// bitmap (or that this reader doesn't recognize) leave their
// corresponding fields at their zero value.
func (r *FileReader) Meta() (*FileMeta, error) {
	order := binaryOrderOf(r.session.byteOrder)
	m := &FileMeta{}
	for idx, parse := range metaParsers {
		raw := r.Header(idx)
		if raw == nil {
			continue
		}
		bd := &bufDecoder{buf: raw, order: order}
		if err := parse(m, bd); err != nil {
			return nil, fmt.Errorf("parsing header %v: %w", idx, err)
		}
	}
	return m, nil
}

func stringMeta(field func(*FileMeta) *string) metaParser {
	return func(m *FileMeta, bd *bufDecoder) error {
		s, err := bd.lenString()
		if err != nil {
			return err
		}
		*field(m) = s
		return nil
	}
}

func (m *FileMeta) parseBuildID(bd *bufDecoder) error {
	for len(bd.buf) > 0 {
		start := bd.buf
		if _, err := bd.u32(); err != nil { // record type, unused
			return err
		}
		misc, err := bd.u16()
		if err != nil {
			return err
		}
		size, err := bd.u16()
		if err != nil {
			return err
		}
		pid, err := bd.i32()
		if err != nil {
			return err
		}
		// The build ID is 20 bytes, padded to 8-byte alignment.
		raw, err := bd.bytes(24)
		if err != nil {
			return err
		}
		name, err := bd.cstring()
		if err != nil {
			return err
		}
		id := make(BuildID, 20)
		copy(id, raw[:20])
		m.BuildIDs = append(m.BuildIDs, BuildIDInfo{
			CPUMode:  CPUMode(misc & uint16(recordMiscCPUModeMask)),
			PID:      int(pid),
			BuildID:  id,
			Filename: name,
		})
		if int(size) > len(start) {
			return fmt.Errorf("%w: build ID record size %d exceeds remaining data", ErrInvalidData, size)
		}
		bd.buf = start[size:]
	}
	return nil
}

func (m *FileMeta) parseNrCPUs(bd *bufDecoder) error {
	online, err := bd.u32()
	if err != nil {
		return err
	}
	avail, err := bd.u32()
	if err != nil {
		return err
	}
	m.CPUsOnline, m.CPUsAvail = int(online), int(avail)
	return nil
}

func (m *FileMeta) parseTotalMem(bd *bufDecoder) error {
	kb, err := bd.u64()
	if err != nil {
		return err
	}
	m.TotalMem = int64(kb) * 1024
	return nil
}

func (m *FileMeta) parseCmdLine(bd *bufDecoder) error {
	list, err := bd.stringList()
	if err != nil {
		return err
	}
	m.CmdLine = list
	return nil
}

func (m *FileMeta) parseCPUTopology(bd *bufDecoder) error {
	cores, err := bd.stringList()
	if err != nil {
		return err
	}
	threads, err := bd.stringList()
	if err != nil {
		return err
	}
	m.CoreGroups = make([]CPUSet, len(cores))
	for i, str := range cores {
		m.CoreGroups[i], err = parseCPUSet(str)
		if err != nil {
			return err
		}
	}
	m.ThreadGroups = make([]CPUSet, len(threads))
	for i, str := range threads {
		m.ThreadGroups[i], err = parseCPUSet(str)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *FileMeta) parseNUMATopology(bd *bufDecoder) error {
	count, err := bd.u32()
	if err != nil {
		return err
	}
	m.NUMANodes = make([]NUMANode, 0, count)
	for i := uint32(0); i < count; i++ {
		node, mtot, mfree, cpus, err := func() (int, int64, int64, CPUSet, error) {
			nodeNum, err := bd.u32()
			if err != nil {
				return 0, 0, 0, nil, err
			}
			memTotal, err := bd.u64()
			if err != nil {
				return 0, 0, 0, nil, err
			}
			memFree, err := bd.u64()
			if err != nil {
				return 0, 0, 0, nil, err
			}
			str, err := bd.lenString()
			if err != nil {
				return 0, 0, 0, nil, err
			}
			set, err := parseCPUSet(str)
			if err != nil {
				return 0, 0, 0, nil, err
			}
			return int(nodeNum), int64(memTotal) * 1024, int64(memFree) * 1024, set, nil
		}()
		if err != nil {
			return err
		}
		m.NUMANodes = append(m.NUMANodes, NUMANode{Node: node, MemTotal: mtot, MemFree: mfree, CPUs: cpus})
	}
	return nil
}

func (m *FileMeta) parsePMUMappings(bd *bufDecoder) error {
	count, err := bd.u32()
	if err != nil {
		return err
	}
	m.PMUMappings = make(map[PMUTypeID]string, count)
	for i := uint32(0); i < count; i++ {
		typ, err := bd.u32()
		if err != nil {
			return err
		}
		name, err := bd.lenString()
		if err != nil {
			return err
		}
		m.PMUMappings[PMUTypeID(typ)] = name
	}
	return nil
}

func (m *FileMeta) parseGroupDesc(bd *bufDecoder) error {
	count, err := bd.u32()
	if err != nil {
		return err
	}
	m.Groups = make([]GroupDesc, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := bd.lenString()
		if err != nil {
			return err
		}
		leader, err := bd.u32()
		if err != nil {
			return err
		}
		members, err := bd.u32()
		if err != nil {
			return err
		}
		m.Groups = append(m.Groups, GroupDesc{Name: name, Leader: int(leader), NumMembers: int(members)})
	}
	return nil
}
