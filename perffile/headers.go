// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perffile

import "fmt"

// A HeaderIndex identifies one of the feature headers a perf.data file
// may carry, either in the normal-mode appended headers section or as
// an in-band HEADER_FEATURE record in pipe mode. This mirrors the
// HEADER_* enum from tools/perf/util/header.h.
type HeaderIndex int

const (
	headerReserved HeaderIndex = iota // always cleared; bit 0 is unused

	HeaderTracingData
	HeaderBuildID

	HeaderHostname
	HeaderOSRelease
	HeaderVersion
	HeaderArch
	HeaderNrCPUs
	HeaderCPUDesc
	HeaderCPUID
	HeaderTotalMem
	HeaderCmdline
	HeaderEventDesc
	HeaderCPUTopology
	HeaderNUMATopology
	HeaderBranchStack
	HeaderPMUMappings
	HeaderGroupDesc
	HeaderAuxtrace
	HeaderStat
	HeaderCache
	HeaderSampleTime
	HeaderMemTopology
	HeaderClockID
	HeaderDirFormat
	HeaderBPFProgInfo
	HeaderBPFBTF
	HeaderCompressed
	HeaderCPUPMUCaps
	HeaderClockData
	HeaderHybridTopology
	HeaderPMUCaps

	numHeaderIndex
)

const numFeatureBits = 256

// featureBitmap is the 256-bit "flags" bitmap from the normal-mode
// file header (spec.md §6), selecting which feature headers are
// present in the appended headers section.
type featureBitmap [numFeatureBits / 64]uint64

func (f *featureBitmap) has(h HeaderIndex) bool {
	return f[h/64]&(1<<(uint(h)%64)) != 0
}

func (f *featureBitmap) set(h HeaderIndex) {
	f[h/64] |= 1 << (uint(h) % 64)
}

var headerIndexNames = [numHeaderIndex]string{
	headerReserved:       "reserved",
	HeaderTracingData:    "tracing_data",
	HeaderBuildID:        "build_id",
	HeaderHostname:       "hostname",
	HeaderOSRelease:      "osrelease",
	HeaderVersion:        "version",
	HeaderArch:           "arch",
	HeaderNrCPUs:         "nrcpus",
	HeaderCPUDesc:        "cpudesc",
	HeaderCPUID:          "cpuid",
	HeaderTotalMem:       "total_mem",
	HeaderCmdline:        "cmdline",
	HeaderEventDesc:      "event_desc",
	HeaderCPUTopology:    "cpu_topology",
	HeaderNUMATopology:   "numa_topology",
	HeaderBranchStack:    "branch_stack",
	HeaderPMUMappings:    "pmu_mappings",
	HeaderGroupDesc:      "group_desc",
	HeaderAuxtrace:       "auxtrace",
	HeaderStat:           "stat",
	HeaderCache:          "cache",
	HeaderSampleTime:     "sample_time",
	HeaderMemTopology:    "mem_topology",
	HeaderClockID:        "clockid",
	HeaderDirFormat:      "dir_format",
	HeaderBPFProgInfo:    "bpf_prog_info",
	HeaderBPFBTF:         "bpf_btf",
	HeaderCompressed:     "compressed",
	HeaderCPUPMUCaps:     "cpu_pmu_caps",
	HeaderClockData:      "clock_data",
	HeaderHybridTopology: "hybrid_topology",
	HeaderPMUCaps:        "pmu_caps",
}

// String returns the perf tool's own name for this feature header,
// e.g. "cpu_topology", or a numeric fallback for an unrecognized
// index.
func (h HeaderIndex) String() string {
	if h >= 0 && int(h) < len(headerIndexNames) && headerIndexNames[h] != "" {
		return headerIndexNames[h]
	}
	return fmt.Sprintf("HeaderIndex(%d)", int(h))
}
