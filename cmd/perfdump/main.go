// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command perfdump inspects the contents of a perf.data profile.
package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/perfdecode/perfdata/perffile"
)

var rootCmd = &cobra.Command{
	Use:   "perfdump",
	Short: "Inspect a Linux perf.data profile",
}

func main() {
	rootCmd.AddCommand(dumpCmd, headersCmd, eventsCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func openFile(cmd *cobra.Command) (*perffile.FileReader, error) {
	path, _ := cmd.Flags().GetString("input")
	timeOrder, _ := cmd.Flags().GetBool("time-order")
	order := perffile.EventOrderFile
	if timeOrder {
		order = perffile.EventOrderTime
	}
	return perffile.Open(path, perffile.Options{EventOrder: order})
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("input", "i", "perf.data", "input perf.data file")
	cmd.Flags().Bool("time-order", false, "deliver records in timestamp order instead of file order")
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every record in the file",
	Run: func(cmd *cobra.Command, args []string) {
		f, err := openFile(cmd)
		if err != nil {
			log.Fatalf("opening file: %v", err)
		}
		defer f.Close()

		for {
			eb, err := f.ReadEvent()
			if err != nil {
				if err == perffile.ErrEndOfFile {
					break
				}
				log.Fatalf("reading event: %v", err)
			}
			dumpRecord(f, eb)
		}
	},
}

var headersCmd = &cobra.Command{
	Use:   "headers",
	Short: "Print the session metadata captured from feature headers",
	Run: func(cmd *cobra.Command, args []string) {
		f, err := openFile(cmd)
		if err != nil {
			log.Fatalf("opening file: %v", err)
		}
		defer f.Close()

		m, err := f.Meta()
		if err != nil {
			log.Fatalf("decoding headers: %v", err)
		}
		printMeta(m)
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the event types recorded in the file",
	Run: func(cmd *cobra.Command, args []string) {
		f, err := openFile(cmd)
		if err != nil {
			log.Fatalf("opening file: %v", err)
		}
		defer f.Close()

		for _, desc := range f.EventDescs() {
			fmt.Println(desc.String())
		}
	},
}

func init() {
	addCommonFlags(dumpCmd)
	addCommonFlags(headersCmd)
	addCommonFlags(eventsCmd)
}

func dumpRecord(f *perffile.FileReader, eb perffile.EventBytes) {
	switch eb.Type() {
	case perffile.RecordTypeSample:
		info, err := f.GetSampleInfo(eb)
		if err != nil {
			fmt.Printf("SAMPLE: error: %v\n", err)
			return
		}
		fmt.Printf("SAMPLE: %+v\n", *info)
	default:
		info, err := f.GetNonSampleInfo(eb)
		if err != nil {
			fmt.Printf("%v offset=%d size=%d\n", eb.Type(), eb.Offset, len(eb.Span))
			return
		}
		fmt.Printf("%v offset=%d size=%d %+v\n", eb.Type(), eb.Offset, len(eb.Span), *info)
	}
}

func printMeta(m *perffile.FileMeta) {
	fields := []struct {
		name string
		val  interface{}
	}{
		{"hostname", m.Hostname},
		{"OS release", m.OSRelease},
		{"version", m.Version},
		{"arch", m.Arch},
		{"CPUs online", m.CPUsOnline},
		{"CPUs available", m.CPUsAvail},
		{"CPU desc", m.CPUDesc},
		{"CPUID", m.CPUID},
		{"total memory (bytes)", m.TotalMem},
		{"cmdline", m.CmdLine},
		{"core groups", m.CoreGroups},
		{"thread groups", m.ThreadGroups},
		{"NUMA nodes", m.NUMANodes},
		{"PMU mappings", m.PMUMappings},
		{"groups", m.Groups},
	}
	for _, f := range fields {
		switch v := f.val.(type) {
		case string:
			if v == "" {
				continue
			}
		case int:
			if v == 0 {
				continue
			}
		case int64:
			if v == 0 {
				continue
			}
		}
		fmt.Printf("%s: %v\n", f.name, f.val)
	}
	for _, bid := range m.BuildIDs {
		fmt.Printf("build id: %v %s\n", bid.BuildID, bid.Filename)
	}
}
