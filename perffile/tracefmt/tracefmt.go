// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tracefmt parses the tracefs "format" text file that
// describes the fields of a kernel tracepoint.
//
// This is an external collaborator in the sense of the core decoder:
// ParseFormat is a pure function of its inputs and has no knowledge of
// perf.data's binary layout. It exists as its own package because the
// core record decoder cannot be meaningfully tested without it.
package tracefmt

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// FieldFormat describes one field of a tracepoint, as declared by a
// single "field:" line of the format text.
type FieldFormat struct {
	// Name is the field's identifier, with any array suffix removed.
	Name string
	// Declared is the raw C type text as written in the format file,
	// e.g. "unsigned long" or "char[16]".
	Declared string
	Offset   int
	Size     int
	Signed   bool

	// IsArray is true if the field was declared with a [n] or []
	// suffix.
	IsArray bool
	// ArrayLen is the declared array length, or 0 for a
	// variable-length ("[]" or "[0]") array such as the classic
	// __data_loc string convention.
	ArrayLen int

	// IsDynArray is true for the "__data_loc" convention: the field's
	// stored value is itself an offset+length pair describing where
	// the real array lives later in the record.
	IsDynArray bool
}

// EventFormat is the parsed field layout of one tracepoint, as
// produced by ParseFormat from its format text.
type EventFormat struct {
	Name   string
	ID     int
	Fields []FieldFormat

	// CommonCount is the number of leading Fields that are common to
	// every tracepoint (common_type, common_flags,
	// common_preempt_count, common_pid, ...), determined by the blank
	// line that separates the "common" field group from the
	// tracepoint-specific one in the format text.
	CommonCount int

	// PrintFmt is the raw text of the trailing "print fmt:" line,
	// kept verbatim; this package does not interpret its format
	// directives.
	PrintFmt string
}

// CommonTypeField returns the format's common_type field, which every
// tracepoint format must declare: it identifies which tracepoint
// produced a given raw record.
func (f *EventFormat) CommonTypeField() (FieldFormat, bool) {
	for _, field := range f.Fields {
		if field.Name == "common_type" {
			return field, true
		}
	}
	return FieldFormat{}, false
}

// ParseFormat parses the text of one tracepoint's tracefs "format"
// file. longIs64 selects the width of the C "long"/"unsigned long"
// type for Size inference on platforms where the format text omits an
// explicit size (it never does in observed kernels, but Size falls
// back to this when a "size:" line is missing or zero).
// systemName is recorded for error messages only.
func ParseFormat(longIs64 bool, systemName string, text string) (EventFormat, error) {
	var ef EventFormat
	sc := bufio.NewScanner(strings.NewReader(text))
	inFormat := false
	blankSeen := false
	sawFirstFieldGroup := false

	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "name:"):
			ef.Name = strings.TrimSpace(strings.TrimPrefix(trimmed, "name:"))
		case strings.HasPrefix(trimmed, "ID:"):
			idStr := strings.TrimSpace(strings.TrimPrefix(trimmed, "ID:"))
			id, err := strconv.Atoi(idStr)
			if err != nil {
				return EventFormat{}, fmt.Errorf("tracefmt: %s: bad ID %q: %w", systemName, idStr, err)
			}
			ef.ID = id
		case trimmed == "format:":
			inFormat = true
		case strings.HasPrefix(trimmed, "print fmt:"):
			ef.PrintFmt = strings.TrimSpace(strings.TrimPrefix(trimmed, "print fmt:"))
			inFormat = false
		case inFormat && trimmed == "":
			if sawFirstFieldGroup && !blankSeen {
				blankSeen = true
				ef.CommonCount = len(ef.Fields)
			}
		case inFormat && strings.HasPrefix(trimmed, "field:"):
			field, err := parseFieldLine(trimmed, longIs64)
			if err != nil {
				return EventFormat{}, fmt.Errorf("tracefmt: %s: %w", systemName, err)
			}
			ef.Fields = append(ef.Fields, field)
			sawFirstFieldGroup = true
		}
	}
	if err := sc.Err(); err != nil {
		return EventFormat{}, fmt.Errorf("tracefmt: %s: %w", systemName, err)
	}
	if !blankSeen {
		// Some formats never include a blank separator (e.g. a
		// syscall tracepoint with no user fields); treat all fields
		// as common in that degenerate case.
		ef.CommonCount = len(ef.Fields)
	}
	if ef.Name == "" {
		return EventFormat{}, fmt.Errorf("tracefmt: %s: missing name: line", systemName)
	}
	return ef, nil
}

// parseFieldLine parses a single "field:<decl>;\toffset:<n>;\tsize:<n>;\tsigned:<0|1>;" line.
func parseFieldLine(line string, longIs64 bool) (FieldFormat, error) {
	var f FieldFormat
	parts := strings.Split(line, ";")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch key {
		case "field", "field special":
			decl, name, isArray, arrayLen, dynArray := parseDecl(val)
			f.Declared = decl
			f.Name = name
			f.IsArray = isArray
			f.ArrayLen = arrayLen
			f.IsDynArray = dynArray
		case "offset":
			n, err := strconv.Atoi(val)
			if err != nil {
				return f, fmt.Errorf("bad offset %q: %w", val, err)
			}
			f.Offset = n
		case "size":
			n, err := strconv.Atoi(val)
			if err != nil {
				return f, fmt.Errorf("bad size %q: %w", val, err)
			}
			f.Size = n
		case "signed":
			f.Signed = val == "1"
		}
	}
	if f.Size == 0 && f.Declared != "" {
		f.Size = inferSize(f.Declared, longIs64)
	}
	if f.Name == "" {
		return f, fmt.Errorf("field line missing a name: %q", line)
	}
	return f, nil
}

// parseDecl splits a declaration like "unsigned long prev_state",
// "char prev_comm[16]", "__data_loc char[] name", or "int[4] values"
// into its base type text, field name, and array metadata.
func parseDecl(decl string) (declared, name string, isArray bool, arrayLen int, isDynArray bool) {
	decl = strings.TrimSpace(decl)
	isDynArray = strings.HasPrefix(decl, "__data_loc")
	if isDynArray {
		decl = strings.TrimSpace(strings.TrimPrefix(decl, "__data_loc"))
	}

	open := strings.IndexByte(decl, '[')
	arrayText := ""
	if open >= 0 {
		close := strings.IndexByte(decl[open:], ']')
		if close >= 0 {
			arrayText = decl[open+1 : open+close]
			isArray = true
			decl = decl[:open] + decl[open+close+1:]
		}
	}

	decl = strings.TrimSpace(decl)
	fields := strings.Fields(decl)
	if len(fields) == 0 {
		return decl, "", isArray, 0, isDynArray
	}
	name = fields[len(fields)-1]
	name = strings.TrimPrefix(name, "*")
	declared = strings.TrimSpace(strings.Join(fields[:len(fields)-1], " "))

	if arrayText != "" {
		if n, err := strconv.Atoi(arrayText); err == nil {
			arrayLen = n
		}
	}
	return declared, name, isArray, arrayLen, isDynArray
}

// inferSize guesses a field's byte size from its declared C type when
// the format text's own "size:" field is absent or zero.
func inferSize(declared string, longIs64 bool) int {
	switch strings.TrimSpace(declared) {
	case "char", "unsigned char", "u8", "int8_t", "uint8_t":
		return 1
	case "short", "unsigned short", "u16", "int16_t", "uint16_t":
		return 2
	case "int", "unsigned int", "u32", "int32_t", "uint32_t", "pid_t":
		return 4
	case "long", "unsigned long":
		if longIs64 {
			return 8
		}
		return 4
	case "long long", "unsigned long long", "u64", "int64_t", "uint64_t":
		return 8
	default:
		return 0
	}
}
