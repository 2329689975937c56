package storage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RawRecord is one item observed by a cachedump scan.
// Identity is (Server, Slab, Key); duplicates across scans are not merged.
type RawRecord struct {
	Server     string // host:port the item was seen on; empty when loaded from disk
	Slab       int    // slab class id, >= 1
	Key        string // key exactly as sent by the server
	SizeBytes  int64
	AgeSeconds int64
}

// Line renders the raw snapshot line: "SLAB=<n> ITEM <key> [<bytes> b; <age> s]".
func (r RawRecord) Line() string {
	return fmt.Sprintf("SLAB=%d ITEM %s [%d b; %d s]", r.Slab, r.Key, r.SizeBytes, r.AgeSeconds)
}

// Meta renders the bracketed size/age part of the line.
func (r RawRecord) Meta() string {
	return fmt.Sprintf("[%d b; %d s]", r.SizeBytes, r.AgeSeconds)
}

var rawLine = regexp.MustCompile(`^SLAB=(\d+) ITEM (\S+)(?: \[(\d+) b; (\d+) s\])?`)

// ParseRawLine is the inverse of RawRecord.Line. Lines of any other shape
// are rejected.
func ParseRawLine(line string) (RawRecord, bool) {
	m := rawLine.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return RawRecord{}, false
	}

	slab, err := strconv.Atoi(m[1])
	if err != nil || slab < 1 {
		return RawRecord{}, false
	}

	rec := RawRecord{Slab: slab, Key: m[2]}
	if m[3] != "" {
		rec.SizeBytes, _ = strconv.ParseInt(m[3], 10, 64)
		rec.AgeSeconds, _ = strconv.ParseInt(m[4], 10, 64)
	}
	return rec, true
}

// ParsedRecord is a raw key split into its taxonomy fields.
type ParsedRecord struct {
	Slab   int
	Prefix string // application namespace
	Bin    string // logical storage bucket
	Item   string // entity identifier, may be empty
}

// Line renders the parsed snapshot line: "<slab>\t<prefix>\t<bin>\t<item>".
func (p ParsedRecord) Line() string {
	return strconv.Itoa(p.Slab) + "\t" + p.Prefix + "\t" + p.Bin + "\t" + p.Item
}

// Fields returns the record as table cells in snapshot column order.
func (p ParsedRecord) Fields() []string {
	return []string{strconv.Itoa(p.Slab), p.Prefix, p.Bin, p.Item}
}

// ParseParsedLine is the inverse of ParsedRecord.Line.
func ParseParsedLine(line string) (ParsedRecord, bool) {
	cols := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(cols) != 4 {
		return ParsedRecord{}, false
	}

	slab, err := strconv.Atoi(cols[0])
	if err != nil {
		return ParsedRecord{}, false
	}
	if cols[1] == "" || cols[2] == "" {
		return ParsedRecord{}, false
	}

	return ParsedRecord{Slab: slab, Prefix: cols[1], Bin: cols[2], Item: cols[3]}, true
}
