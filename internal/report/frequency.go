package report

import (
	"strconv"

	"golang.org/x/exp/slices"

	"github.com/dreamware/mcspy/internal/storage"
)

// Field selects one categorical value from a parsed record.
type Field func(storage.ParsedRecord) string

// Record fields usable as grouping keys.
var (
	ByPrefix Field = func(r storage.ParsedRecord) string { return r.Prefix }
	ByBin    Field = func(r storage.ParsedRecord) string { return r.Bin }
	BySlab   Field = func(r storage.ParsedRecord) string { return strconv.Itoa(r.Slab) }
)

// Values projects records onto field f, keeping record order.
func Values(records []storage.ParsedRecord, f Field) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = f(r)
	}
	return out
}

// Where returns the records whose field f equals value.
func Where(records []storage.ParsedRecord, f Field, value string) []storage.ParsedRecord {
	var out []storage.ParsedRecord
	for _, r := range records {
		if f(r) == value {
			out = append(out, r)
		}
	}
	return out
}

// Count is one row of a frequency table.
type Count struct {
	Value string
	Count int
}

// Frequency counts occurrences of each value and returns them by descending
// count. Ties keep the order in which values were first seen. A limit of
// zero or less returns every value.
func Frequency(values []string, limit int) []Count {
	index := make(map[string]int)
	var counts []Count
	for _, v := range values {
		if i, ok := index[v]; ok {
			counts[i].Count++
			continue
		}
		index[v] = len(counts)
		counts = append(counts, Count{Value: v, Count: 1})
	}

	slices.SortStableFunc(counts, func(a, b Count) int {
		return b.Count - a.Count
	})

	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

// SignificantPrefixes returns the prefixes holding at least threshold records,
// most frequent first.
func SignificantPrefixes(records []storage.ParsedRecord, threshold int) []Count {
	var out []Count
	for _, c := range Frequency(Values(records, ByPrefix), 0) {
		if c.Count >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// CountRows lays counts out as [count, value] table rows.
func CountRows(counts []Count) [][]string {
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{strconv.Itoa(c.Count), c.Value}
	}
	return rows
}
