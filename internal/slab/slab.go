package slab

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/dreamware/mcspy/internal/protocol"
)

// Scan range bounds used when no single slab is requested.
const (
	FirstID = 1
	LastID  = 42
)

// ReportedMetrics is the allow-list of "stats slabs" metrics fed into reports.
var ReportedMetrics = []string{
	"chunk_size",
	"chunks_per_page",
	"cmd_set",
	"delete_hits",
	"get_hits",
	"used_chunks",
	"total_chunks",
}

// Range is an ordered set of slab ids to scan.
type Range []int

// Select returns the range for a slab selector: 0 means FirstID..LastID,
// any positive id means just that slab.
func Select(id int) Range {
	if id > 0 {
		return Range{id}
	}
	r := make(Range, 0, LastID-FirstID+1)
	for i := FirstID; i <= LastID; i++ {
		r = append(r, i)
	}
	return r
}

// Contains reports whether id is in the range.
func (r Range) Contains(id int) bool {
	return slices.Contains(r, id)
}

// String renders the range compactly for log lines.
func (r Range) String() string {
	switch len(r) {
	case 0:
		return "none"
	case 1:
		return strconv.Itoa(r[0])
	default:
		return fmt.Sprintf("%d..%d", r[0], r[len(r)-1])
	}
}

// CachedumpCommand returns the command that enumerates keys of slab id.
func CachedumpCommand(id int) string {
	return fmt.Sprintf("stats cachedump %d 0", id)
}

// Stat is one allow-listed metric of one slab.
type Stat struct {
	Slab   int
	Metric string
	Value  string
}

// Numeric returns the value as a number, or 0 if it is not numeric.
func (s Stat) Numeric() float64 {
	v, err := strconv.ParseFloat(s.Value, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseStats extracts per-slab metrics from a "stats slabs" reply.
// Lines such as "STAT active_slabs 3" that carry no slab id are skipped,
// as are metrics outside ReportedMetrics.
func ParseStats(stats []protocol.Stat) []Stat {
	var out []Stat
	for _, st := range stats {
		idStr, metric, ok := strings.Cut(st.Name, ":")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(idStr)
		if err != nil || id < 1 {
			continue
		}
		if !slices.Contains(ReportedMetrics, metric) {
			continue
		}
		out = append(out, Stat{Slab: id, Metric: metric, Value: st.Value})
	}
	return out
}
