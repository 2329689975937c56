package report

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/mcspy/internal/slab"
	"github.com/dreamware/mcspy/internal/storage"
)

func rec(slab int, prefix, bin, item string) storage.ParsedRecord {
	return storage.ParsedRecord{Slab: slab, Prefix: prefix, Bin: bin, Item: item}
}

// TestFrequencyStableTies verifies ties keep first-seen order.
func TestFrequencyStableTies(t *testing.T) {
	var values []string
	add := func(v string, n int) {
		for i := 0; i < n; i++ {
			values = append(values, v)
		}
	}
	add("a", 5)
	add("b", 9)
	add("c", 9)
	add("d", 1)

	got := Frequency(values, 2)
	assert.Equal(t, []Count{{Value: "b", Count: 9}, {Value: "c", Count: 9}}, got)

	// Same counts, c seen first
	values = nil
	add("a", 5)
	add("c", 9)
	add("b", 9)
	add("d", 1)
	got = Frequency(values, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Value)
	assert.Equal(t, "b", got[1].Value)
	assert.Equal(t, "a", got[2].Value)

	assert.Len(t, Frequency(values, 0), 4)
	assert.Empty(t, Frequency(nil, 10))
}

func TestCountRows(t *testing.T) {
	rows := CountRows([]Count{{Value: "site", Count: 12}, {Value: "other", Count: 3}})
	assert.Equal(t, [][]string{{"12", "site"}, {"3", "other"}}, rows)
}

// TestCrosstabRoundTrip checks the table layout of a small crosstab.
func TestCrosstabRoundTrip(t *testing.T) {
	m := NewMatrix()
	m.Add("X", "1", 1)
	m.Add("X", "1", 1)
	m.Add("Y", "2", 1)

	headers, rows := m.Table("Row")
	assert.Equal(t, []string{"Row", "TOTAL", "1", "2"}, headers)
	assert.Equal(t, [][]string{
		{"TOTAL", "3", "2", "1"},
		{"X", "2", "2", "-"},
		{"Y", "1", "-", "1"},
	}, rows)
	assert.NoError(t, m.Check())
}

func TestCrosstabFromRecords(t *testing.T) {
	records := []storage.ParsedRecord{
		rec(2, "site", "cache_page", "a"),
		rec(10, "site", "cache_page", "b"),
		rec(2, "site", "cache_menu", "c"),
		rec(1, "other", "cache", "d"),
	}

	// Columns are prefixes, rows are slabs
	m := Crosstab(records, BySlab, ByPrefix)
	headers, rows := m.Table("Slab")
	assert.Equal(t, []string{"Slab", "TOTAL", "other", "site"}, headers)
	assert.Equal(t, [][]string{
		{"TOTAL", "4", "1", "3"},
		{"1", "1", "1", "-"},
		{"2", "2", "-", "2"},
		{"10", "1", "-", "1"},
	}, rows)
}

func TestEmptyMatrix(t *testing.T) {
	m := NewMatrix()
	assert.True(t, m.Empty())
	headers, rows := m.Table("Bin")
	assert.Equal(t, []string{"Bin", "TOTAL"}, headers)
	assert.Empty(t, rows)
	assert.NoError(t, m.Check())
}

// TestCrosstabInvariant feeds random records and verifies totals agree both ways.
func TestCrosstabInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	prefixes := []string{"a", "b", "c", "d"}
	bins := []string{"cache", "cache_page", "cache_menu", "form"}

	for round := 0; round < 20; round++ {
		var records []storage.ParsedRecord
		n := rng.Intn(200)
		for i := 0; i < n; i++ {
			records = append(records, rec(
				1+rng.Intn(42),
				prefixes[rng.Intn(len(prefixes))],
				bins[rng.Intn(len(bins))],
				fmt.Sprint(i),
			))
		}

		m := Crosstab(records, ByBin, ByPrefix)
		require.NoError(t, m.Check())
		assert.Equal(t, float64(n), m.Total())

		var byRows, byCols float64
		for _, r := range m.Rows() {
			byRows += m.RowTotal(r)
		}
		for _, c := range m.Columns() {
			byCols += m.ColumnTotal(c)
		}
		assert.Equal(t, m.Total(), byRows)
		assert.Equal(t, m.Total(), byCols)
	}
}

func TestSlabStats(t *testing.T) {
	m := SlabStats([]slab.Stat{
		{Slab: 1, Metric: "chunk_size", Value: "96"},
		{Slab: 2, Metric: "chunk_size", Value: "120"},
		{Slab: 1, Metric: "get_hits", Value: "0"},
		{Slab: 2, Metric: "get_hits", Value: "n/a"},
	})

	headers, rows := m.Table("Slab")
	assert.Equal(t, []string{"Slab", "TOTAL", "chunk_size", "get_hits"}, headers)
	assert.Equal(t, [][]string{
		{"TOTAL", "216", "216", "0"},
		{"1", "96", "96", "-"},
		{"2", "120", "120", "-"},
	}, rows)
}

func TestElidePattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"node%2F123", "node/123"},
		{"page.html_AbC-123_xyz", "page.html_{hash}"},
		{"block.html.twig_abcdefgh", "block.html.twig_{hash}"},
		{"theme:registry:1a2b3c4d5e", "theme:registry:{hex-hash}"},
		{"entity:42", "entity:{num}"},
		{"route%3A8080%3Adeadbeef", "route:{num}:{hex-hash}"},
		{"plain", "plain"},
		{"bad%zzescape", "bad%zzescape"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ElidePattern(tt.in))
		})
	}
}

// TestElidePatternIdempotent verifies placeholders are never re-matched.
func TestElidePatternIdempotent(t *testing.T) {
	inputs := []string{
		"page.html_AbC-123_xyz",
		"block.html.twig_0123456789abcdef",
		"config:system.site:12345",
		"0123456789abcdef0123456789abcdef",
		"views_data%3Aen%3A99",
		"x:{num}",
		".html_{hash}:{hex-hash}",
	}
	for _, in := range inputs {
		once := ElidePattern(in)
		assert.Equal(t, once, ElidePattern(once), "input %q", in)
	}

	// One decoding level per call
	for _, tc := range []struct{ in, once, twice string }{
		{"a%2541", "a%41", "aA"},
		{"node%252F1", "node%2F1", "node/1"},
	} {
		once := ElidePattern(tc.in)
		assert.Equal(t, tc.once, once)
		assert.Equal(t, tc.twice, ElidePattern(once))
	}
}

func TestPatterns(t *testing.T) {
	records := []storage.ParsedRecord{
		rec(1, "site", "cache_page", "node:1"),
		rec(1, "site", "cache_page", "node:2"),
		rec(1, "site", "cache_menu", "links:main"),
		rec(1, "site", "cache_page", "node:3"),
		rec(1, "site", "cache_render", "x.html_abcdef12"),
	}

	got := Patterns(records, 2)
	assert.Equal(t, []Count{
		{Value: "cache_page => node:{num}", Count: 3},
		{Value: "cache_menu => links:main", Count: 1},
	}, got)
}

func TestSignificantPrefixes(t *testing.T) {
	var records []storage.ParsedRecord
	for i := 0; i < 5; i++ {
		records = append(records, rec(1, "big", "b", ""))
	}
	for i := 0; i < 4; i++ {
		records = append(records, rec(1, "small", "b", ""))
	}
	for i := 0; i < 7; i++ {
		records = append(records, rec(1, "bigger", "b", ""))
	}

	got := SignificantPrefixes(records, 5)
	assert.Equal(t, []Count{{Value: "bigger", Count: 7}, {Value: "big", Count: 5}}, got)

	assert.Len(t, Where(records, ByPrefix, "small"), 4)
	assert.Equal(t, []string{"big", "big"}, Values(records[:2], ByPrefix))
}
