package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dreamware/mcspy/internal/protocol"
)

// TestSelect tests the full range and single slab selectors
func TestSelect(t *testing.T) {
	full := Select(0)
	assert.Len(t, full, 42)
	assert.Equal(t, 1, full[0])
	assert.Equal(t, 42, full[len(full)-1])
	assert.Equal(t, "1..42", full.String())

	single := Select(7)
	assert.Equal(t, Range{7}, single)
	assert.Equal(t, "7", single.String())
	assert.True(t, single.Contains(7))
	assert.False(t, single.Contains(8))

	assert.Equal(t, "none", Range{}.String())
}

// TestCachedumpCommand tests the wire form of the enumeration command
func TestCachedumpCommand(t *testing.T) {
	assert.Equal(t, "stats cachedump 12 0", CachedumpCommand(12))
}

// TestParseStats tests the allow-list and the slab id extraction
func TestParseStats(t *testing.T) {
	in := []protocol.Stat{
		{Name: "1:chunk_size", Value: "96"},
		{Name: "1:free_chunks", Value: "10"},
		{Name: "1:get_hits", Value: "42"},
		{Name: "12:used_chunks", Value: "7"},
		{Name: "active_slabs", Value: "2"},
		{Name: "total_malloced", Value: "2097152"},
		{Name: "x:chunk_size", Value: "1"},
	}

	got := ParseStats(in)
	assert.Equal(t, []Stat{
		{Slab: 1, Metric: "chunk_size", Value: "96"},
		{Slab: 1, Metric: "get_hits", Value: "42"},
		{Slab: 12, Metric: "used_chunks", Value: "7"},
	}, got)
}

// TestStatNumeric tests numeric conversion of metric values
func TestStatNumeric(t *testing.T) {
	assert.Equal(t, 96.0, Stat{Value: "96"}.Numeric())
	assert.Equal(t, 0.5, Stat{Value: "0.5"}.Numeric())
	assert.Equal(t, 0.0, Stat{Value: "n/a"}.Numeric())
}
