package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/dreamware/mcspy/internal/slab"
	"github.com/dreamware/mcspy/internal/storage"
)

// Labels used when a matrix is laid out as a table.
const (
	TotalLabel = "TOTAL"
	EmptyCell  = "-"
)

// Matrix accumulates numeric values by (row, column) and keeps row totals,
// column totals and the grand total in step with every Add.
// A Matrix is not safe for concurrent use; build it in one pass, then read.
type Matrix struct {
	cells     map[string]map[string]float64
	rowTotals map[string]float64
	colTotals map[string]float64
	total     float64
}

// NewMatrix returns an empty matrix.
func NewMatrix() *Matrix {
	return &Matrix{
		cells:     make(map[string]map[string]float64),
		rowTotals: make(map[string]float64),
		colTotals: make(map[string]float64),
	}
}

// Add accumulates v into cell (row, col).
func (m *Matrix) Add(row, col string, v float64) {
	r, ok := m.cells[row]
	if !ok {
		r = make(map[string]float64)
		m.cells[row] = r
	}
	r[col] += v
	m.rowTotals[row] += v
	m.colTotals[col] += v
	m.total += v
}

// Cell returns the accumulated value of (row, col), 0 if never added.
func (m *Matrix) Cell(row, col string) float64 { return m.cells[row][col] }

// RowTotal returns the sum of row across all columns.
func (m *Matrix) RowTotal(row string) float64 { return m.rowTotals[row] }

// ColumnTotal returns the sum of col across all rows.
func (m *Matrix) ColumnTotal(col string) float64 { return m.colTotals[col] }

// Total returns the grand total.
func (m *Matrix) Total() float64 { return m.total }

// Empty reports whether nothing was ever added.
func (m *Matrix) Empty() bool { return len(m.cells) == 0 }

// Rows returns the row keys in display order. Integer keys sort numerically
// ahead of the rest, which differs from plain lexicographic order.
func (m *Matrix) Rows() []string { return sortedKeys(m.rowTotals) }

// Columns returns the column keys in the same order as Rows.
func (m *Matrix) Columns() []string { return sortedKeys(m.colTotals) }

// Check recomputes every total from the cells and compares them with the
// running totals. Row totals and column totals must each add up to the grand
// total.
func (m *Matrix) Check() error {
	var byRows, byCols float64
	colSums := make(map[string]float64)

	for row, cols := range m.cells {
		var sum float64
		for col, v := range cols {
			sum += v
			colSums[col] += v
		}
		if !near(sum, m.rowTotals[row]) {
			return fmt.Errorf("row %q: cells sum to %v, total is %v", row, sum, m.rowTotals[row])
		}
		byRows += m.rowTotals[row]
	}
	for col, total := range m.colTotals {
		if !near(colSums[col], total) {
			return fmt.Errorf("column %q: cells sum to %v, total is %v", col, colSums[col], total)
		}
		byCols += total
	}

	if !near(byRows, m.total) {
		return fmt.Errorf("row totals sum to %v, grand total is %v", byRows, m.total)
	}
	if !near(byCols, m.total) {
		return fmt.Errorf("column totals sum to %v, grand total is %v", byCols, m.total)
	}
	return nil
}

// Table lays the matrix out for rendering:
//
//	header: [rowHeader, TOTAL, col1, col2, ...]
//	first:  [TOTAL, grand, colTotal1, colTotal2, ...]
//	then:   [row, rowTotal, cell1, cell2, ...]   one per row
//
// Cells that are absent or not positive show EmptyCell; totals are always
// numeric. An empty matrix yields no rows.
func (m *Matrix) Table(rowHeader string) ([]string, [][]string) {
	cols := m.Columns()
	headers := append([]string{rowHeader, TotalLabel}, cols...)
	if m.Empty() {
		return headers, nil
	}

	rows := make([][]string, 0, len(m.rowTotals)+1)

	totals := []string{TotalLabel, formatNumber(m.total)}
	for _, c := range cols {
		totals = append(totals, formatNumber(m.colTotals[c]))
	}
	rows = append(rows, totals)

	for _, r := range m.Rows() {
		row := []string{r, formatNumber(m.rowTotals[r])}
		for _, c := range cols {
			v, ok := m.cells[r][c]
			if !ok || v <= 0 {
				row = append(row, EmptyCell)
				continue
			}
			row = append(row, formatNumber(v))
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// Crosstab counts records by (row field, column field).
func Crosstab(records []storage.ParsedRecord, row, col Field) *Matrix {
	m := NewMatrix()
	for _, r := range records {
		m.Add(row(r), col(r), 1)
	}
	return m
}

// SlabStats sums "stats slabs" values with one row per slab and one column
// per metric. Non-numeric values count as zero.
func SlabStats(stats []slab.Stat) *Matrix {
	m := NewMatrix()
	for _, st := range stats {
		m.Add(strconv.Itoa(st.Slab), st.Metric, st.Numeric())
	}
	return m
}

// sortedKeys orders keys so that integer keys come first in numeric order
// and the rest follow lexicographically. Slab ids therefore read 1, 2, 10
// rather than 1, 10, 2.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		if ai != bi {
			if ai < bi {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}
