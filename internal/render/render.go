// Package render draws plain-text tables and section headers.
//
// Output is a pure function of the input: the same rows and headers always
// produce the same text. Column widths are measured in terminal cells, so
// wide and combining characters line up.
//
//	+------+-------+
//	| Slab | Count |
//	+------+-------+
//	| 1    | 12    |
//	| 10   | 3     |
//	+------+-------+
package render

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// sectionRule is drawn above every section title.
const sectionRule = "._____________________________________________________________________________"

// Table renders rows under headers. Rows may be longer than headers; missing
// cells render blank. Nothing is drawn when rows is empty.
func Table(rows [][]string, headers []string) string {
	if len(rows) == 0 {
		return ""
	}

	widths := make([]int, len(headers))
	grow := func(i int, cell string) {
		for len(widths) <= i {
			widths = append(widths, 0)
		}
		if w := runewidth.StringWidth(cell); w > widths[i] {
			widths[i] = w
		}
	}
	for i, h := range headers {
		grow(i, h)
	}
	for _, row := range rows {
		for i, cell := range row {
			grow(i, cell)
		}
	}

	var sep strings.Builder
	sep.WriteByte('+')
	for _, w := range widths {
		sep.WriteString(strings.Repeat("-", w+2))
		sep.WriteByte('+')
	}
	sep.WriteByte('\n')

	var b strings.Builder
	if len(headers) > 0 {
		b.WriteString(sep.String())
		writeRow(&b, headers, widths)
	}
	b.WriteString(sep.String())
	for _, row := range rows {
		writeRow(&b, row, widths)
	}
	b.WriteString(sep.String())
	return b.String()
}

func writeRow(b *strings.Builder, row []string, widths []int) {
	b.WriteByte('|')
	for i, w := range widths {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		b.WriteByte(' ')
		b.WriteString(runewidth.FillRight(cell, w))
		b.WriteString(" |")
	}
	b.WriteByte('\n')
}

// Section renders a titled section header.
func Section(title string) string {
	return "\n" + sectionRule + "\n|  " + title + "\n"
}
