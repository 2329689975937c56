// Package report turns classified cache records into aggregate tables.
//
// Three aggregations are provided, all pure functions over their input:
//
//   - Frequency counts values of one field and keeps the top N.
//   - Matrix is a crosstab with row totals, column totals and a grand total.
//   - Patterns clusters items after eliding hashes and numeric ids.
//
// Each aggregation also knows how to lay itself out as table rows and
// headers; drawing the table is left to the render package.
package report
