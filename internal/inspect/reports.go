package inspect

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dreamware/mcspy/internal/cluster"
	"github.com/dreamware/mcspy/internal/render"
	"github.com/dreamware/mcspy/internal/report"
	"github.com/dreamware/mcspy/internal/slab"
)

// Table headers of the key listing.
var (
	ParsedKeyHeaders = []string{"Slab", "Prefix", "Bin", "Id"}
	RawKeyHeaders    = []string{"Slab", "--", "Item", "Size/Age"}
)

// Keys lists the snapshot as a table: parsed records by default, raw records
// when the configuration asks for raw output. Only records whose snapshot
// line contains the key filter are listed.
func (i *Inspector) Keys(ctx context.Context) error {
	snap, err := i.Refresh(ctx)
	if err != nil {
		return err
	}

	var rows [][]string
	headers := ParsedKeyHeaders
	if i.cfg.Raw {
		headers = RawKeyHeaders
		for _, r := range snap.Raw {
			if i.cfg.KeyMatches(r.Line()) {
				rows = append(rows, []string{"SLAB=" + strconv.Itoa(r.Slab), "ITEM", r.Key, r.Meta()})
			}
		}
	} else {
		for _, r := range snap.Parsed {
			if i.cfg.KeyMatches(r.Line()) {
				rows = append(rows, r.Fields())
			}
		}
	}

	_, err = io.WriteString(i.out, render.Table(rows, headers))
	return err
}

// UsageReport prints how the cache is used: key counts by prefix and by bin,
// crosstabs of prefix against bin and slab, then a bin/slab crosstab and the
// most common item patterns of every prefix with enough records.
func (i *Inspector) UsageReport(ctx context.Context) error {
	snap, err := i.Refresh(ctx)
	if err != nil {
		return err
	}
	records := snap.Parsed

	var b strings.Builder
	b.WriteString(render.Section("Count by memcache_key_prefix"))
	b.WriteString(render.Table(
		report.CountRows(report.Frequency(report.Values(records, report.ByPrefix), i.cfg.FrequencyLimit)),
		[]string{"Count", "Prefix"}))

	b.WriteString(render.Section("Count by Bin"))
	b.WriteString(render.Table(
		report.CountRows(report.Frequency(report.Values(records, report.ByBin), i.cfg.FrequencyLimit)),
		[]string{"Count", "Bin"}))

	writeCrosstab(&b, "Prefix", "Bin", report.Crosstab(records, report.ByBin, report.ByPrefix))
	writeCrosstab(&b, "Prefix", "Slab", report.Crosstab(records, report.BySlab, report.ByPrefix))

	for _, p := range report.SignificantPrefixes(records, i.cfg.MinPrefixCount) {
		subset := report.Where(records, report.ByPrefix, p.Value)

		b.WriteString(render.Section("Analysing prefix = " + p.Value))
		writeCrosstab(&b, "Cache_Bins", "Slab", report.Crosstab(subset, report.BySlab, report.ByBin))

		b.WriteString("Top patterns observed:\n")
		b.WriteString(render.Table(
			report.CountRows(report.Patterns(subset, i.cfg.PatternLimit)),
			[]string{"Count", "Pattern"}))
	}

	if _, err := io.WriteString(i.out, b.String()); err != nil {
		return err
	}

	if i.cfg.Cleanup {
		i.logger.Printf("Cleaning up temporary files")
		if err := i.store.Clear(); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}
	return nil
}

// writeCrosstab renders m under a "Crosstab: <columns> / <rows>" section.
func writeCrosstab(b *strings.Builder, colHeader, rowHeader string, m *report.Matrix) {
	b.WriteString(render.Section("Crosstab: " + colHeader + " / " + rowHeader))
	headers, rows := m.Table(rowHeader)
	b.WriteString(render.Table(rows, headers))
}

// StatsReport prints the general statistics of every server verbatim, then
// a slab/metric crosstab of each server's slab statistics.
func (i *Inspector) StatsReport(ctx context.Context) error {
	var b strings.Builder

	b.WriteString(render.Section("Runtime Statistics"))
	for _, srv := range i.cfg.Servers {
		fmt.Fprintf(&b, "-- Server %s\n", srv)
		if text, ok := i.query(ctx, srv, "stats"); ok {
			b.WriteString(text)
		}
		b.WriteString("\n")
	}

	b.WriteString(render.Section("Slab Statistics"))
	for _, srv := range i.cfg.Servers {
		resp, err := i.sender.Send(ctx, srv.Addr(), "stats slabs")
		if err != nil {
			i.logger.Printf("Server %s: %v", srv, err)
			continue
		}
		m := report.SlabStats(slab.ParseStats(resp.Stats()))
		writeCrosstab(&b, "Metric", "Slab", m)
	}

	_, err := io.WriteString(i.out, b.String())
	return err
}

// ServerConfig prints the settings of every server verbatim.
func (i *Inspector) ServerConfig(ctx context.Context) error {
	var b strings.Builder

	b.WriteString(render.Section("Memcache server configuration"))
	for _, srv := range i.cfg.Servers {
		fmt.Fprintf(&b, "-- Server %s port %d\n", srv.Host, srv.Port)
		if text, ok := i.query(ctx, srv, "stats settings"); ok {
			b.WriteString(text)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(i.out, b.String())
	return err
}

// query sends command and returns the reply text. Failures are logged and
// reported as no data.
func (i *Inspector) query(ctx context.Context, srv cluster.ServerInfo, command string) (string, bool) {
	resp, err := i.sender.Send(ctx, srv.Addr(), command)
	if err != nil {
		i.logger.Printf("Server %s: %v", srv, err)
		return "", false
	}
	return resp.Text(), true
}
