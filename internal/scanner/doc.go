// Package scanner enumerates the keys stored on a set of memcache servers.
//
// A scan walks every slab id of a range on every server and issues one
// "stats cachedump <slab> 0" per (server, slab) pair, each on its own
// connection:
//
//	server A: slab 1 → slab 2 → ... → slab 42
//	server B: slab 1 → slab 2 → ... → slab 42     (in parallel with A)
//	server C: unreachable at slab 1 → stopped
//
// Slabs of one server are always scanned in order so a server never sees two
// cachedump commands at once. Servers run in parallel up to a worker limit.
// The merged records are sorted by (server, slab, key), so output does not
// depend on scheduling.
//
// Failures never abort a scan. An unreachable server contributes no records;
// a slab that times out or answers with an error is skipped. Each server's
// outcome is reported in a ServerScan summary.
package scanner
