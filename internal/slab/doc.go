// Package slab models memcache slab classes: which slab ids a scan covers and
// the per-slab metrics reported by "stats slabs".
//
// # Overview
//
// memcache groups items of similar size into slab classes. The server has no
// command that lists every key, but "stats cachedump <id> 0" lists the keys of
// one slab class, so a full enumeration walks slab ids one by one:
//
//	slab 1   slab 2   slab 3   ...   slab 42
//	 96 B    120 B    152 B          ~1 MB
//	   │        │        │              │
//	   └────────┴────────┴──────────────┘
//	      one cachedump command per slab
//
// # Selection
//
// Select(0) yields the default range 1..42; Select(n) for n > 0 yields just n.
//
// # Metrics
//
// ParseStats keeps only "STAT <id>:<metric> <value>" lines whose metric is in
// ReportedMetrics (chunk_size, chunks_per_page, cmd_set, delete_hits,
// get_hits, used_chunks, total_chunks). Totals without a slab id are dropped.
package slab
