// Package inspect wires the scan, classify and aggregate stages into the
// operations mcspy exposes.
//
// Every key-based operation starts with Refresh, which either scans the
// cluster and rewrites both snapshots or, in cached mode, reuses the raw
// snapshot already in the dump folder:
//
//	Refresh ──► scanner ──► storage (raw) ──► taxonomy ──► storage (parsed)
//	   │
//	   ├─ Keys          table of parsed or raw records
//	   ├─ UsageReport   frequencies, crosstabs and patterns
//	   ├─ ExportContents values of every key, one file each
//	   └─ DeepSearch    keys whose value contains a string
//
// StatsReport and ServerConfig query the servers directly and never touch the
// snapshots.
//
// Unreachable servers and failed slabs are logged and skipped. Only storage
// failures end an operation with an error.
package inspect
