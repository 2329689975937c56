// Package storage persists scan results so later stages and later invocations
// can analyze a cluster without rescanning it.
//
// # Overview
//
// A full scan costs up to 42 round trips per server, so its output is kept on
// disk in the dump folder and reused when the operator asks for cached mode.
// Two snapshots exist:
//
//	┌─────────────────────────────────────┐
//	│  scanner                            │
//	└─────────────────────────────────────┘
//	                 │ []RawRecord
//	                 ▼
//	┌─────────────────────────────────────┐
//	│  memcache-key-dump-raw.txt          │
//	│  SLAB=3 ITEM key [12 b; 40 s]       │
//	└─────────────────────────────────────┘
//	                 │ taxonomy parser
//	                 ▼
//	┌─────────────────────────────────────┐
//	│  memcache-key-dump-parsed.txt       │
//	│  3<TAB>prefix<TAB>bin<TAB>item      │
//	└─────────────────────────────────────┘
//
// The parsed snapshot is always regenerated from the raw one, never edited on
// its own.
//
// # Implementations
//
// FileStore: the dump folder on disk
//   - Plain text, newline-delimited, formats fixed by RawRecord.Line and
//     ParsedRecord.Line
//   - Writes go to a temp file in the same folder, then rename, so a crashed
//     scan leaves the previous snapshot intact
//   - Content export writes one file per key under content-dump/
//
// MemoryStore: in-memory copy of the same data
//   - Used by tests and dry runs
//   - Thread-safe with sync.RWMutex
//
// # Errors
//
// Any failure to create the folder or write a snapshot is returned to the
// caller and is fatal for the run. Reading a snapshot that was never written
// returns ErrSnapshotNotFound.
//
// # Concurrency
//
// One invocation writes a snapshot once and then only reads it. Two
// invocations sharing a dump folder are not supported.
package storage
