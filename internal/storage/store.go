package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// ErrSnapshotNotFound is returned when a snapshot has not been written yet
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot file names inside the dump folder.
const (
	RawFileName    = "memcache-key-dump-raw.txt"
	ParsedFileName = "memcache-key-dump-parsed.txt"
	ContentDirName = "content-dump"
)

// Store defines the interface for snapshot storage
// Writes replace a snapshot wholesale; a reader never sees a partial write
type Store interface {
	// WriteRaw replaces the raw snapshot
	WriteRaw(records []RawRecord) error

	// ReadRaw returns the raw snapshot in stored order
	// Returns ErrSnapshotNotFound if it was never written
	ReadRaw() ([]RawRecord, error)

	// WriteParsed replaces the parsed snapshot
	WriteParsed(records []ParsedRecord) error

	// ReadParsed returns the parsed snapshot in stored order
	// Returns ErrSnapshotNotFound if it was never written
	ReadParsed() ([]ParsedRecord, error)

	// HasRaw reports whether a non-empty raw snapshot exists
	HasRaw() bool

	// WriteContent stores the value of one key for content export
	WriteContent(key string, value []byte) error

	// Clear removes both snapshots
	// No error if they don't exist
	Clear() error

	// Stats returns record counts, logged after every refresh and export
	Stats() StoreStats
}

// StoreStats contains statistics about the store
type StoreStats struct {
	RawRecords    int // Records in the raw snapshot
	ParsedRecords int // Records in the parsed snapshot
	Contents      int // Values written by content export
}

// FileStore implements Store on a dump folder using the plain text formats
// of RawRecord.Line and ParsedRecord.Line, one record per line.
type FileStore struct {
	dir      string
	mu       sync.Mutex
	contents int
}

// NewFileStore creates the dump folder if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dump folder %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) rawPath() string    { return filepath.Join(f.dir, RawFileName) }
func (f *FileStore) parsedPath() string { return filepath.Join(f.dir, ParsedFileName) }
func (f *FileStore) contentDir() string { return filepath.Join(f.dir, ContentDirName) }

// WriteRaw replaces the raw snapshot atomically
func (f *FileStore) WriteRaw(records []RawRecord) error {
	return f.writeLines(f.rawPath(), len(records), func(i int) string {
		return records[i].Line()
	})
}

// ReadRaw loads the raw snapshot, skipping lines of unexpected shape
func (f *FileStore) ReadRaw() ([]RawRecord, error) {
	var out []RawRecord
	err := readLines(f.rawPath(), func(line string) {
		if rec, ok := ParseRawLine(line); ok {
			out = append(out, rec)
		}
	})
	return out, err
}

// WriteParsed replaces the parsed snapshot atomically
func (f *FileStore) WriteParsed(records []ParsedRecord) error {
	return f.writeLines(f.parsedPath(), len(records), func(i int) string {
		return records[i].Line()
	})
}

// ReadParsed loads the parsed snapshot, skipping lines of unexpected shape
func (f *FileStore) ReadParsed() ([]ParsedRecord, error) {
	var out []ParsedRecord
	err := readLines(f.parsedPath(), func(line string) {
		if rec, ok := ParseParsedLine(line); ok {
			out = append(out, rec)
		}
	})
	return out, err
}

// HasRaw reports whether the raw snapshot exists and is non-empty
func (f *FileStore) HasRaw() bool {
	info, err := os.Stat(f.rawPath())
	return err == nil && info.Size() > 0
}

// WriteContent writes value to content-dump/<query-escaped key>
func (f *FileStore) WriteContent(key string, value []byte) error {
	dir := f.contentDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create content folder %s: %w", dir, err)
	}
	path := filepath.Join(dir, url.QueryEscape(key))
	if err := os.WriteFile(path, value, 0o644); err != nil {
		return fmt.Errorf("write content %s: %w", path, err)
	}

	f.mu.Lock()
	f.contents++
	f.mu.Unlock()
	return nil
}

// Clear removes both snapshots (idempotent)
func (f *FileStore) Clear() error {
	for _, p := range []string{f.rawPath(), f.parsedPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// Stats counts the lines of both snapshots
func (f *FileStore) Stats() StoreStats {
	f.mu.Lock()
	contents := f.contents
	f.mu.Unlock()

	return StoreStats{
		RawRecords:    countLines(f.rawPath()),
		ParsedRecords: countLines(f.parsedPath()),
		Contents:      contents,
	}
}

// writeLines writes to a temp file in the same folder and renames it over
// path, so readers see either the old or the new snapshot.
func (f *FileStore) writeLines(path string, n int, line func(i int) string) error {
	tmp, err := os.CreateTemp(f.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	for i := 0; i < n; i++ {
		if _, err := w.WriteString(line(i) + "\n"); err != nil {
			return fmt.Errorf("write snapshot %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync snapshot %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", path, err)
	}
	committed = true
	return nil
}

func readLines(path string, fn func(line string)) error {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			fn(line)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read snapshot %s: %w", path, err)
		}
	}
}

func countLines(path string) int {
	n := 0
	_ = readLines(path, func(string) { n++ })
	return n
}

// MemoryStore implements Store in memory
// Uses sync.RWMutex for thread-safe concurrent access
type MemoryStore struct {
	mu       sync.RWMutex      // Protects all fields
	raw      []RawRecord       // nil until written
	parsed   []ParsedRecord    // nil until written
	rawSet   bool              // raw snapshot written at least once
	parsSet  bool              // parsed snapshot written at least once
	contents map[string][]byte // Exported values by key
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contents: make(map[string][]byte),
	}
}

// WriteRaw stores a copy of records
func (m *MemoryStore) WriteRaw(records []RawRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.raw = append([]RawRecord(nil), records...)
	m.rawSet = true
	return nil
}

// ReadRaw returns a copy of the raw snapshot
func (m *MemoryStore) ReadRaw() ([]RawRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.rawSet {
		return nil, ErrSnapshotNotFound
	}
	return append([]RawRecord(nil), m.raw...), nil
}

// WriteParsed stores a copy of records
func (m *MemoryStore) WriteParsed(records []ParsedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parsed = append([]ParsedRecord(nil), records...)
	m.parsSet = true
	return nil
}

// ReadParsed returns a copy of the parsed snapshot
func (m *MemoryStore) ReadParsed() ([]ParsedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.parsSet {
		return nil, ErrSnapshotNotFound
	}
	return append([]ParsedRecord(nil), m.parsed...), nil
}

// HasRaw reports whether a non-empty raw snapshot was written
func (m *MemoryStore) HasRaw() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.raw) > 0
}

// WriteContent stores a copy of value
func (m *MemoryStore) WriteContent(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.contents[key] = stored
	return nil
}

// Clear forgets both snapshots
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.raw, m.parsed = nil, nil
	m.rawSet, m.parsSet = false, false
	return nil
}

// Stats returns storage statistics
func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return StoreStats{
		RawRecords:    len(m.raw),
		ParsedRecords: len(m.parsed),
		Contents:      len(m.contents),
	}
}
