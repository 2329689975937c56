package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

var testRaw = []RawRecord{
	{Server: "a:11211", Slab: 1, Key: "site-cache-one", SizeBytes: 12, AgeSeconds: 3},
	{Server: "a:11211", Slab: 2, Key: "site%3Acache_page%3Anode%2F1", SizeBytes: 400, AgeSeconds: 0},
	{Server: "b:11211", Slab: 2, Key: "plainkey", SizeBytes: 1, AgeSeconds: 99},
}

var testParsed = []ParsedRecord{
	{Slab: 1, Prefix: "site", Bin: "cache", Item: "one"},
	{Slab: 2, Prefix: "site", Bin: "cache_page", Item: "node%2F1"},
	{Slab: 2, Prefix: "x", Bin: "y", Item: ""},
}

// TestRecordLines tests the fixed snapshot line formats
func TestRecordLines(t *testing.T) {
	if got := testRaw[0].Line(); got != "SLAB=1 ITEM site-cache-one [12 b; 3 s]" {
		t.Errorf("Unexpected raw line %q", got)
	}
	if got := testParsed[1].Line(); got != "2\tsite\tcache_page\tnode%2F1" {
		t.Errorf("Unexpected parsed line %q", got)
	}

	rec, ok := ParseRawLine("SLAB=7 ITEM k [5 b; 6 s]\n")
	if !ok {
		t.Fatal("Expected raw line to parse")
	}
	if rec.Slab != 7 || rec.Key != "k" || rec.SizeBytes != 5 || rec.AgeSeconds != 6 {
		t.Errorf("Unexpected record %+v", rec)
	}

	// Metadata is optional
	rec, ok = ParseRawLine("SLAB=7 ITEM k")
	if !ok || rec.Key != "k" {
		t.Errorf("Expected bare raw line to parse, got %+v %v", rec, ok)
	}

	for _, bad := range []string{"", "ITEM k [1 b; 1 s]", "SLAB=x ITEM k", "SLAB=0 ITEM k"} {
		if _, ok := ParseRawLine(bad); ok {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}

	for _, bad := range []string{"1\ta\tb", "x\ta\tb\tc", "1\t\tb\tc", "1\ta\t\tc"} {
		if _, ok := ParseParsedLine(bad); ok {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}

// TestStores runs the shared contract against both implementations
func TestStores(t *testing.T) {
	impls := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			fs, err := NewFileStore(filepath.Join(t.TempDir(), "dump"))
			if err != nil {
				t.Fatalf("Failed to create file store: %v", err)
			}
			return fs
		},
	}

	for name, newStore := range impls {
		t.Run(name, func(t *testing.T) {
			t.Run("missing snapshots", func(t *testing.T) {
				store := newStore(t)

				if store.HasRaw() {
					t.Error("New store should not have a raw snapshot")
				}
				if _, err := store.ReadRaw(); !errors.Is(err, ErrSnapshotNotFound) {
					t.Errorf("Expected ErrSnapshotNotFound, got %v", err)
				}
				if _, err := store.ReadParsed(); !errors.Is(err, ErrSnapshotNotFound) {
					t.Errorf("Expected ErrSnapshotNotFound, got %v", err)
				}
			})

			t.Run("write and read", func(t *testing.T) {
				store := newStore(t)

				if err := store.WriteRaw(testRaw); err != nil {
					t.Fatalf("WriteRaw failed: %v", err)
				}
				if err := store.WriteParsed(testParsed); err != nil {
					t.Fatalf("WriteParsed failed: %v", err)
				}
				if !store.HasRaw() {
					t.Error("Expected raw snapshot after write")
				}

				raw, err := store.ReadRaw()
				if err != nil {
					t.Fatalf("ReadRaw failed: %v", err)
				}
				if len(raw) != len(testRaw) {
					t.Fatalf("Expected %d raw records, got %d", len(testRaw), len(raw))
				}
				for i := range raw {
					want := testRaw[i]
					got := raw[i]
					// The file format does not carry the server
					got.Server, want.Server = "", ""
					if got != want {
						t.Errorf("Raw %d: expected %+v, got %+v", i, want, got)
					}
				}

				parsed, err := store.ReadParsed()
				if err != nil {
					t.Fatalf("ReadParsed failed: %v", err)
				}
				if len(parsed) != len(testParsed) {
					t.Fatalf("Expected %d parsed records, got %d", len(testParsed), len(parsed))
				}
				for i := range parsed {
					if parsed[i] != testParsed[i] {
						t.Errorf("Parsed %d: expected %+v, got %+v", i, testParsed[i], parsed[i])
					}
				}

				stats := store.Stats()
				if stats.RawRecords != 3 || stats.ParsedRecords != 3 {
					t.Errorf("Unexpected stats %+v", stats)
				}
			})

			t.Run("overwrite replaces wholesale", func(t *testing.T) {
				store := newStore(t)

				_ = store.WriteRaw(testRaw)
				if err := store.WriteRaw(testRaw[:1]); err != nil {
					t.Fatalf("WriteRaw failed: %v", err)
				}
				raw, _ := store.ReadRaw()
				if len(raw) != 1 {
					t.Errorf("Expected 1 record after overwrite, got %d", len(raw))
				}
			})

			t.Run("empty snapshot", func(t *testing.T) {
				store := newStore(t)

				if err := store.WriteRaw(nil); err != nil {
					t.Fatalf("WriteRaw failed: %v", err)
				}
				if store.HasRaw() {
					t.Error("Empty snapshot should not count as present")
				}
				raw, err := store.ReadRaw()
				if err != nil {
					t.Errorf("Reading an empty snapshot should not fail, got %v", err)
				}
				if len(raw) != 0 {
					t.Errorf("Expected no records, got %d", len(raw))
				}
			})

			t.Run("clear", func(t *testing.T) {
				store := newStore(t)

				_ = store.WriteRaw(testRaw)
				_ = store.WriteParsed(testParsed)
				if err := store.Clear(); err != nil {
					t.Fatalf("Clear failed: %v", err)
				}
				if store.HasRaw() {
					t.Error("Expected no raw snapshot after clear")
				}
				// Idempotent
				if err := store.Clear(); err != nil {
					t.Errorf("Second Clear failed: %v", err)
				}
			})

			t.Run("concurrent content writes", func(t *testing.T) {
				store := newStore(t)

				var wg sync.WaitGroup
				for i := 0; i < 20; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						key := "k/" + string(rune('a'+i))
						if err := store.WriteContent(key, []byte(key)); err != nil {
							t.Errorf("WriteContent failed: %v", err)
						}
					}(i)
				}
				wg.Wait()

				if got := store.Stats().Contents; got != 20 {
					t.Errorf("Expected 20 contents, got %d", got)
				}
			})
		})
	}
}

// TestFileStoreLayout tests file names, escaping and atomic replacement
func TestFileStoreLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dump")
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if err := store.WriteRaw(testRaw[:1]); err != nil {
		t.Fatalf("WriteRaw failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, RawFileName))
	if err != nil {
		t.Fatalf("Raw snapshot missing: %v", err)
	}
	if string(data) != "SLAB=1 ITEM site-cache-one [12 b; 3 s]\n" {
		t.Errorf("Unexpected raw file content %q", data)
	}

	if err := store.WriteContent("a b/c:d", []byte("v")); err != nil {
		t.Fatalf("WriteContent failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ContentDirName, "a+b%2Fc%3Ad")); err != nil {
		t.Errorf("Expected escaped content file: %v", err)
	}

	// No temp files left behind
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("Leftover temp file %s", e.Name())
		}
	}
}

// TestFileStoreUnwritableFolder tests that storage failures surface as errors
func TestFileStoreUnwritableFolder(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if _, err := NewFileStore(filepath.Join(blocker, "dump")); err == nil {
		t.Error("Expected error creating a dump folder under a regular file")
	}
}
