package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"oag/internal/analyzer"
	"oag/internal/depgraph"
	oagerrors "oag/internal/errors"
	"oag/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
}

func testStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.StateDir == "" {
		opts.StateDir = t.TempDir()
	}
	if opts.ConfigHash == "" {
		opts.ConfigHash = "cfg-1"
	}
	return NewStore(opts, testLogger())
}

func record(path string, deps ...string) *FileRecord {
	return &FileRecord{
		Path:        path,
		Fingerprint: "abc123",
		Size:        42,
		Result: &analyzer.FileAnalysis{
			Path:         path,
			Kind:         analyzer.KindShared,
			Dependencies: deps,
		},
		Dependencies: deps,
		LastScanned:  time.Now().UnixMilli(),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := testStore(t, Options{StateDir: dir})
	s.Put(record("/proj/a.ts", "/proj/b.ts"))
	s.Put(record("/proj/b.ts"))

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s2 := testStore(t, Options{StateDir: dir})
	warm, err := s2.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !warm {
		t.Fatal("expected warm load")
	}
	if s2.Count() != 2 {
		t.Fatalf("expected 2 records, got %d", s2.Count())
	}

	rec, ok := s2.Get("/proj/a.ts")
	if !ok {
		t.Fatal("record /proj/a.ts missing after load")
	}
	if rec.Fingerprint != "abc123" || rec.Size != 42 {
		t.Errorf("record fields lost: %+v", rec)
	}
	if len(rec.Dependencies) != 1 || rec.Dependencies[0] != "/proj/b.ts" {
		t.Errorf("dependencies lost: %v", rec.Dependencies)
	}
}

func TestLoadMissingSnapshotIsCold(t *testing.T) {
	s := testStore(t, Options{})
	warm, err := s.Load()
	if err != nil {
		t.Fatalf("missing snapshot must not error: %v", err)
	}
	if warm {
		t.Error("expected cold load")
	}
}

func TestLoadCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, snapshotName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := testStore(t, Options{StateDir: dir})
	warm, err := s.Load()
	if warm {
		t.Error("corrupt snapshot must load cold")
	}
	assertCode(t, err, oagerrors.CacheCorrupt)
}

func TestLoadVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, snapshot{
		Version:    SchemaVersion + 1,
		Timestamp:  time.Now().UnixMilli(),
		ConfigHash: "cfg-1",
		Records:    map[string]*FileRecord{"/proj/a.ts": record("/proj/a.ts")},
	})

	s := testStore(t, Options{StateDir: dir})
	warm, err := s.Load()
	if warm || s.Count() != 0 {
		t.Error("version mismatch must load cold and empty")
	}
	assertCode(t, err, oagerrors.CacheVersionMismatch)
}

func TestLoadExpiredSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, snapshot{
		Version:    SchemaVersion,
		Timestamp:  time.Now().Add(-2 * time.Hour).UnixMilli(),
		ConfigHash: "cfg-1",
		Records:    map[string]*FileRecord{"/proj/a.ts": record("/proj/a.ts")},
	})

	s := testStore(t, Options{StateDir: dir, TTL: time.Hour})
	warm, err := s.Load()
	if warm {
		t.Error("expired snapshot must load cold")
	}
	assertCode(t, err, oagerrors.CacheExpired)
}

func TestLoadConfigHashChange(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, snapshot{
		Version:    SchemaVersion,
		Timestamp:  time.Now().UnixMilli(),
		ConfigHash: "cfg-old",
		Records:    map[string]*FileRecord{"/proj/a.ts": record("/proj/a.ts")},
	})

	s := testStore(t, Options{StateDir: dir, ConfigHash: "cfg-new"})
	warm, err := s.Load()
	if err != nil {
		t.Fatalf("config change is not an error: %v", err)
	}
	if warm || s.Count() != 0 {
		t.Error("config hash change must load cold and empty")
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := testStore(t, Options{StateDir: dir, Compress: true})
	s.Put(record("/proj/a.ts"))
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, compressedSnapshotName)); err != nil {
		t.Fatalf("compressed snapshot not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, snapshotName)); !os.IsNotExist(err) {
		t.Error("plain snapshot should not exist alongside compressed one")
	}

	s2 := testStore(t, Options{StateDir: dir, Compress: true})
	warm, err := s2.Load()
	if err != nil || !warm {
		t.Fatalf("compressed load: warm=%v err=%v", warm, err)
	}
	if s2.Count() != 1 {
		t.Errorf("expected 1 record, got %d", s2.Count())
	}
}

func TestCompressionToggleKeepsCache(t *testing.T) {
	dir := t.TempDir()

	s := testStore(t, Options{StateDir: dir, Compress: true})
	s.Put(record("/proj/a.ts"))
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	// Compression switched off; the compressed snapshot must still load.
	s2 := testStore(t, Options{StateDir: dir})
	warm, err := s2.Load()
	if err != nil || !warm {
		t.Fatalf("toggle load: warm=%v err=%v", warm, err)
	}
}

func TestRemovePurgesReferences(t *testing.T) {
	s := testStore(t, Options{})
	s.Put(record("/proj/a.ts", "/proj/b.ts", "/proj/c.ts"))
	s.Put(record("/proj/b.ts"))

	s.Remove("/proj/b.ts")

	if _, ok := s.Get("/proj/b.ts"); ok {
		t.Fatal("removed record still present")
	}
	rec, _ := s.Get("/proj/a.ts")
	for _, dep := range rec.Dependencies {
		if dep == "/proj/b.ts" {
			t.Error("removed path still referenced by /proj/a.ts")
		}
	}
	if len(rec.Dependencies) != 1 || rec.Dependencies[0] != "/proj/c.ts" {
		t.Errorf("unexpected dependencies after purge: %v", rec.Dependencies)
	}
}

func TestRemoveWithSharedDependencySlices(t *testing.T) {
	s := testStore(t, Options{})

	// Records built from an analysis share one backing array between the
	// record's edge lists and the analysis payload's.
	deps := []string{"/proj/a.ts", "/proj/b.ts", "/proj/c.ts"}
	rec := record("/proj/ctrl.ts")
	rec.Dependencies = deps
	rec.Result.Dependencies = deps
	s.Put(rec)
	s.Put(record("/proj/b.ts"))

	s.Remove("/proj/b.ts")

	got, _ := s.Get("/proj/ctrl.ts")
	want := []string{"/proj/a.ts", "/proj/c.ts"}
	for _, list := range [][]string{got.Dependencies, got.Result.Dependencies} {
		if len(list) != len(want) {
			t.Fatalf("unexpected dependency list after purge: %v", list)
		}
		for i := range want {
			if list[i] != want[i] {
				t.Fatalf("unexpected dependency list after purge: %v", list)
			}
		}
	}
}

func TestIsStale(t *testing.T) {
	s := testStore(t, Options{})
	s.Put(record("/proj/a.ts"))

	if s.IsStale("/proj/a.ts", "abc123", 42) {
		t.Error("matching fingerprint and size reported stale")
	}
	if !s.IsStale("/proj/a.ts", "def456", 42) {
		t.Error("changed fingerprint not reported stale")
	}
	if !s.IsStale("/proj/a.ts", "abc123", 99) {
		t.Error("changed size not reported stale")
	}
	if !s.IsStale("/proj/unknown.ts", "abc123", 42) {
		t.Error("unknown path not reported stale")
	}
}

func TestReconcileWithDisk(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.ts")
	if err := os.WriteFile(existing, []byte("export class A {}"), 0644); err != nil {
		t.Fatal(err)
	}

	s := testStore(t, Options{})
	s.Put(record(existing))
	s.Put(record(filepath.Join(dir, "gone.ts")))

	removed := s.ReconcileWithDisk()
	if len(removed) != 1 {
		t.Fatalf("expected 1 removed path, got %v", removed)
	}
	if s.Count() != 1 {
		t.Errorf("expected 1 surviving record, got %d", s.Count())
	}
	if _, ok := s.Get(existing); !ok {
		t.Error("existing file's record was dropped")
	}
}

func TestInvalidateAll(t *testing.T) {
	dir := t.TempDir()

	s := testStore(t, Options{StateDir: dir})
	s.Put(record("/proj/a.ts"))
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	if err := s.InvalidateAll(); err != nil {
		t.Fatalf("InvalidateAll failed: %v", err)
	}
	if s.Count() != 0 {
		t.Error("store not empty after invalidation")
	}
	if _, err := os.Stat(filepath.Join(dir, snapshotName)); !os.IsNotExist(err) {
		t.Error("snapshot file still on disk after invalidation")
	}
}

func TestRebuildGraph(t *testing.T) {
	s := testStore(t, Options{})
	a := record("/proj/a.ts", "/proj/b.ts")
	a.Inherits = []string{"/proj/base.ts"}
	s.Put(a)
	s.Put(record("/proj/b.ts"))

	g := depgraph.New()
	s.RebuildGraph(g)

	deps := g.Dependencies("/proj/a.ts")
	if len(deps) != 1 || deps[0] != "/proj/b.ts" {
		t.Errorf("graph dependencies wrong: %v", deps)
	}
	inh := g.InheritedBy("/proj/base.ts")
	if len(inh) != 1 || inh[0] != "/proj/a.ts" {
		t.Errorf("graph inheritance wrong: %v", inh)
	}
}

func writeSnapshot(t *testing.T, dir string, snap snapshot) {
	t.Helper()
	data, err := json.Marshal(&snap)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, snapshotName), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func assertCode(t *testing.T, err error, code oagerrors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	oagErr, ok := err.(*oagerrors.OagError)
	if !ok {
		t.Fatalf("expected *OagError, got %T: %v", err, err)
	}
	if oagErr.Code != code {
		t.Errorf("expected code %s, got %s", code, oagErr.Code)
	}
}
