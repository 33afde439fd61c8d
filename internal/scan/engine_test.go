package scan

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"oag/internal/analyzer"
	"oag/internal/config"
	"oag/internal/logging"
	"oag/internal/paths"
)

const controllerSource = `
import { UserDto } from './user.dto';

export class UsersController {
  getUser(id: string): Promise<UserDto> {
    return this.service.get(id);
  }

  createUser(body: UserDto): Promise<UserDto> {
    return this.service.create(body);
  }
}
`

const dtoSource = `
export class UserDto {
  name: string;
  email: string;
}
`

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.History.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, root string, cfg *config.Config) *Engine {
	t.Helper()
	e, err := NewEngine(root, cfg, logging.NewLogger(logging.Config{Level: logging.ErrorLevel}))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if _, err := e.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { e.Cleanup() })
	return e
}

func writeFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	canonical, err := paths.Canonicalize(path)
	if err != nil {
		t.Fatal(err)
	}
	return canonical
}

func TestFullScanThenCacheHits(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "users.controller.ts", controllerSource)
	writeFile(t, root, "user.dto.ts", dtoSource)

	e := newTestEngine(t, root, testConfig())

	results, stats, err := e.FullScan(context.Background())
	if err != nil {
		t.Fatalf("FullScan failed: %v", err)
	}
	if stats.Analyzed != 2 || stats.CacheHits != 0 {
		t.Fatalf("first scan: analyzed=%d hits=%d", stats.Analyzed, stats.CacheHits)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	// Nothing changed: the second scan must not invoke the analyzer at all.
	_, stats, err = e.FullScan(context.Background())
	if err != nil {
		t.Fatalf("second FullScan failed: %v", err)
	}
	if stats.Analyzed != 0 {
		t.Errorf("unchanged rescan analyzed %d files", stats.Analyzed)
	}
	if stats.CacheHits != 2 {
		t.Errorf("expected 2 cache hits, got %d", stats.CacheHits)
	}
}

func TestModifiedBaseTypePullsDependents(t *testing.T) {
	root := t.TempDir()
	ctrl := writeFile(t, root, "users.controller.ts", controllerSource)
	dto := writeFile(t, root, "user.dto.ts", dtoSource)

	e := newTestEngine(t, root, testConfig())
	if _, _, err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	writeFile(t, root, "user.dto.ts", dtoSource+"\nexport class ExtraDto { id: string; }\n")

	results, stats, err := e.ProcessChanges(context.Background(), []Change{
		{Path: dto, Type: ChangeModified},
	})
	if err != nil {
		t.Fatalf("ProcessChanges failed: %v", err)
	}

	if _, ok := results[ctrl]; !ok {
		t.Errorf("dependent controller missing from result map: %v", keys(results))
	}
	if _, ok := results[dto]; !ok {
		t.Error("modified dto missing from result map")
	}
	// The controller's bytes did not change, so it is a cache hit; the dto
	// itself is re-analyzed.
	if stats.Analyzed != 1 || stats.CacheHits != 1 {
		t.Errorf("analyzed=%d hits=%d", stats.Analyzed, stats.CacheHits)
	}
}

func TestRemovedFileWithDependents(t *testing.T) {
	root := t.TempDir()
	ctrl := writeFile(t, root, "users.controller.ts", controllerSource)
	dto := writeFile(t, root, "user.dto.ts", dtoSource)

	e := newTestEngine(t, root, testConfig())
	if _, _, err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(paths.FromCanonical(dto)); err != nil {
		t.Fatal(err)
	}

	results, stats, err := e.ProcessChanges(context.Background(), []Change{
		{Path: dto, Type: ChangeRemoved},
	})
	if err != nil {
		t.Fatalf("ProcessChanges failed: %v", err)
	}

	if stats.Removed != 1 {
		t.Errorf("expected 1 removal, got %d", stats.Removed)
	}
	if _, ok := results[dto]; ok {
		t.Error("removed path must not appear in results")
	}
	if _, ok := results[ctrl]; !ok {
		t.Error("dependent of removed file was not revalidated")
	}

	for _, cached := range e.store.Paths() {
		if cached == dto {
			t.Error("removed path still cached")
		}
	}
}

func TestRemovedFileWithoutDependents(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "users.controller.ts", controllerSource)
	writeFile(t, root, "user.dto.ts", dtoSource)
	orphan := writeFile(t, root, "orphan.dto.ts", `export class OrphanDto { id: string; }`)

	e := newTestEngine(t, root, testConfig())
	if _, _, err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(paths.FromCanonical(orphan)); err != nil {
		t.Fatal(err)
	}

	results, stats, err := e.ProcessChanges(context.Background(), []Change{
		{Path: orphan, Type: ChangeRemoved},
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Removed != 1 || len(results) != 0 {
		t.Errorf("removed=%d results=%v", stats.Removed, keys(results))
	}
	if e.store.Count() != 2 {
		t.Errorf("expected 2 surviving records, got %d", e.store.Count())
	}
}

func TestBatchCollapseLastWriteWins(t *testing.T) {
	root := t.TempDir()
	e := newTestEngine(t, root, testConfig())

	path := writeFile(t, root, "user.dto.ts", dtoSource)
	if _, _, err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(paths.FromCanonical(path)); err != nil {
		t.Fatal(err)
	}

	// Added, modified, then removed inside one debounce window: only the
	// final removal is acted on.
	results, stats, err := e.ProcessChanges(context.Background(), []Change{
		{Path: path, Type: ChangeAdded},
		{Path: path, Type: ChangeModified},
		{Path: path, Type: ChangeRemoved},
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Removed != 1 || stats.Analyzed != 0 {
		t.Errorf("removed=%d analyzed=%d", stats.Removed, stats.Analyzed)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results, got %v", keys(results))
	}
}

func TestNotApplicableFileEvicted(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "helper.util.ts", `export class HelperUtil { id: string; }`)

	e := newTestEngine(t, root, testConfig())
	if _, _, err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e.store.Count() != 1 {
		t.Fatalf("expected 1 record after first scan, got %d", e.store.Count())
	}

	// Rewritten to plain functions: nothing recognizable remains.
	writeFile(t, root, "helper.util.ts", `export function helper(): number { return 1; }`)

	results, _, err := e.ProcessChanges(context.Background(), []Change{
		{Path: path, Type: ChangeModified},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res, ok := results[path]; !ok || res != nil {
		t.Errorf("expected nil result entry for not-applicable file, got %v (present=%v)", res, ok)
	}
	if e.store.Count() != 0 {
		t.Error("not-applicable file must be evicted from the cache")
	}
}

func TestWarmRestart(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "users.controller.ts", controllerSource)
	writeFile(t, root, "user.dto.ts", dtoSource)

	cfg := testConfig()

	e := newTestEngine(t, root, cfg)
	if _, _, err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}

	e2 := newTestEngine(t, root, cfg)
	if e2.store.Count() != 2 {
		t.Fatalf("warm restart lost records: %d", e2.store.Count())
	}

	_, stats, err := e2.FullScan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Analyzed != 0 || stats.CacheHits != 2 {
		t.Errorf("warm rescan: analyzed=%d hits=%d", stats.Analyzed, stats.CacheHits)
	}
}

func TestInvalidateCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "user.dto.ts", dtoSource)

	e := newTestEngine(t, root, testConfig())
	if _, _, err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := e.InvalidateCache(); err != nil {
		t.Fatalf("InvalidateCache failed: %v", err)
	}

	stats := e.Stats()
	if stats.RecordCount != 0 || stats.DependencyCount != 0 {
		t.Errorf("stats after invalidation: %+v", stats)
	}
}

func TestStats(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "users.controller.ts", controllerSource)
	writeFile(t, root, "user.dto.ts", dtoSource)

	e := newTestEngine(t, root, testConfig())
	if _, _, err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	stats := e.Stats()
	if stats.RecordCount != 2 {
		t.Errorf("recordCount = %d", stats.RecordCount)
	}
	if stats.DependencyCount == 0 {
		t.Error("expected at least one dependency edge")
	}
	if stats.FingerprintAlgorithm != "fast" {
		t.Errorf("algorithm = %s", stats.FingerprintAlgorithm)
	}
	if stats.CacheSizeBytes == 0 {
		t.Error("expected non-zero snapshot size after save")
	}
}

func TestHistoryRecordsCycles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "user.dto.ts", dtoSource)

	cfg := config.DefaultConfig()
	e := newTestEngine(t, root, cfg)
	if _, _, err := e.FullScan(context.Background()); err != nil {
		t.Fatal(err)
	}

	if e.History() == nil {
		t.Fatal("expected history database")
	}
	cycles, err := e.History().RecentCycles(5)
	if err != nil {
		t.Fatalf("RecentCycles failed: %v", err)
	}
	if len(cycles) != 1 || cycles[0].Trigger != "full" {
		t.Errorf("unexpected history rows: %+v", cycles)
	}
}

func TestExcludedDirectoriesSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "user.dto.ts", dtoSource)
	writeFile(t, root, "node_modules/pkg/index.ts", dtoSource)
	writeFile(t, root, "dist/user.dto.ts", dtoSource)

	e := newTestEngine(t, root, testConfig())
	_, stats, err := e.FullScan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesSeen != 1 {
		t.Errorf("expected only the project file, saw %d", stats.FilesSeen)
	}
}

func keys(m map[string]*analyzer.FileAnalysis) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
