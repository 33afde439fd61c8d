package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"oag/internal/config"
	"oag/internal/logging"
	"oag/internal/paths"
	"oag/internal/scan"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
}

func TestBatchDebouncerCoalesces(t *testing.T) {
	var mu sync.Mutex
	var batches [][]scan.Change

	d := NewBatchDebouncer(30*time.Millisecond, func(changes []scan.Change) {
		mu.Lock()
		batches = append(batches, changes)
		mu.Unlock()
	})

	d.Add(scan.Change{Path: "/p/a.ts", Type: scan.ChangeModified})
	d.Add(scan.Change{Path: "/p/a.ts", Type: scan.ChangeModified})
	d.Add(scan.Change{Path: "/p/b.ts", Type: scan.ChangeAdded})

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	if len(batches[0]) != 3 {
		t.Errorf("expected 3 events in batch, got %d", len(batches[0]))
	}
}

func TestBatchDebouncerCancel(t *testing.T) {
	emitted := false
	d := NewBatchDebouncer(20*time.Millisecond, func([]scan.Change) {
		emitted = true
	})

	d.Add(scan.Change{Path: "/p/a.ts", Type: scan.ChangeModified})
	d.Cancel()
	if d.EventCount() != 0 {
		t.Error("cancel left pending events")
	}

	time.Sleep(60 * time.Millisecond)
	if emitted {
		t.Error("cancelled batch was emitted")
	}
}

func TestBatchDebouncerFlush(t *testing.T) {
	var got []scan.Change
	d := NewBatchDebouncer(time.Hour, func(changes []scan.Change) {
		got = changes
	})

	d.Add(scan.Change{Path: "/p/a.ts", Type: scan.ChangeRemoved})
	d.Flush()

	if len(got) != 1 || got[0].Type != scan.ChangeRemoved {
		t.Errorf("flush did not emit pending events: %v", got)
	}
}

func TestWatcherDetectsChanges(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "user.dto.ts")
	if err := os.WriteFile(existing, []byte("export class UserDto { id: string; }"), 0644); err != nil {
		t.Fatal(err)
	}
	canonicalRoot, err := paths.Canonicalize(root)
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Watch.PollIntervalMs = 20
	cfg.Watch.DebounceMs = 40

	var mu sync.Mutex
	var all []scan.Change
	w := New(canonicalRoot, cfg, testLogger(), func(changes []scan.Change) {
		mu.Lock()
		all = append(all, changes...)
		mu.Unlock()
	})

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	added := filepath.Join(root, "users.controller.ts")
	if err := os.WriteFile(added, []byte("export class UsersController {}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(existing); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		done := hasType(all, scan.ChangeAdded) && hasType(all, scan.ChangeRemoved)
		mu.Unlock()
		if done || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if !hasType(all, scan.ChangeAdded) {
		t.Errorf("added file not detected: %v", all)
	}
	if !hasType(all, scan.ChangeRemoved) {
		t.Errorf("removed file not detected: %v", all)
	}
}

func hasType(changes []scan.Change, kind scan.ChangeType) bool {
	for _, c := range changes {
		if c.Type == kind {
			return true
		}
	}
	return false
}
