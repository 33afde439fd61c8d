// Package watcher detects source file changes by periodic polling and feeds
// debounced batches into the scan engine. Polling keeps behavior identical
// across platforms and network filesystems where inotify-style APIs are
// unreliable.
package watcher

import (
	"context"
	"os"
	"sync"
	"time"

	"oag/internal/config"
	"oag/internal/logging"
	"oag/internal/paths"
	"oag/internal/scan"
)

// BatchHandler receives one debounced batch of changes.
type BatchHandler func(changes []scan.Change)

// fileState is the polled signature of one file.
type fileState struct {
	size    int64
	modTime time.Time
}

// Watcher polls a project tree and emits debounced change batches.
type Watcher struct {
	root     string
	scanCfg  config.ScanConfig
	interval time.Duration
	logger   *logging.Logger

	debouncer *BatchDebouncer

	mu    sync.Mutex
	known map[string]fileState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for the project rooted at the canonical root path.
func New(root string, cfg *config.Config, logger *logging.Logger, handler BatchHandler) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())

	debounce := time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	interval := time.Duration(cfg.Watch.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}

	return &Watcher{
		root:      root,
		scanCfg:   cfg.Scan,
		interval:  interval,
		logger:    logger,
		debouncer: NewBatchDebouncer(debounce, handler),
		known:     make(map[string]fileState),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start primes the baseline from the current tree and begins polling.
// Changes that happened before Start are the engine's FullScan's problem,
// not the watcher's.
func (w *Watcher) Start() error {
	baseline, err := w.snapshot()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.known = baseline
	w.mu.Unlock()

	w.logger.Info("watching for changes", map[string]interface{}{
		"root":         w.root,
		"files":        len(baseline),
		"pollInterval": w.interval.String(),
	})

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop halts polling and flushes any pending batch so collected events are
// not lost on shutdown.
func (w *Watcher) Stop() {
	w.cancel()
	w.wg.Wait()
	w.debouncer.Flush()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll diffs the current tree against the last snapshot and feeds the delta
// into the debouncer.
func (w *Watcher) poll() {
	current, err := w.snapshot()
	if err != nil {
		w.logger.Warn("poll failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.mu.Lock()
	previous := w.known
	w.known = current
	w.mu.Unlock()

	for path, state := range current {
		prev, existed := previous[path]
		switch {
		case !existed:
			w.debouncer.Add(scan.Change{Path: path, Type: scan.ChangeAdded})
		case prev.size != state.size || !prev.modTime.Equal(state.modTime):
			w.debouncer.Add(scan.Change{Path: path, Type: scan.ChangeModified})
		}
	}
	for path := range previous {
		if _, exists := current[path]; !exists {
			w.debouncer.Add(scan.Change{Path: path, Type: scan.ChangeRemoved})
		}
	}
}

// snapshot stats every analyzable file under the root.
func (w *Watcher) snapshot() (map[string]fileState, error) {
	files, err := scan.WalkProject(paths.FromCanonical(w.root), w.scanCfg)
	if err != nil {
		return nil, err
	}

	states := make(map[string]fileState, len(files))
	for _, path := range files {
		info, err := os.Stat(paths.FromCanonical(path))
		if err != nil {
			continue // deleted between walk and stat
		}
		states[path] = fileState{size: info.Size(), modTime: info.ModTime()}
	}
	return states, nil
}
