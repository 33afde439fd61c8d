package scan

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"oag/internal/analyzer"
	"oag/internal/cache"
	"oag/internal/config"
	"oag/internal/depgraph"
	oagerrors "oag/internal/errors"
	"oag/internal/fingerprint"
	"oag/internal/logging"
	"oag/internal/paths"
	"oag/internal/storage"
)

// StateDirName is the per-project state directory.
const StateDirName = ".oag"

// Engine is the top-level facade over the scan subsystem: cache store,
// dependency graph, fingerprinter, analyzer, orchestrator, and optional
// scan-history database.
type Engine struct {
	root   string
	cfg    *config.Config
	logger *logging.Logger

	fp      *fingerprint.Fingerprinter
	store   *cache.Store
	graph   *depgraph.Graph
	orch    *Orchestrator
	history *storage.DB // nil when disabled or unavailable

	lastCycleID string
}

// NewEngine creates an engine rooted at the given project directory.
func NewEngine(root string, cfg *config.Config, logger *logging.Logger) (*Engine, error) {
	canonical, err := paths.Canonicalize(root)
	if err != nil {
		return nil, oagerrors.New(oagerrors.ProjectNotFound, "project root does not exist", err).WithPath(root)
	}
	if info, err := os.Stat(paths.FromCanonical(canonical)); err != nil || !info.IsDir() {
		return nil, oagerrors.New(oagerrors.ProjectNotFound, "project root is not a directory", err).WithPath(root)
	}

	fp := fingerprint.New(fingerprint.ParseAlgorithm(cfg.Scan.Algorithm), logger)
	store := cache.NewStore(cache.Options{
		StateDir:   filepath.Join(paths.FromCanonical(canonical), StateDirName),
		ConfigHash: cfg.StructuralHash(),
		TTL:        time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		Compress:   cfg.Cache.Compress,
	}, logger)
	graph := depgraph.New()

	e := &Engine{
		root:   canonical,
		cfg:    cfg,
		logger: logger,
		fp:     fp,
		store:  store,
		graph:  graph,
		orch:   NewOrchestrator(cfg, fp, analyzer.New(logger), store, graph, logger),
	}
	return e, nil
}

// Initialize hydrates the engine: loads the cache snapshot, reconciles it
// with the filesystem, rebuilds the dependency graph, and opens the history
// database. Returns true when the cache started warm.
func (e *Engine) Initialize() (bool, error) {
	warm, err := e.store.Load()
	if err != nil {
		// Fail closed: a bad snapshot means a cold start, not a dead engine.
		e.logger.Warn("cache snapshot unusable, starting cold", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if warm {
		e.store.ReconcileWithDisk()
	}
	e.store.RebuildGraph(e.graph)

	if e.cfg.History.Enabled {
		db, err := storage.Open(filepath.Join(paths.FromCanonical(e.root), StateDirName), e.logger)
		if err != nil {
			e.logger.Warn("scan history unavailable", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			e.history = db
			e.fp.SetCollisionSink(func(hash, path string) {
				if err := db.RecordCollision(e.lastCycleID, hash, path); err != nil {
					e.logger.Warn("failed to record collision event", map[string]interface{}{
						"error": err.Error(),
					})
				}
			})
		}
	}

	return warm, nil
}

// FullScan walks the project, validates every analyzable file, and removes
// records for files that vanished since the last run.
func (e *Engine) FullScan(ctx context.Context) (map[string]*analyzer.FileAnalysis, *CycleStats, error) {
	files, err := WalkProject(paths.FromCanonical(e.root), e.cfg.Scan)
	if err != nil {
		return nil, nil, oagerrors.New(oagerrors.IOFailure, "project walk failed", err).WithPath(e.root)
	}

	onDisk := make(map[string]bool, len(files))
	changes := make([]Change, 0, len(files))
	for _, path := range files {
		onDisk[path] = true
		changes = append(changes, Change{Path: path, Type: ChangeAdded})
	}
	for _, cached := range e.store.Paths() {
		if !onDisk[cached] {
			changes = append(changes, Change{Path: cached, Type: ChangeRemoved})
		}
	}

	return e.runCycle(ctx, changes, "full")
}

// ProcessChanges runs one incremental cycle over a batch of watcher events.
// Paths must be canonical.
func (e *Engine) ProcessChanges(ctx context.Context, changes []Change) (map[string]*analyzer.FileAnalysis, *CycleStats, error) {
	return e.runCycle(ctx, changes, "incremental")
}

func (e *Engine) runCycle(ctx context.Context, changes []Change, trigger string) (map[string]*analyzer.FileAnalysis, *CycleStats, error) {
	results, stats, err := e.orch.ProcessChanges(ctx, changes, trigger)
	if stats != nil {
		e.lastCycleID = stats.CycleID
		e.recordHistory(stats)
	}
	return results, stats, err
}

func (e *Engine) recordHistory(stats *CycleStats) {
	if e.history == nil {
		return
	}
	err := e.history.RecordCycle(storage.CycleRecord{
		CycleID:   stats.CycleID,
		Trigger:   stats.Trigger,
		FilesSeen: stats.FilesSeen,
		CacheHits: stats.CacheHits,
		Analyzed:  stats.Analyzed,
		Failed:    stats.Failed,
		Removed:   stats.Removed,
		Duration:  stats.Duration,
	})
	if err != nil {
		e.logger.Warn("failed to record scan history", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// AllResults returns every cached analysis keyed by canonical path.
func (e *Engine) AllResults() map[string]*analyzer.FileAnalysis {
	return e.store.Results()
}

// State returns the current cycle state.
func (e *Engine) State() CycleState {
	return e.orch.State()
}

// History returns the scan-history database, or nil when disabled.
func (e *Engine) History() *storage.DB {
	return e.history
}

// Root returns the canonical project root.
func (e *Engine) Root() string {
	return e.root
}

// Stats reports the engine's current status.
func (e *Engine) Stats() Stats {
	var ageMs int64
	if ts := e.store.Timestamp(); !ts.IsZero() {
		ageMs = time.Since(ts).Milliseconds()
	}

	return Stats{
		RecordCount:          e.store.Count(),
		DependencyCount:      e.graph.EdgeCount(),
		CacheAgeMs:           ageMs,
		CacheSizeBytes:       e.store.SizeBytes(),
		FingerprintAlgorithm: string(e.fp.Algorithm()),
		CollisionCount:       e.fp.CollisionCount(),
	}
}

// InvalidateCache discards all cached state in memory and on disk.
func (e *Engine) InvalidateCache() error {
	e.graph.Clear()
	return e.store.InvalidateAll()
}

// Cleanup persists outstanding state and releases resources.
func (e *Engine) Cleanup() error {
	if err := e.store.Save(); err != nil {
		e.logger.Warn("failed to save cache on shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if e.history != nil {
		return e.history.Close()
	}
	return nil
}
