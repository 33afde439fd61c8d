package scan

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"oag/internal/analyzer"
	"oag/internal/cache"
	"oag/internal/config"
	"oag/internal/depgraph"
	"oag/internal/fingerprint"
	"oag/internal/logging"
)

// Orchestrator runs scan cycles. At most one cycle is in flight; callers
// arriving during a cycle block until it finishes.
type Orchestrator struct {
	cfg      *config.Config
	fp       *fingerprint.Fingerprinter
	analyzer *analyzer.Analyzer
	store    *cache.Store
	graph    *depgraph.Graph
	logger   *logging.Logger

	cycleMu sync.Mutex // serializes cycles

	stateMu sync.RWMutex
	state   CycleState
}

// NewOrchestrator wires a scan orchestrator over the given components.
func NewOrchestrator(cfg *config.Config, fp *fingerprint.Fingerprinter, a *analyzer.Analyzer, store *cache.Store, graph *depgraph.Graph, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		fp:       fp,
		analyzer: a,
		store:    store,
		graph:    graph,
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the current cycle state.
func (o *Orchestrator) State() CycleState {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s CycleState) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
}

// ProcessChanges runs one scan cycle over a batch of changes. The result map
// covers every path that was (re)validated this cycle; a nil value means the
// file failed analysis or turned out not applicable. Per-file problems never
// abort the batch.
func (o *Orchestrator) ProcessChanges(ctx context.Context, changes []Change, trigger string) (map[string]*analyzer.FileAnalysis, *CycleStats, error) {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()
	defer o.setState(StateIdle)

	start := time.Now()
	stats := &CycleStats{
		CycleID: uuid.New().String(),
		Trigger: trigger,
	}
	log := o.logger.With(map[string]interface{}{
		"cycleId": stats.CycleID,
		"trigger": trigger,
	})

	o.setState(StateCollecting)
	collapsed := collapseChanges(changes)

	log.Debug("cycle started", map[string]interface{}{
		"events":    len(changes),
		"collapsed": len(collapsed),
	})

	o.setState(StateResolving)
	affected, removed := o.resolveAffected(collapsed)
	stats.Removed = len(removed)

	o.setState(StateAnalyzing)
	results := make(map[string]*analyzer.FileAnalysis, len(affected))
	for _, path := range affected {
		if err := ctx.Err(); err != nil {
			return results, stats, err
		}
		o.analyzeOne(ctx, path, results, stats, log)
	}
	stats.FilesSeen = len(affected)

	o.setState(StatePersisting)
	if err := o.store.Save(); err != nil {
		// A failed snapshot write costs a warm start, not correctness.
		log.Warn("failed to persist cache snapshot", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stats.Duration = time.Since(start)
	log.Info("cycle complete", map[string]interface{}{
		"filesSeen": stats.FilesSeen,
		"cacheHits": stats.CacheHits,
		"analyzed":  stats.Analyzed,
		"failed":    stats.Failed,
		"removed":   stats.Removed,
		"duration":  stats.Duration.String(),
	})

	return results, stats, nil
}

// collapseChanges keeps only the last event per path, preserving batch order.
func collapseChanges(changes []Change) map[string]ChangeType {
	collapsed := make(map[string]ChangeType, len(changes))
	for _, c := range changes {
		if c.Path == "" {
			continue
		}
		collapsed[c.Path] = c.Type
	}
	return collapsed
}

// resolveAffected expands a collapsed batch into the sorted set of paths to
// validate plus the list of removed paths. Dependents of a removed file are
// resolved before the removal mutates the graph; once a file is gone its
// reverse edges are gone with it.
func (o *Orchestrator) resolveAffected(collapsed map[string]ChangeType) (affected []string, removed []string) {
	set := make(map[string]bool)

	for path, kind := range collapsed {
		if kind != ChangeRemoved {
			continue
		}
		for _, dep := range o.graph.TransitiveImpact(path) {
			set[dep] = true
		}
		removed = append(removed, path)
	}

	for _, path := range removed {
		o.store.Remove(path)
		o.graph.RemoveFile(path)
	}

	for path, kind := range collapsed {
		if kind == ChangeRemoved {
			continue
		}
		set[path] = true
		if o.isBaseTypeFile(path) {
			for _, dep := range o.graph.TransitiveImpact(path) {
				set[dep] = true
			}
		}
	}

	// A removed path can re-enter the set as a dependent of another removed
	// file; gone files are never analyzed.
	for _, path := range removed {
		delete(set, path)
	}

	affected = make([]string, 0, len(set))
	for path := range set {
		affected = append(affected, path)
	}
	sort.Strings(affected)
	sort.Strings(removed)
	return affected, removed
}

// analyzeOne validates a single affected path: cache hit, fresh analysis,
// failure, or not-applicable removal.
func (o *Orchestrator) analyzeOne(ctx context.Context, path string, results map[string]*analyzer.FileAnalysis, stats *CycleStats, log *logging.Logger) {
	if rec, ok := o.store.Get(path); ok {
		changed, err := o.fp.HasChanged(rec.Fingerprint, rec.Size, path)
		if err == nil && !changed {
			stats.CacheHits++
			results[path] = rec.Result
			return
		}
		if err != nil {
			// Unreadable now; drop the stale record rather than serve it.
			log.Warn("failed to fingerprint file", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			o.dropFile(path)
			stats.Failed++
			results[path] = nil
			return
		}
	}

	hash, size, err := o.fp.Compute(path)
	if err != nil {
		log.Warn("failed to read file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		o.dropFile(path)
		stats.Failed++
		results[path] = nil
		return
	}

	analysis, err := o.analyzer.Analyze(ctx, path)
	if err != nil {
		log.Warn("analysis failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		o.dropFile(path)
		stats.Failed++
		results[path] = nil
		return
	}

	if analysis == nil {
		// Nothing recognizable exported; an earlier record for this path
		// is stale and must go.
		o.dropFile(path)
		results[path] = nil
		return
	}

	o.store.Put(&cache.FileRecord{
		Path:         path,
		Fingerprint:  hash,
		Size:         size,
		Result:       analysis,
		Dependencies: analysis.Dependencies,
		Inherits:     analysis.Inherits,
		LastScanned:  time.Now().UnixMilli(),
	})
	o.graph.SetDependencies(path, analysis.Dependencies)
	o.graph.SetInheritance(path, analysis.Inherits)

	stats.Analyzed++
	results[path] = analysis
}

func (o *Orchestrator) dropFile(path string) {
	o.store.Remove(path)
	o.graph.RemoveFile(path)
}

// isBaseTypeFile reports whether a path matches the configured shared-type
// suffix convention. Any change to such a file invalidates its dependents.
func (o *Orchestrator) isBaseTypeFile(path string) bool {
	for _, suffix := range o.cfg.Scan.BaseTypeSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
