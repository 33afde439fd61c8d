// Package scan orchestrates incremental analysis cycles: it turns batches of
// filesystem changes into the minimal set of re-analyses, keeps the cache
// store and dependency graph consistent, and persists once per batch.
package scan

import (
	"time"
)

// ChangeType classifies a filesystem change.
type ChangeType string

const (
	// ChangeAdded marks a newly created file
	ChangeAdded ChangeType = "added"
	// ChangeModified marks a content change
	ChangeModified ChangeType = "modified"
	// ChangeRemoved marks a deleted file
	ChangeRemoved ChangeType = "removed"
)

// Change is one filesystem event with a canonical path.
type Change struct {
	Path string     `json:"path"`
	Type ChangeType `json:"type"`
}

// CycleState tracks where a scan cycle currently is. States advance strictly
// Idle -> Collecting -> Resolving -> Analyzing -> Persisting -> Idle.
type CycleState string

const (
	// StateIdle means no cycle is running
	StateIdle CycleState = "idle"
	// StateCollecting means changes are being collapsed into a batch
	StateCollecting CycleState = "collecting"
	// StateResolving means the affected set is being computed
	StateResolving CycleState = "resolving"
	// StateAnalyzing means affected files are being fingerprinted and analyzed
	StateAnalyzing CycleState = "analyzing"
	// StatePersisting means the consolidated snapshot is being written
	StatePersisting CycleState = "persisting"
)

// CycleStats summarizes one completed scan cycle.
type CycleStats struct {
	CycleID   string        `json:"cycleId"`
	Trigger   string        `json:"trigger"` // "full" or "incremental"
	FilesSeen int           `json:"filesSeen"`
	CacheHits int           `json:"cacheHits"`
	Analyzed  int           `json:"analyzed"`
	Failed    int           `json:"failed"`
	Removed   int           `json:"removed"`
	Duration  time.Duration `json:"duration"`
}

// Stats is the engine's point-in-time status snapshot.
type Stats struct {
	RecordCount          int    `json:"recordCount"`
	DependencyCount      int    `json:"dependencyCount"`
	CacheAgeMs           int64  `json:"cacheAgeMs"`
	CacheSizeBytes       int64  `json:"cacheSizeBytes"`
	FingerprintAlgorithm string `json:"fingerprintAlgorithm"`
	CollisionCount       int64  `json:"collisionCount"`
}
