// Package cache persists per-file analysis results between scan cycles.
//
// The store keeps an in-memory record map and mirrors it to a JSON snapshot
// under the project state directory. Loading is fail-closed: a missing,
// corrupt, version-mismatched, or expired snapshot yields a cold empty store
// and a full rescan, never a partial state.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"oag/internal/analyzer"
	"oag/internal/depgraph"
	oagerrors "oag/internal/errors"
	"oag/internal/logging"
	"oag/internal/paths"
)

// SchemaVersion identifies the snapshot layout. Any change to the snapshot
// or record shape bumps this and invalidates existing caches.
const SchemaVersion = 3

const (
	snapshotName           = "cache.json"
	compressedSnapshotName = "cache.json.zst"
)

// FileRecord is the cached state of one analyzed file.
type FileRecord struct {
	Path        string                 `json:"path"`
	Fingerprint string                 `json:"fingerprint"`
	Size        int64                  `json:"size"`
	Result      *analyzer.FileAnalysis `json:"result"`

	// Dependencies and Inherits duplicate the result's edge lists so the
	// graph can be rebuilt without touching analysis payloads.
	Dependencies []string `json:"dependencies,omitempty"`
	Inherits     []string `json:"inherits,omitempty"`

	LastScanned int64 `json:"lastScanned"` // unix milliseconds
}

// snapshot is the on-disk envelope.
type snapshot struct {
	Version      int                    `json:"version"`
	Timestamp    int64                  `json:"timestamp"` // unix milliseconds
	ConfigHash   string                 `json:"configHash"`
	Records      map[string]*FileRecord `json:"records"`
	Dependencies map[string][]string    `json:"dependencies"`
	Inheritance  map[string][]string    `json:"inheritance"`
}

// Options configures a Store.
type Options struct {
	StateDir   string        // directory holding the snapshot, e.g. <root>/.oag
	ConfigHash string        // structural config hash; mismatch invalidates
	TTL        time.Duration // zero disables expiry
	Compress   bool          // write zstd-compressed snapshots
}

// Store holds cached analysis records and persists them as one snapshot.
type Store struct {
	mu      sync.RWMutex
	records map[string]*FileRecord

	opts   Options
	logger *logging.Logger

	// loadedTimestamp is the persisted snapshot's timestamp, kept for age
	// reporting. Zero when the store started cold.
	loadedTimestamp int64
}

// NewStore creates an empty store. Call Load to hydrate it from disk.
func NewStore(opts Options, logger *logging.Logger) *Store {
	return &Store{
		records: make(map[string]*FileRecord),
		opts:    opts,
		logger:  logger,
	}
}

// Load reads the snapshot from disk. It returns warm=true when cached
// records were restored. Any abnormal snapshot leaves the store cold and
// empty; the typed error describes why and is safe to log and ignore.
func (s *Store) Load() (bool, error) {
	raw, err := s.readSnapshotFile()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, oagerrors.New(oagerrors.IOFailure, "failed to read cache snapshot", err).WithPath(s.snapshotPath())
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return false, oagerrors.New(oagerrors.CacheCorrupt, "cache snapshot is not valid JSON", err).WithPath(s.snapshotPath())
	}

	if snap.Version != SchemaVersion {
		return false, oagerrors.New(oagerrors.CacheVersionMismatch,
			fmt.Sprintf("cache snapshot has schema version %d, expected %d", snap.Version, SchemaVersion), nil)
	}

	if s.opts.TTL > 0 {
		age := time.Since(time.UnixMilli(snap.Timestamp))
		if age > s.opts.TTL {
			return false, oagerrors.New(oagerrors.CacheExpired,
				fmt.Sprintf("cache snapshot is %s old, TTL is %s", age.Round(time.Second), s.opts.TTL), nil)
		}
	}

	if snap.ConfigHash != s.opts.ConfigHash {
		// Structural configuration changed; every cached result may be based
		// on settings that no longer hold.
		s.logger.Info("scan configuration changed, starting cold", map[string]interface{}{
			"cachedConfigHash":  snap.ConfigHash,
			"currentConfigHash": s.opts.ConfigHash,
		})
		return false, nil
	}

	s.mu.Lock()
	s.records = make(map[string]*FileRecord, len(snap.Records))
	for path, rec := range snap.Records {
		if rec == nil || rec.Result == nil {
			continue
		}
		rec.Path = path
		s.records[path] = rec
	}
	s.loadedTimestamp = snap.Timestamp
	count := len(s.records)
	s.mu.Unlock()

	s.logger.Debug("cache snapshot loaded", map[string]interface{}{
		"records": count,
	})

	return true, nil
}

// Save writes the full store to disk atomically: marshal, write to a temp
// file in the same directory, then rename over the snapshot.
func (s *Store) Save() error {
	s.mu.RLock()
	snap := snapshot{
		Version:      SchemaVersion,
		Timestamp:    time.Now().UnixMilli(),
		ConfigHash:   s.opts.ConfigHash,
		Records:      make(map[string]*FileRecord, len(s.records)),
		Dependencies: make(map[string][]string, len(s.records)),
		Inheritance:  make(map[string][]string),
	}
	for path, rec := range s.records {
		snap.Records[path] = rec
		if len(rec.Dependencies) > 0 {
			snap.Dependencies[path] = rec.Dependencies
		}
		if len(rec.Inherits) > 0 {
			snap.Inheritance[path] = rec.Inherits
		}
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return oagerrors.New(oagerrors.InternalError, "failed to marshal cache snapshot", err)
	}

	if s.opts.Compress {
		data, err = compress(data)
		if err != nil {
			return oagerrors.New(oagerrors.InternalError, "failed to compress cache snapshot", err)
		}
	}

	if err := os.MkdirAll(s.opts.StateDir, 0755); err != nil {
		return oagerrors.New(oagerrors.IOFailure, "failed to create state directory", err).WithPath(s.opts.StateDir)
	}

	target := s.snapshotPath()
	tmp, err := os.CreateTemp(s.opts.StateDir, snapshotName+".tmp-*")
	if err != nil {
		return oagerrors.New(oagerrors.IOFailure, "failed to create temp snapshot", err).WithPath(s.opts.StateDir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return oagerrors.New(oagerrors.IOFailure, "failed to write temp snapshot", err).WithPath(tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return oagerrors.New(oagerrors.IOFailure, "failed to close temp snapshot", err).WithPath(tmpName)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return oagerrors.New(oagerrors.IOFailure, "failed to replace cache snapshot", err).WithPath(target)
	}

	// Drop the stale other-format snapshot so a later Load cannot pick it up.
	os.Remove(s.otherSnapshotPath())

	s.mu.Lock()
	s.loadedTimestamp = snap.Timestamp
	s.mu.Unlock()

	s.logger.Debug("cache snapshot saved", map[string]interface{}{
		"records":    len(snap.Records),
		"sizeBytes":  len(data),
		"compressed": s.opts.Compress,
	})

	return nil
}

// Get returns the record for a canonical path.
func (s *Store) Get(path string) (*FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[path]
	return rec, ok
}

// Put inserts or replaces a record.
func (s *Store) Put(rec *FileRecord) {
	if rec == nil || rec.Path == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Path] = rec
}

// Remove deletes a record and purges the path from every other record's
// dependency and inheritance lists, so no record references a gone file.
func (s *Store) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, path)
	for _, rec := range s.records {
		rec.Dependencies = without(rec.Dependencies, path)
		rec.Inherits = without(rec.Inherits, path)
		if rec.Result != nil {
			rec.Result.Dependencies = without(rec.Result.Dependencies, path)
			rec.Result.Inherits = without(rec.Result.Inherits, path)
		}
	}
}

// IsStale reports whether a cached record no longer matches the file's
// current fingerprint. Unknown paths are always stale.
func (s *Store) IsStale(path, currentFingerprint string, currentSize int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[path]
	if !ok {
		return true
	}
	return rec.Fingerprint != currentFingerprint || rec.Size != currentSize
}

// Paths returns all cached canonical paths, sorted.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records))
	for p := range s.records {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Results returns all cached analyses keyed by canonical path.
func (s *Store) Results() map[string]*analyzer.FileAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*analyzer.FileAnalysis, len(s.records))
	for p, rec := range s.records {
		out[p] = rec.Result
	}
	return out
}

// Count returns the number of cached records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// InvalidateAll empties the store and deletes snapshots from disk.
func (s *Store) InvalidateAll() error {
	s.mu.Lock()
	s.records = make(map[string]*FileRecord)
	s.loadedTimestamp = 0
	s.mu.Unlock()

	for _, name := range []string{snapshotName, compressedSnapshotName} {
		if err := os.Remove(filepath.Join(s.opts.StateDir, name)); err != nil && !os.IsNotExist(err) {
			return oagerrors.New(oagerrors.IOFailure, "failed to delete cache snapshot", err).WithPath(name)
		}
	}

	s.logger.Info("cache invalidated", nil)
	return nil
}

// ReconcileWithDisk drops records whose files no longer exist and returns
// the removed paths. Run at startup to catch deletions that happened while
// no watcher was running.
func (s *Store) ReconcileWithDisk() []string {
	var gone []string
	for _, path := range s.Paths() {
		if _, err := os.Stat(paths.FromCanonical(path)); os.IsNotExist(err) {
			gone = append(gone, path)
		}
	}
	for _, path := range gone {
		s.Remove(path)
	}
	if len(gone) > 0 {
		s.logger.Info("reconciled cache with disk", map[string]interface{}{
			"removed": len(gone),
		})
	}
	return gone
}

// RebuildGraph replaces the graph's edges with the edges recorded in the
// store. The graph is a derived index; the records are the source of truth.
func (s *Store) RebuildGraph(g *depgraph.Graph) {
	g.Clear()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for path, rec := range s.records {
		g.SetDependencies(path, rec.Dependencies)
		g.SetInheritance(path, rec.Inherits)
	}
}

// Timestamp returns when the current snapshot was written, or zero time for
// a cold store.
func (s *Store) Timestamp() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loadedTimestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.loadedTimestamp)
}

// SizeBytes returns the on-disk snapshot size, or 0 when none exists.
func (s *Store) SizeBytes() int64 {
	info, err := os.Stat(s.snapshotPath())
	if err != nil {
		return 0
	}
	return info.Size()
}

func (s *Store) snapshotPath() string {
	if s.opts.Compress {
		return filepath.Join(s.opts.StateDir, compressedSnapshotName)
	}
	return filepath.Join(s.opts.StateDir, snapshotName)
}

func (s *Store) otherSnapshotPath() string {
	if s.opts.Compress {
		return filepath.Join(s.opts.StateDir, snapshotName)
	}
	return filepath.Join(s.opts.StateDir, compressedSnapshotName)
}

// readSnapshotFile reads whichever snapshot variant exists, preferring the
// configured one, and returns decompressed JSON bytes.
func (s *Store) readSnapshotFile() ([]byte, error) {
	raw, err := os.ReadFile(s.snapshotPath())
	if err == nil {
		if s.opts.Compress {
			return decompress(raw)
		}
		return raw, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	// Fall back to the other variant so toggling compression does not
	// throw away a valid cache.
	raw, otherErr := os.ReadFile(s.otherSnapshotPath())
	if otherErr != nil {
		return nil, err
	}
	if s.opts.Compress {
		return raw, nil
	}
	return decompress(raw)
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// without returns a copy of list with value removed. It never filters in
// place: record and analysis edge lists may share a backing array.
func without(list []string, value string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
