// Package fingerprint computes content fingerprints for tracked source files.
//
// Two algorithms are supported: xxhash64 ("fast", the default) optimizes the
// development loop, sha256 ("strong") trades speed for collision resistance.
// Because the fast hash is not collision-proof at scale, equality is never
// decided on the fingerprint alone: a matching fingerprint is re-checked
// against the file's byte size, and a size disagreement is treated as a
// collision that forces re-analysis.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"

	oagerrors "oag/internal/errors"
	"oag/internal/logging"
	"oag/internal/paths"
)

// Algorithm selects the fingerprint strength
type Algorithm string

const (
	// AlgorithmFast is xxhash64: fast, collision-tolerant
	AlgorithmFast Algorithm = "fast"
	// AlgorithmStrong is sha256: slower, collision-resistant
	AlgorithmStrong Algorithm = "strong"
)

// ParseAlgorithm converts a config string into an Algorithm, defaulting to fast.
func ParseAlgorithm(s string) Algorithm {
	if Algorithm(s) == AlgorithmStrong {
		return AlgorithmStrong
	}
	return AlgorithmFast
}

// collisionWarnThreshold is the number of collisions on one hash value after
// which a warning recommends switching to the strong algorithm.
const collisionWarnThreshold = 3

// Fingerprinter computes and compares content fingerprints
type Fingerprinter struct {
	algorithm Algorithm
	logger    *logging.Logger

	mu         sync.Mutex
	collisions map[string]int // hash value -> collision count
	warned     map[string]bool
	total      int64
	sink       func(hash, path string)
}

// New creates a Fingerprinter using the given algorithm
func New(algorithm Algorithm, logger *logging.Logger) *Fingerprinter {
	return &Fingerprinter{
		algorithm:  algorithm,
		logger:     logger,
		collisions: make(map[string]int),
		warned:     make(map[string]bool),
	}
}

// SetCollisionSink registers a callback invoked for each detected collision.
// Used to persist collision events; the sink must not block.
func (f *Fingerprinter) SetCollisionSink(sink func(hash, path string)) {
	f.mu.Lock()
	f.sink = sink
	f.mu.Unlock()
}

// Algorithm returns the configured algorithm
func (f *Fingerprinter) Algorithm() Algorithm {
	return f.algorithm
}

// Compute reads the file fully and returns its fingerprint and byte size
func (f *Fingerprinter) Compute(path string) (string, int64, error) {
	data, err := os.ReadFile(paths.FromCanonical(path))
	if err != nil {
		return "", 0, oagerrors.New(oagerrors.IOFailure, "Cannot read file for fingerprinting", err).WithPath(path)
	}

	return f.digest(data), int64(len(data)), nil
}

func (f *Fingerprinter) digest(data []byte) string {
	if f.algorithm == AlgorithmStrong {
		return fmt.Sprintf("%x", sha256.Sum256(data))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// HasChanged reports whether the file at path differs from its cached state.
// Two-layer check: (1) fingerprint comparison; (2) on a fingerprint match the
// file's size is re-statted independently and compared to the cached size.
// Equal fingerprints with differing sizes are a collision and count as changed.
func (f *Fingerprinter) HasChanged(cachedFingerprint string, cachedSize int64, path string) (bool, error) {
	current, _, err := f.Compute(path)
	if err != nil {
		return false, err
	}

	if current != cachedFingerprint {
		return true, nil
	}

	info, err := os.Stat(paths.FromCanonical(path))
	if err != nil {
		return false, oagerrors.New(oagerrors.IOFailure, "Cannot stat file for size check", err).WithPath(path)
	}

	if info.Size() != cachedSize {
		f.recordCollision(current, path, cachedSize, info.Size())
		return true, nil
	}

	return false, nil
}

// recordCollision counts a detected collision and escalates after repeats
func (f *Fingerprinter) recordCollision(hash, path string, cachedSize, actualSize int64) {
	f.mu.Lock()
	f.collisions[hash]++
	f.total++
	count := f.collisions[hash]
	shouldWarn := count >= collisionWarnThreshold && !f.warned[hash]
	if shouldWarn {
		f.warned[hash] = true
	}
	sink := f.sink
	f.mu.Unlock()

	if sink != nil {
		sink(hash, path)
	}

	f.logger.Info("Fingerprint collision detected", map[string]interface{}{
		"path":       path,
		"hash":       hash,
		"cachedSize": cachedSize,
		"actualSize": actualSize,
		"count":      count,
	})

	if shouldWarn {
		f.logger.Warn("Repeated fingerprint collisions on one hash value", map[string]interface{}{
			"hash":      hash,
			"count":     count,
			"algorithm": string(f.algorithm),
			"advice":    "configure scan.algorithm=strong",
		})
	}
}

// CollisionCount returns the total number of collisions detected so far
func (f *Fingerprinter) CollisionCount() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// CollisionsByHash returns a copy of the per-hash-value collision counters
func (f *Fingerprinter) CollisionsByHash() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]int, len(f.collisions))
	for k, v := range f.collisions {
		out[k] = v
	}
	return out
}
