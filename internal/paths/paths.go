// Package paths normalizes file paths to the single canonical form used as
// cache keys: absolute, symlink-resolved, forward-slash separated.
//
// Every path crossing the cache store or dependency graph boundary goes
// through Canonicalize first; mixing absolute and relative spellings of the
// same file would silently split its cache identity.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// Canonicalize converts a path to its canonical absolute form.
// - Makes the path absolute (against the current working directory)
// - Resolves symlinks when the file exists
// - Converts backslashes to forward slashes
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The file may not exist yet (e.g. a removal event); keep the
		// absolute path as-is in that case.
		if os.IsNotExist(err) {
			resolved = abs
		} else {
			return "", err
		}
	}

	return filepath.ToSlash(resolved), nil
}

// CanonicalizeIn resolves a path relative to root and canonicalizes it.
// Absolute inputs are canonicalized directly.
func CanonicalizeIn(root, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return Canonicalize(path)
}

// IsWithin reports whether path is inside root after canonicalization.
func IsWithin(root, path string) bool {
	canonRoot, err := Canonicalize(root)
	if err != nil {
		return false
	}
	canonPath, err := Canonicalize(path)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(filepath.FromSlash(canonRoot), filepath.FromSlash(canonPath))
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(filepath.ToSlash(rel), "..")
}

// Rel returns the root-relative form of a canonical path for display.
// Falls back to the canonical path when it is outside root.
func Rel(root, canonical string) string {
	canonRoot, err := Canonicalize(root)
	if err != nil {
		return canonical
	}
	rel, err := filepath.Rel(filepath.FromSlash(canonRoot), filepath.FromSlash(canonical))
	if err != nil || strings.HasPrefix(filepath.ToSlash(rel), "..") {
		return canonical
	}
	return filepath.ToSlash(rel)
}

// FromCanonical converts a canonical path back to the OS-specific form for
// filesystem operations.
func FromCanonical(canonical string) string {
	return filepath.FromSlash(canonical)
}
