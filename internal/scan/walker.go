package scan

import (
	"io/fs"
	"path/filepath"
	"strings"

	"oag/internal/config"
	"oag/internal/paths"
)

// WalkProject returns the canonical paths of all analyzable files under
// root, honoring the configured extensions and excludes.
func WalkProject(root string, cfg config.ScanConfig) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path != root && (excluded(name, cfg.Excludes) || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		if excluded(name, cfg.Excludes) {
			return nil
		}
		if !matchesExtension(name, cfg.Extensions) {
			return nil
		}

		canonical, cerr := paths.Canonicalize(path)
		if cerr != nil {
			return nil
		}
		files = append(files, canonical)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func matchesExtension(name string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// excluded matches a base name against the exclude list. Entries are either
// literal names (node_modules) or glob patterns (*.spec.ts).
func excluded(name string, excludes []string) bool {
	for _, pattern := range excludes {
		if pattern == name {
			return true
		}
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
