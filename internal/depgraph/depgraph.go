// Package depgraph maintains the file-to-file dependency graph and answers
// transitive-impact queries.
//
// The graph is a derived index: it is rebuilt per-edge from the cache store's
// file records and never persisted verbatim. Forward and reverse indexes are
// kept symmetric on every mutation. Inheritance edges are tracked separately
// from plain dependencies because a base-type change must propagate to
// subtypes even when the subtype's imports did not change.
package depgraph

import (
	"sort"
	"sync"
)

// Graph is a directed file dependency graph with a reverse index
type Graph struct {
	mu sync.RWMutex

	forward map[string]map[string]bool // path -> paths it depends on
	reverse map[string]map[string]bool // path -> paths that depend on it

	inherits    map[string]map[string]bool // path -> paths it extends/implements
	inheritedBy map[string]map[string]bool // path -> paths that extend/implement it
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		forward:     make(map[string]map[string]bool),
		reverse:     make(map[string]map[string]bool),
		inherits:    make(map[string]map[string]bool),
		inheritedBy: make(map[string]map[string]bool),
	}
}

// SetDependencies replaces path's forward edges and updates the reverse index
// symmetrically: stale reverse entries are removed, new ones added.
func (g *Graph) SetDependencies(path string, deps []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.replaceEdges(g.forward, g.reverse, path, deps)
}

// SetInheritance replaces path's inheritance edges (extends/implements targets)
func (g *Graph) SetInheritance(path string, bases []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.replaceEdges(g.inherits, g.inheritedBy, path, bases)
}

// replaceEdges swaps path's outgoing edges in the fwd index, keeping rev symmetric
func (g *Graph) replaceEdges(fwd, rev map[string]map[string]bool, path string, targets []string) {
	for old := range fwd[path] {
		delete(rev[old], path)
		if len(rev[old]) == 0 {
			delete(rev, old)
		}
	}
	delete(fwd, path)

	if len(targets) == 0 {
		return
	}

	set := make(map[string]bool, len(targets))
	for _, target := range targets {
		if target == path {
			continue // self-edges carry no invalidation information
		}
		set[target] = true
		if rev[target] == nil {
			rev[target] = make(map[string]bool)
		}
		rev[target][path] = true
	}
	fwd[path] = set
}

// RemoveFile removes path from every index, including its appearances as a
// dependency or base of other files.
func (g *Graph) RemoveFile(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.replaceEdges(g.forward, g.reverse, path, nil)
	g.replaceEdges(g.inherits, g.inheritedBy, path, nil)

	for dependent := range g.reverse[path] {
		delete(g.forward[dependent], path)
		if len(g.forward[dependent]) == 0 {
			delete(g.forward, dependent)
		}
	}
	delete(g.reverse, path)

	for subtype := range g.inheritedBy[path] {
		delete(g.inherits[subtype], path)
		if len(g.inherits[subtype]) == 0 {
			delete(g.inherits, subtype)
		}
	}
	delete(g.inheritedBy, path)
}

// Dependencies returns the paths that path directly depends on
func (g *Graph) Dependencies(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.forward[path])
}

// Dependents returns the paths that directly depend on path
func (g *Graph) Dependents(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.reverse[path])
}

// InheritedBy returns the paths that directly extend or implement path
func (g *Graph) InheritedBy(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.inheritedBy[path])
}

// TransitiveImpact returns every file affected by a change to path: the
// breadth-first closure over reverse-dependency and reverse-inheritance
// edges. The starting path itself is not included. The visited set makes
// traversal terminate on cyclic graphs; total work is bounded by the number
// of distinct files.
func (g *Graph) TransitiveImpact(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{path: true}
	queue := []string{path}
	var impact []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		// Union both edge kinds per hop: plain reverse dependents and
		// inheritance-reverse dependents.
		for _, neighbors := range []map[string]bool{g.reverse[current], g.inheritedBy[current]} {
			for neighbor := range neighbors {
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				impact = append(impact, neighbor)
				queue = append(queue, neighbor)
			}
		}
	}

	sort.Strings(impact)
	return impact
}

// EdgeCount returns the total number of forward dependency edges
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	count := 0
	for _, deps := range g.forward {
		count += len(deps)
	}
	return count
}

// FileCount returns the number of files with outgoing dependency edges
func (g *Graph) FileCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.forward)
}

// Clear drops all edges
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.forward = make(map[string]map[string]bool)
	g.reverse = make(map[string]map[string]bool)
	g.inherits = make(map[string]map[string]bool)
	g.inheritedBy = make(map[string]map[string]bool)
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
