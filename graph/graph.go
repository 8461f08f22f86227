// Package graph models service startup ordering as a directed dependency
// graph: validation fails fast on unknown references and cycles, and
// Batches yields the topological waves eligible to start concurrently.
package graph

import (
	"fmt"
	"sort"
)

// Graph maps each service name to the names it depends on.
type Graph struct {
	deps map[string][]string
}

// New builds a graph from service -> dependency names. The input is not
// validated here; call Validate before Batches.
func New(deps map[string][]string) *Graph {
	copied := make(map[string][]string, len(deps))
	for name, d := range deps {
		copied[name] = append([]string(nil), d...)
	}
	return &Graph{deps: copied}
}

// Validate checks that every dependency references a declared service and
// that the graph is acyclic. A cycle is reported with its full path so the
// operator can fix the manifest instead of staring at a deadlock.
func (g *Graph) Validate() error {
	// Stable iteration (nicer error messages)
	names := make([]string, 0, len(g.deps))
	for name := range g.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, dep := range g.deps[name] {
			if dep == name {
				return fmt.Errorf("service %q depends on itself", name)
			}
			if _, ok := g.deps[dep]; !ok {
				return fmt.Errorf("service %q depends_on %q, but %q is not declared", name, dep, dep)
			}
		}
	}

	return g.detectCycles(names)
}

const (
	unvisited = 0
	visiting  = 1
	visited   = 2
)

func (g *Graph) detectCycles(sortedNames []string) error {
	state := make(map[string]uint8, len(g.deps))
	parent := make(map[string]string, len(g.deps))

	var dfs func(string) error
	dfs = func(node string) error {
		switch state[node] {
		case visiting:
			// Back-edge; reconstruct the cycle path from parent pointers.
			return fmt.Errorf("circular dependency detected: %s", reconstructCycle(parent, node))
		case visited:
			return nil
		}

		state[node] = visiting

		for _, dep := range g.deps[node] {
			// Existence is checked before cycle detection; skip unknown just in case.
			if _, ok := g.deps[dep]; !ok {
				continue
			}
			if _, ok := parent[dep]; !ok {
				parent[dep] = node
			}
			if err := dfs(dep); err != nil {
				return err
			}
		}

		state[node] = visited
		return nil
	}

	for _, node := range sortedNames {
		if state[node] == unvisited {
			if err := dfs(node); err != nil {
				return err
			}
		}
	}

	return nil
}

func reconstructCycle(parent map[string]string, start string) string {
	seen := map[string]bool{start: true}
	path := []string{start}

	cur := start
	for {
		p, ok := parent[cur]
		if !ok {
			break
		}
		path = append(path, p)
		if seen[p] {
			break
		}
		seen[p] = true
		cur = p
	}

	// The walk produced the path in reverse; flip it and close the loop.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	if len(path) > 0 && path[len(path)-1] != path[0] {
		path = append(path, path[0])
	}

	out := ""
	for i, s := range path {
		if i > 0 {
			out += " -> "
		}
		out += fmt.Sprintf("%q", s)
	}
	return out
}

// Batches returns the startup waves: every service in wave N has all of its
// dependencies in waves < N, and services sharing a wave have no dependency
// relation, so they may launch concurrently. Waves are sorted for
// deterministic bring-up order.
func (g *Graph) Batches() ([][]string, error) {
	remaining := make(map[string]int, len(g.deps))
	for name, deps := range g.deps {
		remaining[name] = len(deps)
	}

	dependents := make(map[string][]string, len(g.deps))
	for name, deps := range g.deps {
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var batches [][]string
	done := 0

	for done < len(g.deps) {
		var wave []string
		for name, n := range remaining {
			if n == 0 {
				wave = append(wave, name)
			}
		}
		if len(wave) == 0 {
			// Unreachable after Validate, but never deadlock on bad input.
			return nil, fmt.Errorf("dependency graph contains a cycle")
		}
		sort.Strings(wave)

		for _, name := range wave {
			delete(remaining, name)
			for _, dependent := range dependents[name] {
				if _, ok := remaining[dependent]; ok {
					remaining[dependent]--
				}
			}
		}

		batches = append(batches, wave)
		done += len(wave)
	}

	return batches, nil
}
