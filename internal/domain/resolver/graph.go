// Package resolver builds the inter-plugin dependency graph and computes
// activation and deactivation orders.
package resolver

import (
	"fmt"
	"sort"

	"github.com/felixgeelhaar/hangar/internal/domain/manifest"
)

// Graph is the directed dependency graph over a set of manifests. Nodes
// are plugin identifiers; an edge A -> B means "A requires B". A Graph
// is immutable: when the plugin set changes, build a new one.
type Graph struct {
	manifests map[string]*manifest.Manifest
	edges     map[string][]string
	order     []string
}

// Build constructs the graph from the full set of known manifests. Every
// declared dependency must resolve to a manifest in the set whose version
// satisfies the declared range, and the result must be acyclic;
// otherwise construction fails and no graph is returned.
func Build(manifests []*manifest.Manifest) (*Graph, error) {
	g := &Graph{
		manifests: make(map[string]*manifest.Manifest, len(manifests)),
		edges:     make(map[string][]string, len(manifests)),
	}

	for _, m := range manifests {
		if _, exists := g.manifests[m.ID]; exists {
			return nil, fmt.Errorf("duplicate plugin identifier %q", m.ID)
		}
		g.manifests[m.ID] = m
		g.edges[m.ID] = nil
	}

	for _, m := range manifests {
		for _, dep := range m.Dependencies {
			target, ok := g.manifests[dep.ID]
			if !ok {
				return nil, &UnresolvedDependencyError{
					PluginID:     m.ID,
					DependencyID: dep.ID,
					Range:        dep.Range,
					Reason:       "not installed",
				}
			}
			if dep.Range != "" {
				rng, err := manifest.ParseRange(dep.Range)
				if err != nil {
					return nil, fmt.Errorf("plugin %q: %w", m.ID, err)
				}
				if !rng.Satisfies(target.Version) {
					return nil, &UnresolvedDependencyError{
						PluginID:     m.ID,
						DependencyID: dep.ID,
						Range:        dep.Range,
						Reason:       fmt.Sprintf("installed version %s does not satisfy %s", target.Version, dep.Range),
					}
				}
			}
			g.edges[m.ID] = append(g.edges[m.ID], dep.ID)
		}
	}

	order, err := topologicalSort(g.edges)
	if err != nil {
		return nil, err
	}
	g.order = order

	return g, nil
}

// Has returns true if the graph contains the plugin.
func (g *Graph) Has(id string) bool {
	_, ok := g.manifests[id]
	return ok
}

// Dependencies returns the direct dependencies of a plugin.
func (g *Graph) Dependencies(id string) []string {
	deps := g.edges[id]
	result := make([]string, len(deps))
	copy(result, deps)
	return result
}

// ActivationOrder returns all plugin identifiers in topological order:
// every dependency precedes its dependents.
func (g *Graph) ActivationOrder() []string {
	result := make([]string, len(g.order))
	copy(result, g.order)
	return result
}

// ReverseClosure returns every plugin that transitively depends on id,
// ordered dependents-first so the slice can be disabled front to back
// before the target itself. The target is not included.
func (g *Graph) ReverseClosure(id string) []string {
	dependents := make(map[string][]string)
	for from, tos := range g.edges {
		for _, to := range tos {
			dependents[to] = append(dependents[to], from)
		}
	}

	closure := make(map[string]bool)
	stack := []string{id}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range dependents[current] {
			if !closure[dep] {
				closure[dep] = true
				stack = append(stack, dep)
			}
		}
	}

	// Walk the activation order backwards: dependents come before the
	// plugins they require.
	result := make([]string, 0, len(closure))
	for i := len(g.order) - 1; i >= 0; i-- {
		if closure[g.order[i]] {
			result = append(result, g.order[i])
		}
	}
	return result
}

// topologicalSort orders the graph dependencies-first using post-order
// DFS. A cycle fails the whole sort. Roots are visited in sorted order
// so results and cycle reports do not depend on map iteration.
func topologicalSort(edges map[string][]string) ([]string, error) {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]int, len(edges))
	result := make([]string, 0, len(edges))
	var currentPath []string

	var visit func(node string) error
	visit = func(node string) error {
		switch state[node] {
		case visiting:
			cycleStart := -1
			for i, n := range currentPath {
				if n == node {
					cycleStart = i
					break
				}
			}
			cycle := append([]string{}, currentPath[cycleStart:]...)
			cycle = append(cycle, node)
			return &CyclicDependencyError{Cycle: cycle}
		case visited:
			return nil
		}

		state[node] = visiting
		currentPath = append(currentPath, node)

		for _, dep := range edges[node] {
			if err := visit(dep); err != nil {
				return err
			}
		}

		state[node] = visited
		currentPath = currentPath[:len(currentPath)-1]
		result = append(result, node)
		return nil
	}

	roots := make([]string, 0, len(edges))
	for node := range edges {
		roots = append(roots, node)
	}
	sort.Strings(roots)

	for _, node := range roots {
		if state[node] == unvisited {
			if err := visit(node); err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}
