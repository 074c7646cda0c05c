package model

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is the validated dependency graph over a set of definitions. Nodes
// are definition names; an edge a→b means b refs a (a must build first).
//
// Build performs every resolution-time check the runner relies on: unknown
// refs, undeclared sources, and cycles all fail here, before any SQL is
// compiled or executed.
type Graph struct {
	defs  map[string]*Definition
	order []string // topological, deterministic
}

// BuildGraph validates defs against the declared sources and returns the
// graph. The sources argument mirrors config (sources[src][table] exists).
func BuildGraph(defs []*Definition, sources map[string]map[string]string) (*Graph, error) {
	byName := make(map[string]*Definition, len(defs))
	for _, d := range defs {
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate definition %q", d.Name)
		}
		byName[d.Name] = d
	}

	// Resolution-time reference checks.
	for _, d := range defs {
		for _, ref := range d.Refs {
			if _, ok := byName[ref]; !ok {
				return nil, fmt.Errorf("%s: ref to unknown definition %q", d.Name, ref)
			}
			if ref == d.Name {
				return nil, fmt.Errorf("%s: definition refs itself", d.Name)
			}
		}
		for _, s := range d.Sources {
			tables, ok := sources[s.Source]
			if !ok {
				return nil, fmt.Errorf("%s: unknown source %q", d.Name, s.Source)
			}
			if _, ok := tables[s.Table]; !ok {
				return nil, fmt.Errorf("%s: source %q declares no table %q", d.Name, s.Source, s.Table)
			}
		}
	}

	order, err := topoSort(byName)
	if err != nil {
		return nil, err
	}

	return &Graph{defs: byName, order: order}, nil
}

// Order returns the definition names in execution order: every definition
// appears after all of its refs. Ties break alphabetically so runs are
// reproducible.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Def returns the named definition, or nil.
func (g *Graph) Def(name string) *Definition { return g.defs[name] }

// Len returns the number of definitions.
func (g *Graph) Len() int { return len(g.defs) }

// Dependents returns the names that directly ref the given definition.
func (g *Graph) Dependents(name string) []string {
	var out []string
	for _, d := range g.defs {
		for _, ref := range d.Refs {
			if ref == name {
				out = append(out, d.Name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// TransitiveDependents returns every definition that depends on name,
// directly or through other definitions.
func (g *Graph) TransitiveDependents(name string) []string {
	seen := map[string]struct{}{}
	var walk func(n string)
	walk = func(n string) {
		for _, dep := range g.Dependents(n) {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			walk(dep)
		}
	}
	walk(name)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// topoSort runs Kahn's algorithm with an alphabetically sorted ready set.
// Leftover nodes indicate a cycle and are named in the error.
func topoSort(byName map[string]*Definition) ([]string, error) {
	indeg := make(map[string]int, len(byName))
	for name := range byName {
		indeg[name] = 0
	}
	for _, d := range byName {
		indeg[d.Name] = len(d.Refs)
	}

	var ready []string
	for name, n := range indeg {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(byName))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		var woken []string
		for _, dep := range byName {
			for _, ref := range dep.Refs {
				if ref != name {
					continue
				}
				indeg[dep.Name]--
				if indeg[dep.Name] == 0 {
					woken = append(woken, dep.Name)
				}
			}
		}
		if len(woken) > 0 {
			ready = append(ready, woken...)
			sort.Strings(ready)
		}
	}

	if len(order) != len(byName) {
		var cyclic []string
		for name, n := range indeg {
			if n > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		return nil, fmt.Errorf("dependency cycle involving: %s", strings.Join(cyclic, ", "))
	}

	return order, nil
}
