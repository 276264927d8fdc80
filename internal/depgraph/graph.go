// Package depgraph maintains the prerequisite graph over tasks: edge
// validation, cycle detection, and ordering queries.
package depgraph

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

// Graph is the directed prerequisite graph over a snapshot of tasks. An edge
// points from a task to one of its prerequisites. The graph is acyclic at all
// times; Add refuses any edge that would break that.
type Graph struct {
	ids        map[int]struct{}
	prereqs    map[int][]int
	dependents map[int][]int
}

// New builds the graph from a task snapshot. Edges whose endpoints are both
// present are indexed; dangling references are ignored here and reported by
// the store's integrity checks.
func New(tasks []*core.Task) *Graph {
	g := &Graph{
		ids:        make(map[int]struct{}, len(tasks)),
		prereqs:    make(map[int][]int),
		dependents: make(map[int][]int),
	}
	for _, t := range tasks {
		g.ids[t.ID] = struct{}{}
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := g.ids[dep]; !ok {
				continue
			}
			g.addEdge(t.ID, dep)
		}
	}
	return g
}

func (g *Graph) addEdge(taskID, prereqID int) {
	g.prereqs[taskID] = insertSorted(g.prereqs[taskID], prereqID)
	g.dependents[prereqID] = insertSorted(g.dependents[prereqID], taskID)
}

// Has reports whether the id is part of the snapshot.
func (g *Graph) Has(id int) bool {
	_, ok := g.ids[id]
	return ok
}

// Prereqs returns the direct prerequisites of a task, ascending.
func (g *Graph) Prereqs(id int) []int {
	return slices.Clone(g.prereqs[id])
}

// Dependents returns the tasks that directly depend on id, ascending.
func (g *Graph) Dependents(id int) []int {
	return slices.Clone(g.dependents[id])
}

// Add records a prerequisite edge after full validation: known endpoints, no
// self loop, no duplicate, and no cycle. On a would-be cycle the error message
// carries the offending path.
func (g *Graph) Add(taskID, prereqID int) error {
	if err := g.CheckAdd(taskID, prereqID); err != nil {
		return err
	}
	g.addEdge(taskID, prereqID)
	return nil
}

// CheckAdd validates the edge without mutating the graph.
func (g *Graph) CheckAdd(taskID, prereqID int) error {
	if taskID == prereqID {
		return core.ErrSelfDependency
	}
	if !g.Has(taskID) {
		return fmt.Errorf("%w: unknown task %d", core.ErrValidation, taskID)
	}
	if !g.Has(prereqID) {
		return fmt.Errorf("%w: unknown task %d", core.ErrValidation, prereqID)
	}
	if slices.Contains(g.prereqs[taskID], prereqID) {
		return core.ErrDependencyExists
	}
	if path := g.findPath(prereqID, taskID, []int{taskID}, map[int]bool{}); path != nil {
		return fmt.Errorf("%w: %s", core.ErrCycleDetected, renderPath(path))
	}
	return nil
}

// Remove drops a prerequisite edge.
func (g *Graph) Remove(taskID, prereqID int) error {
	idx := slices.Index(g.prereqs[taskID], prereqID)
	if idx < 0 {
		return core.ErrDependencyAbsent
	}
	g.prereqs[taskID] = slices.Delete(g.prereqs[taskID], idx, idx+1)
	didx := slices.Index(g.dependents[prereqID], taskID)
	g.dependents[prereqID] = slices.Delete(g.dependents[prereqID], didx, didx+1)
	return nil
}

// findPath walks the transitive prerequisites from `from` looking for
// `target`. It returns the full path including both endpoints, or nil.
func (g *Graph) findPath(from, target int, path []int, visited map[int]bool) []int {
	path = append(path, from)
	if from == target {
		return path
	}
	visited[from] = true
	for _, next := range g.prereqs[from] {
		if visited[next] {
			continue
		}
		if p := g.findPath(next, target, path, visited); p != nil {
			return p
		}
	}
	return nil
}

func renderPath(path []int) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, " → ")
}

// TopologicalOrder linearizes the given subset (or the whole snapshot when
// empty) so that every prerequisite precedes its dependents. Ties are broken
// by ascending id, which makes the order deterministic.
func (g *Graph) TopologicalOrder(subset ...int) ([]int, error) {
	scope := make(map[int]struct{})
	if len(subset) == 0 {
		for id := range g.ids {
			scope[id] = struct{}{}
		}
	} else {
		for _, id := range subset {
			if !g.Has(id) {
				return nil, fmt.Errorf("%w: unknown task %d", core.ErrValidation, id)
			}
			scope[id] = struct{}{}
		}
	}

	inDegree := make(map[int]int, len(scope))
	for id := range scope {
		for _, dep := range g.prereqs[id] {
			if _, ok := scope[dep]; ok {
				inDegree[id]++
			}
		}
	}

	var ready []int
	for id := range scope {
		if inDegree[id] == 0 {
			ready = insertSorted(ready, id)
		}
	}

	order := make([]int, 0, len(scope))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, dependent := range g.dependents[id] {
			if _, ok := scope[dependent]; !ok {
				continue
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = insertSorted(ready, dependent)
			}
		}
	}

	if len(order) != len(scope) {
		return nil, core.ErrCycleDetected
	}
	return order, nil
}

func insertSorted(s []int, v int) []int {
	idx := sort.SearchInts(s, v)
	return slices.Insert(s, idx, v)
}
