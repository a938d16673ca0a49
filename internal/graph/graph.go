package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gammazero/toposort"
	"github.com/google/uuid"
)

// Graph is an in-memory directed acyclic graph of dependency edges between
// task ids. Every mutation re-establishes acyclicity before taking effect:
// an insertion that would close a cycle is rejected and the graph is left
// exactly as it was.
type Graph struct {
	mu       sync.RWMutex
	edges    map[uuid.UUID]*Dependency   // all edges indexed by edge id
	outgoing map[uuid.UUID][]*Dependency // from task -> edges leaving it
	incoming map[uuid.UUID][]*Dependency // to task -> edges entering it
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		edges:    make(map[uuid.UUID]*Dependency),
		outgoing: make(map[uuid.UUID][]*Dependency),
		incoming: make(map[uuid.UUID][]*Dependency),
	}
}

// Insert adds an edge from -> to with the given kind. It fails with
// ErrSelfDependency, ErrDuplicateDependency, or ErrCycle without mutating
// the graph. The cycle check walks existing edges from `to` looking for
// `from`: if such a path exists, adding from -> to would close a loop.
func (g *Graph) Insert(from, to uuid.UUID, kind Kind) (*Dependency, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown dependency kind %q", kind)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	dep := NewDependency(from, to, kind)
	if err := g.insertLocked(dep); err != nil {
		return nil, err
	}
	return dep.Clone(), nil
}

// Restore re-admits a persisted edge, preserving its id and creation time.
// It applies the same structural checks as Insert.
func (g *Graph) Restore(dep *Dependency) error {
	if dep == nil {
		return fmt.Errorf("nil dependency")
	}
	if !dep.Kind.Valid() {
		return fmt.Errorf("unknown dependency kind %q", dep.Kind)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.insertLocked(dep.Clone())
}

func (g *Graph) insertLocked(dep *Dependency) error {
	if dep.FromTaskID == dep.ToTaskID {
		return fmt.Errorf("%w: %s", ErrSelfDependency, dep.FromTaskID)
	}
	if _, exists := g.edges[dep.ID]; exists {
		return fmt.Errorf("%w: edge id %s", ErrDuplicateDependency, dep.ID)
	}
	for _, e := range g.outgoing[dep.FromTaskID] {
		if e.ToTaskID == dep.ToTaskID {
			return fmt.Errorf("%w: %s -> %s", ErrDuplicateDependency, dep.FromTaskID, dep.ToTaskID)
		}
	}
	if g.hasPathLocked(dep.ToTaskID, dep.FromTaskID) {
		return fmt.Errorf("%w: %s -> %s", ErrCycle, dep.FromTaskID, dep.ToTaskID)
	}

	g.edges[dep.ID] = dep
	g.outgoing[dep.FromTaskID] = append(g.outgoing[dep.FromTaskID], dep)
	g.incoming[dep.ToTaskID] = append(g.incoming[dep.ToTaskID], dep)
	return nil
}

// Remove deletes the edge with the given id from all indices and returns
// it. Fails with ErrDependencyNotFound if the id is unknown.
func (g *Graph) Remove(dependencyID uuid.UUID) (*Dependency, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	dep, exists := g.edges[dependencyID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDependencyNotFound, dependencyID)
	}

	delete(g.edges, dependencyID)
	g.outgoing[dep.FromTaskID] = dropEdge(g.outgoing[dep.FromTaskID], dependencyID)
	if len(g.outgoing[dep.FromTaskID]) == 0 {
		delete(g.outgoing, dep.FromTaskID)
	}
	g.incoming[dep.ToTaskID] = dropEdge(g.incoming[dep.ToTaskID], dependencyID)
	if len(g.incoming[dep.ToTaskID]) == 0 {
		delete(g.incoming, dep.ToTaskID)
	}

	return dep.Clone(), nil
}

func dropEdge(edges []*Dependency, id uuid.UUID) []*Dependency {
	for i, e := range edges {
		if e.ID == id {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return edges
}

// Get returns the edge with the given id.
func (g *Graph) Get(dependencyID uuid.UUID) (*Dependency, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dep, exists := g.edges[dependencyID]
	if !exists {
		return nil, false
	}
	return dep.Clone(), true
}

// Find returns the edge between the given endpoints, if any.
func (g *Graph) Find(from, to uuid.UUID) (*Dependency, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, e := range g.outgoing[from] {
		if e.ToTaskID == to {
			return e.Clone(), true
		}
	}
	return nil, false
}

// Predecessors returns the one-hop upstream task ids of the given task.
// Endpoint pairs are unique, so the result carries no duplicates.
func (g *Graph) Predecessors(taskID uuid.UUID) []uuid.UUID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(g.incoming[taskID]))
	for _, e := range g.incoming[taskID] {
		out = append(out, e.FromTaskID)
	}
	return out
}

// Successors returns the one-hop downstream task ids of the given task.
func (g *Graph) Successors(taskID uuid.UUID) []uuid.UUID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(g.outgoing[taskID]))
	for _, e := range g.outgoing[taskID] {
		out = append(out, e.ToTaskID)
	}
	return out
}

// IncomingEdges returns copies of the edges entering the given task.
func (g *Graph) IncomingEdges(taskID uuid.UUID) []*Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Dependency, 0, len(g.incoming[taskID]))
	for _, e := range g.incoming[taskID] {
		out = append(out, e.Clone())
	}
	return out
}

// OutgoingEdges returns copies of the edges leaving the given task.
func (g *Graph) OutgoingEdges(taskID uuid.UUID) []*Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Dependency, 0, len(g.outgoing[taskID]))
	for _, e := range g.outgoing[taskID] {
		out = append(out, e.Clone())
	}
	return out
}

// HasPath reports whether `to` is reachable from `from` following edge
// direction. A task trivially reaches itself.
func (g *Graph) HasPath(from, to uuid.UUID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.hasPathLocked(from, to)
}

func (g *Graph) hasPathLocked(from, to uuid.UUID) bool {
	if from == to {
		return true
	}

	visited := make(map[uuid.UUID]struct{})
	stack := []uuid.UUID{from}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node == to {
			return true
		}
		if _, seen := visited[node]; seen {
			continue
		}
		visited[node] = struct{}{}

		for _, e := range g.outgoing[node] {
			stack = append(stack, e.ToTaskID)
		}
	}
	return false
}

// Edges returns copies of every edge in the graph.
func (g *Graph) Edges() []*Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Dependency, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e.Clone())
	}
	return out
}

// Len returns the number of edges.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.edges)
}

// Order returns the task universe in topological order using
// gammazero/toposort. Every task referenced by an edge must be present in
// the universe; tasks without edges are included as roots.
func (g *Graph) Order(universe []uuid.UUID) ([]uuid.UUID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.orderLocked(universe)
}

func (g *Graph) orderLocked(universe []uuid.UUID) ([]uuid.UUID, error) {
	known := make(map[uuid.UUID]struct{}, len(universe))
	for _, id := range universe {
		known[id] = struct{}{}
	}

	var edges []toposort.Edge
	for _, id := range universe {
		deps := g.incoming[id]
		if len(deps) == 0 {
			// Root task - add edge from nil to ensure it's included
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, e := range deps {
			if _, exists := known[e.FromTaskID]; !exists {
				return nil, fmt.Errorf("task %s depends on unknown task %s", id, e.FromTaskID)
			}
			// Edge (from, id) means from must come before id
			edges = append(edges, toposort.Edge{e.FromTaskID, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycle, err)
	}

	order := make([]uuid.UUID, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(uuid.UUID))
		}
	}

	if len(order) != len(universe) {
		var missing []string
		found := make(map[uuid.UUID]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		for _, id := range universe {
			if !found[id] {
				missing = append(missing, id.String())
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// CriticalPath returns the longest chain of tasks weighted by the given
// per-task estimates, walking the graph in topological order. Tasks absent
// from the estimate map weigh zero. Returns nil if the universe implied by
// the edges and estimates cannot be ordered.
func (g *Graph) CriticalPath(estimates map[uuid.UUID]float64) []uuid.UUID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{}, len(estimates))
	universe := make([]uuid.UUID, 0, len(estimates))
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			universe = append(universe, id)
		}
	}
	for id := range estimates {
		add(id)
	}
	for _, e := range g.edges {
		add(e.FromTaskID)
		add(e.ToTaskID)
	}
	sort.Slice(universe, func(i, j int) bool {
		return universe[i].String() < universe[j].String()
	})

	order, err := g.orderLocked(universe)
	if err != nil {
		return nil
	}

	// Longest-distance DP over the topological order.
	distance := make(map[uuid.UUID]float64, len(order))
	previous := make(map[uuid.UUID]uuid.UUID, len(order))
	for _, id := range order {
		for _, e := range g.incoming[id] {
			through := distance[e.FromTaskID] + estimates[e.FromTaskID]
			if prev, ok := previous[id]; !ok || through > distance[id] ||
				(through == distance[id] && e.FromTaskID.String() < prev.String()) {
				distance[id] = through
				previous[id] = e.FromTaskID
			}
		}
	}

	var end uuid.UUID
	best := -1.0
	for _, id := range order {
		total := distance[id] + estimates[id]
		if total > best {
			best = total
			end = id
		}
	}
	if best < 0 {
		return nil
	}

	path := []uuid.UUID{end}
	for {
		prev, ok := previous[path[len(path)-1]]
		if !ok {
			break
		}
		path = append(path, prev)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
