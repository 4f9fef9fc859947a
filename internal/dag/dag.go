package dag

import (
	"fmt"
	"slices"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node{
		id:         id,
		seq:        g.next,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.next++
}

// RemoveNode deletes a node together with all edges touching it.
func (g *Graph) RemoveNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for depID, dep := range n.deps {
		delete(dep.dependents, id)
		delete(n.deps, depID)
	}
	for depID, dependent := range n.dependents {
		delete(dependent.deps, id)
		delete(n.dependents, depID)
	}
	delete(g.nodes, id)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// RemoveEdge deletes the edge from `fromID` to `toID`, if present.
func (g *Graph) RemoveEdge(fromID, toID string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if fromNode, ok := g.nodes[fromID]; ok {
		delete(fromNode.dependents, toID)
	}
	if toNode, ok := g.nodes[toID]; ok {
		delete(toNode.deps, fromID)
	}
}

// Dependencies returns the IDs of the nodes the given node depends on, in
// insertion order.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return ids(sorted(n.deps)), nil
}

// Dependents returns the IDs of the nodes that depend on the given node, in
// insertion order.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return ids(sorted(n.dependents)), nil
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// if a cycle is found, indicating the first node involved in the detected cycle.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Classic depth-first search with three sets of nodes:
	// permanent: fully visited and not part of a cycle.
	// temporary: on the recursion stack of the current traversal.
	// unvisited: all other nodes.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			return fmt.Errorf("cycle detected involving node '%s'", n.id)
		}

		temporary[n.id] = true
		for _, dependent := range sorted(n.dependents) {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, n.id)
		permanent[n.id] = true

		return nil
	}

	for _, n := range sorted(g.nodes) {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns every node ID such that each node comes after
// all of its dependencies. Ties are broken by insertion order.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.topological(g.nodes)
}

// Descendants returns id followed by every node that transitively depends
// on it, in topological order.
func (g *Graph) Descendants(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	start, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	reach := map[string]*node{id: start}
	queue := []*node{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for depID, dependent := range n.dependents {
			if _, seen := reach[depID]; !seen {
				reach[depID] = dependent
				queue = append(queue, dependent)
			}
		}
	}
	return g.topological(reach)
}

// topological runs Kahn's algorithm over the subset of nodes in set. Edges
// leaving the subset are ignored.
func (g *Graph) topological(set map[string]*node) ([]string, error) {
	indegree := make(map[string]int, len(set))
	for id, n := range set {
		for depID := range n.deps {
			if _, in := set[depID]; in {
				indegree[id]++
			}
		}
	}

	var ready []*node
	for _, n := range sorted(set) {
		if indegree[n.id] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(set))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n.id)

		var unlocked []*node
		for depID, dependent := range n.dependents {
			if _, in := set[depID]; !in {
				continue
			}
			indegree[depID]--
			if indegree[depID] == 0 {
				unlocked = append(unlocked, dependent)
			}
		}
		ready = append(ready, unlocked...)
		slices.SortFunc(ready, bySeq)
	}

	if len(order) != len(set) {
		return nil, fmt.Errorf("cycle detected among %d nodes", len(set)-len(order))
	}
	return order, nil
}

func sorted(m map[string]*node) []*node {
	out := make([]*node, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	slices.SortFunc(out, bySeq)
	return out
}

func bySeq(a, b *node) int { return a.seq - b.seq }

func ids(nodes []*node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}
