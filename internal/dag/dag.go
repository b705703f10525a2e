package dag

import (
	"fmt"
	"sync"
)

// Graph is a collection of nodes and their dependencies, representing a DAG.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the node and edge maps. Workers complete nodes under
	// the read lock while Extend grafts expansion nodes under the write
	// lock, so a completion either sees the grafted edges or the graft sees
	// the completion; an unlock can never fall between the two.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*Node
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
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
	g.nodes[id] = newNode(id)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is
// returned if either node does not exist or if the edge would create a
// self-reference.
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

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return len(g.nodes)
}

// Nodes returns a snapshot slice of all nodes in the graph.
func (g *Graph) Nodes() []*Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

// Roots returns the nodes that currently have no unmet dependencies.
func (g *Graph) Roots() []*Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var roots []*Node
	for _, n := range g.nodes {
		if n.depCount.Load() == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// Dependents returns a snapshot of the nodes that directly depend on n.
func (g *Graph) Dependents(n *Node) []*Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	dependents := make([]*Node, 0, len(n.dependents))
	for _, dep := range n.dependents {
		dependents = append(dependents, dep)
	}
	return dependents
}

// Complete marks n as done and returns the dependents this completion made
// ready. Runs under the read lock: a concurrent Extend either counts n as
// done or registers its new dependents before this runs.
func (g *Graph) Complete(n *Node) []*Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n.SetState(Done)
	var ready []*Node
	for _, dependent := range n.dependents {
		if dependent.DecrementDepCount() == 0 {
			ready = append(ready, dependent)
		}
	}
	return ready
}

// setInitialCounters primes every node's dependency counter from its edge
// set. Called once by Build before any worker starts.
func (g *Graph) setInitialCounters() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for _, n := range g.nodes {
		n.depCount.Store(int32(len(n.deps)))
	}
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// if a cycle is found, indicating the first node involved in the detected
// cycle.
func (g *Graph) DetectCycles() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.detectCyclesLocked()
}

// detectCyclesLocked is the classic depth-first search with three sets of
// nodes: permanent (fully visited, known safe), temporary (in the current
// recursion stack), and unvisited.
func (g *Graph) detectCyclesLocked() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		if permanent[n.ID] {
			return nil // Already visited and known to be safe.
		}
		if temporary[n.ID] {
			// We've hit a node that's already in our recursion stack, so we have a cycle.
			return fmt.Errorf("cycle detected involving node '%s'", n.ID)
		}

		temporary[n.ID] = true

		for _, dependent := range n.dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}

		delete(temporary, n.ID)
		permanent[n.ID] = true

		return nil
	}

	for _, n := range g.nodes {
		if !permanent[n.ID] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}

	return nil
}
