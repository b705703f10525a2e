package dag

import (
	"sync"
	"sync/atomic"
)

// State represents the execution state of a node in the graph.
type State int32

const (
	// Pending indicates the node is waiting for its dependencies to complete.
	Pending State = iota
	// Running indicates the node is currently being executed by a worker.
	Running
	// Done indicates the node has completed execution successfully.
	Done
	// Failed indicates the node has failed execution or was skipped.
	Failed
)

// Node is a single vertex in the execution graph, scheduling one prompt
// node. Values never live here; the executor routes those separately. The
// node only carries the bookkeeping the worker pool needs.
type Node struct {
	// ID is the prompt node id this vertex schedules.
	ID string

	// Error stores any error that occurred during the node's execution.
	Error error

	// deps holds the set of nodes that this node depends on (predecessors).
	deps map[string]*Node
	// dependents holds the set of nodes that depend on this node (successors).
	dependents map[string]*Node

	// depCount is an atomic counter for unmet dependencies, used by the scheduler.
	depCount atomic.Int32
	// state is the node's current execution state, managed atomically.
	state atomic.Int32
	// skipOnce ensures a node is marked as skipped and processed exactly once.
	skipOnce sync.Once
}

func newNode(id string) *Node {
	return &Node{
		ID:         id,
		deps:       make(map[string]*Node),
		dependents: make(map[string]*Node),
	}
}

// DepCount atomically returns the current number of unmet dependencies.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// DecrementDepCount atomically decrements the dependency counter and returns
// the new value.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// SetState atomically sets the node's execution state.
func (n *Node) SetState(s State) {
	n.state.Store(int32(s))
}

// GetState atomically retrieves the node's execution state.
func (n *Node) GetState() State {
	return State(n.state.Load())
}

// Skip marks a node as failed and decrements its WaitGroup counter. It uses
// a sync.Once to guarantee this happens only once, returning true if it was
// the first time this node was skipped.
func (n *Node) Skip(err error, wg *sync.WaitGroup) bool {
	var wasSkipped bool
	n.skipOnce.Do(func() {
		n.SetState(Failed)
		n.Error = err
		wg.Done()
		wasSkipped = true
	})
	return wasSkipped
}
