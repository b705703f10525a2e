package registry

import "github.com/vk/promptgridgo/internal/graph"

// Expansion is the return type of a node handler that builds part of the
// graph at run time. Instead of producing values directly, the handler hands
// back new nodes to merge into the running prompt and, per output slot, where
// that slot's value will come from: a link into the expansion (or any
// existing node), or a plain literal.
//
// A handler whose Fn returns *Expansion always returns one; a call that
// turns out not to need new nodes returns an Expansion with no Nodes and
// all-literal Results.
type Expansion struct {
	// Nodes are merged into the prompt under their map keys. Ids must not
	// collide with existing nodes.
	Nodes map[string]graph.Node

	// Results supplies the expanding node's output slots in order, one entry
	// per declared slot. The node completes once every linked producer has
	// published.
	Results []graph.Input
}
