package graph

import (
	"fmt"
	"maps"
	"slices"
)

// Link addresses a single output slot of another node in the same prompt.
type Link struct {
	Node string
	Slot int
}

// Input is one input value of a node: either a literal carried verbatim from
// the wire format, or a link to an upstream node's output slot. The zero
// value is a nil literal.
type Input struct {
	link    *Link
	literal any
}

// LiteralInput wraps a constant value as a node input.
func LiteralInput(v any) Input {
	return Input{literal: v}
}

// LinkInput wires the given output slot of node into this input.
func LinkInput(node string, slot int) Input {
	return Input{link: &Link{Node: node, Slot: slot}}
}

// Link returns the link target and true when the input is a link.
func (in Input) Link() (Link, bool) {
	if in.link == nil {
		return Link{}, false
	}
	return *in.link, true
}

// Literal returns the literal value and true when the input is not a link.
func (in Input) Literal() (any, bool) {
	if in.link != nil {
		return nil, false
	}
	return in.literal, true
}

// IsLink reports whether the input references another node's output.
func (in Input) IsLink() bool {
	return in.link != nil
}

// Node is one unit of work in a prompt: a registered node type plus its
// named inputs.
type Node struct {
	Type   string
	Inputs map[string]Input
}

func (n Node) clone() Node {
	return Node{Type: n.Type, Inputs: maps.Clone(n.Inputs)}
}

// Prompt is an immutable snapshot of a whole execution graph, keyed by node
// id. Accessors hand out copies, so holders of a *Prompt can never observe
// it changing underneath them.
type Prompt struct {
	nodes map[string]Node
}

// NewPrompt builds a snapshot from the given nodes. The input map is deep
// copied; the caller keeps ownership of it.
func NewPrompt(nodes map[string]Node) *Prompt {
	cp := make(map[string]Node, len(nodes))
	for id, n := range nodes {
		cp[id] = n.clone()
	}
	return &Prompt{nodes: cp}
}

// Node returns a copy of the node with the given id.
func (p *Prompt) Node(id string) (Node, bool) {
	n, ok := p.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Contains reports whether a node with the given id exists in the snapshot.
func (p *Prompt) Contains(id string) bool {
	_, ok := p.nodes[id]
	return ok
}

// Len returns the number of nodes in the snapshot.
func (p *Prompt) Len() int {
	return len(p.nodes)
}

// IDs returns all node ids in sorted order.
func (p *Prompt) IDs() []string {
	return slices.Sorted(maps.Keys(p.nodes))
}

// Merge returns a new snapshot containing this prompt's nodes plus the added
// ones. Ids that already exist in the prompt are rejected, so an expansion
// can never silently overwrite a node that may have run already.
func (p *Prompt) Merge(added map[string]Node) (*Prompt, error) {
	merged := make(map[string]Node, len(p.nodes)+len(added))
	maps.Copy(merged, p.nodes)
	for id, n := range added {
		if _, exists := merged[id]; exists {
			return nil, fmt.Errorf("merge: node id %q already present in prompt", id)
		}
		merged[id] = n.clone()
	}
	return &Prompt{nodes: merged}, nil
}
