package graph

import "sync"

// ExpectedOutputs scans every link in the prompt and collects the output
// slots of nodeID that some node's input consumes. Literal inputs are
// ignored. A node nothing links to yields an empty set, and so does an id
// that is not in the prompt at all: "nobody consumes this" is an answer,
// not an error.
func ExpectedOutputs(p *Prompt, nodeID string) *OutputSet {
	slots := make(map[int]struct{})
	for _, n := range p.nodes {
		for _, in := range n.Inputs {
			if link, ok := in.Link(); ok && link.Node == nodeID {
				slots[link.Slot] = struct{}{}
			}
		}
	}
	return &OutputSet{slots: slots}
}

// Analyzer answers expected-outputs queries for one prompt snapshot. The
// full per-node index is built lazily with a single pass over all links,
// then every query is a map lookup. Repeated queries for the same id return
// the same set.
//
// An Analyzer is tied to its snapshot. After an expansion merges new nodes
// into a prompt, build a new Analyzer for the merged snapshot instead of
// reusing this one.
type Analyzer struct {
	prompt *Prompt

	build  sync.Once
	byNode map[string]*OutputSet
	none   *OutputSet
}

// NewAnalyzer creates an analyzer over the given snapshot. No work happens
// until the first query.
func NewAnalyzer(p *Prompt) *Analyzer {
	return &Analyzer{prompt: p}
}

// Prompt returns the snapshot this analyzer was built over.
func (a *Analyzer) Prompt() *Prompt {
	return a.prompt
}

// ExpectedOutputs returns the set of output slots of nodeID consumed
// anywhere in the snapshot. Ids with no consumers, known or not, get the
// shared empty set. Safe for concurrent use.
func (a *Analyzer) ExpectedOutputs(nodeID string) *OutputSet {
	a.build.Do(a.index)
	if set, ok := a.byNode[nodeID]; ok {
		return set
	}
	return a.none
}

func (a *Analyzer) index() {
	by := make(map[string]map[int]struct{})
	for _, n := range a.prompt.nodes {
		for _, in := range n.Inputs {
			link, ok := in.Link()
			if !ok {
				continue
			}
			slots := by[link.Node]
			if slots == nil {
				slots = make(map[int]struct{})
				by[link.Node] = slots
			}
			slots[link.Slot] = struct{}{}
		}
	}

	a.byNode = make(map[string]*OutputSet, len(by))
	for id, slots := range by {
		a.byNode[id] = &OutputSet{slots: slots}
	}
	a.none = NewOutputSet()
}
