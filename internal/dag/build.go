package dag

import (
	"context"
	"fmt"

	"github.com/vk/promptgridgo/internal/builder"
	"github.com/vk/promptgridgo/internal/ctxlog"
)

// Build constructs the scheduling graph for an execution plan: one vertex
// per prompt node, an edge per link input, and an edge per depends_on
// constraint. Literal inputs contribute no edges. Links to missing nodes
// and self-links are build errors.
func Build(ctx context.Context, plan *builder.Result) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.")

	g := New()
	p := plan.Prompt

	for _, id := range p.IDs() {
		g.AddNode(id)
	}
	logger.Debug("Build: Node creation complete.", "node_count", g.Len())

	for _, id := range p.IDs() {
		n, _ := p.Node(id)
		for name, in := range n.Inputs {
			link, ok := in.Link()
			if !ok {
				continue
			}
			if err := g.AddEdge(link.Node, id); err != nil {
				return nil, fmt.Errorf("node %q: input %q: %w", id, name, err)
			}
		}
	}
	for _, e := range plan.Edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return nil, fmt.Errorf("depends_on edge %s -> %s: %w", e.From, e.To, err)
		}
	}
	logger.Debug("Build: Node linking complete.")

	g.setInitialCounters()
	logger.Debug("Build: Counter initialization complete.")

	if err := g.DetectCycles(); err != nil {
		return nil, fmt.Errorf("error validating dependency graph: %w", err)
	}
	logger.Debug("Build: Cycle detection passed.")

	return g, nil
}
