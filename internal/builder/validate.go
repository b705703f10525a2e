package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/graph"
	"github.com/vk/promptgridgo/internal/registry"
)

// ValidatePrompt checks a prompt snapshot against the registry: every node
// type must be known, every input declared, every required input present,
// and every link must point at an existing node's declared output slot.
// Both frontends funnel through here before anything executes.
func ValidatePrompt(ctx context.Context, p *graph.Prompt, reg *registry.Registry) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, id := range p.IDs() {
		n, _ := p.Node(id)
		def, ok := reg.NodeDefinition(n.Type)
		if !ok {
			errs = append(errs, fmt.Sprintf("node %q: unknown node type %q", id, n.Type))
			continue
		}

		for name, in := range n.Inputs {
			if _, declared := def.Inputs[name]; !declared {
				errs = append(errs, fmt.Sprintf("node %q: undeclared input %q for node type %q", id, name, n.Type))
				continue
			}
			link, isLink := in.Link()
			if !isLink {
				continue
			}
			target, exists := p.Node(link.Node)
			if !exists {
				errs = append(errs, fmt.Sprintf("node %q: input %q links to unknown node %q", id, name, link.Node))
				continue
			}
			targetDef, ok := reg.NodeDefinition(target.Type)
			if !ok {
				continue // the target node's own entry reports the unknown type
			}
			if link.Slot >= targetDef.NumOutputSlots() {
				errs = append(errs, fmt.Sprintf("node %q: input %q links to slot %d of node %q, but node type %q has %d output slots",
					id, name, link.Slot, link.Node, target.Type, targetDef.NumOutputSlots()))
			}
		}

		for name, inDef := range def.Inputs {
			if inDef.Optional || inDef.Default != nil {
				continue
			}
			if _, present := n.Inputs[name]; !present {
				errs = append(errs, fmt.Sprintf("node %q: missing required input %q", id, name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("prompt validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Prompt validated.", "nodes", p.Len())
	return nil
}
