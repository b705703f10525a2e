package executor

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/vk/promptgridgo/internal/builder"
	"github.com/vk/promptgridgo/internal/config"
	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/dag"
	"github.com/vk/promptgridgo/internal/graph"
	"github.com/vk/promptgridgo/internal/registry"
)

// pendingExpansion parks what the executor needs to finish an expanded node
// once the grafted producers publish.
type pendingExpansion struct {
	def       *config.NodeDefinition
	results   []graph.Input
	dependsOn []any
}

func (e *Executor) takePending(id string) *pendingExpansion {
	e.expMu.Lock()
	defer e.expMu.Unlock()
	pe := e.pending[id]
	delete(e.pending, id)
	return pe
}

// beginExpansion merges an expansion into the running prompt: new snapshot,
// rebuilt expected-outputs index, grafted scheduling nodes. The expanding
// node keeps its WaitGroup slot and is delivered again once every producer
// its results link to has finished; errExpansionPending tells the worker so.
func (e *Executor) beginExpansion(ctx context.Context, n *dag.Node, exp *registry.Expansion, def *config.NodeDefinition, dependsOn []any) error {
	logger := ctxlog.FromContext(ctx).With("node", n.ID)
	logger.Info("▶️ Expanding node", "newNodes", len(exp.Nodes))

	e.expMu.Lock()
	defer e.expMu.Unlock()

	wantResults := def.NumOutputSlots()
	if _, ok := def.Outputs[registry.PassthroughOutput]; ok {
		wantResults--
	}
	if len(exp.Results) != wantResults {
		return fmt.Errorf("expansion must map %d output slots, got %d", wantResults, len(exp.Results))
	}

	current := e.analyzer.Load()
	merged, err := current.Prompt().Merge(exp.Nodes)
	if err != nil {
		return fmt.Errorf("expansion rejected: %w", err)
	}
	if err := builder.ValidatePrompt(ctx, merged, e.registry); err != nil {
		return fmt.Errorf("expansion rejected: %w", err)
	}
	for i, res := range exp.Results {
		link, ok := res.Link()
		if !ok {
			continue
		}
		target, exists := merged.Node(link.Node)
		if !exists {
			return fmt.Errorf("expansion result %d links to unknown node %q", i, link.Node)
		}
		targetDef, ok := e.registry.NodeDefinition(target.Type)
		if ok && link.Slot >= targetDef.NumOutputSlots() {
			return fmt.Errorf("expansion result %d links to slot %d of node %q, which has %d output slots",
				i, link.Slot, link.Node, targetDef.NumOutputSlots())
		}
	}

	ids := slices.Sorted(maps.Keys(exp.Nodes))
	var edges []builder.Edge
	for _, id := range ids {
		for _, in := range exp.Nodes[id].Inputs {
			if l, ok := in.Link(); ok {
				edges = append(edges, builder.Edge{From: l.Node, To: id})
			}
		}
	}
	for _, res := range exp.Results {
		if l, ok := res.Link(); ok {
			edges = append(edges, builder.Edge{From: l.Node, To: n.ID})
		}
	}

	// Park the resolution state and account for the new nodes before the
	// graft makes any of them deliverable.
	e.pending[n.ID] = &pendingExpansion{def: def, results: exp.Results, dependsOn: dependsOn}
	e.wg.Add(len(ids))
	e.analyzer.Store(graph.NewAnalyzer(merged))

	ready, skipped, err := e.graph.Extend(ids, edges, n.ID)
	if err != nil {
		delete(e.pending, n.ID)
		e.wg.Add(-len(ids))
		e.analyzer.Store(current)
		return fmt.Errorf("expansion rejected: %w", err)
	}

	// Grafted nodes whose producer already failed are settled immediately;
	// if the expanding node itself depends on one, the whole expansion
	// fails through the normal worker path.
	var poisonedSelf error
	for node, cause := range skipped {
		if node == n {
			poisonedSelf = fmt.Errorf("expansion result depends on failed node '%s'", cause)
			continue
		}
		skipErr := fmt.Errorf("skipped due to upstream failure of '%s'", cause)
		if node.Skip(skipErr, &e.wg) {
			logger.Warn("Skipping grafted node, its producer already failed.", "nodeID", node.ID, "dependency", cause)
			e.events.Publish(ctx, Event{Type: EventNodeFailed, PromptID: e.promptID, NodeID: node.ID, Error: skipErr.Error()})
			e.skipDependents(ctx, node)
		}
	}

	for _, r := range ready {
		e.enqueueReady(r)
	}

	if poisonedSelf != nil {
		delete(e.pending, n.ID)
		return poisonedSelf
	}

	logger.Debug("Expansion grafted.", "newNodes", len(ids), "ready", len(ready))
	return errExpansionPending
}

// resolveExpansion finishes an expanded node. Every producer its results
// link to has published, so the slot table assembles straight from the
// routing table; literal results become single-element batches.
func (e *Executor) resolveExpansion(ctx context.Context, n *dag.Node, pe *pendingExpansion) error {
	logger := ctxlog.FromContext(ctx).With("node", n.ID)
	slots := make([][]any, pe.def.NumOutputSlots())
	for i, res := range pe.results {
		if link, ok := res.Link(); ok {
			batch, err := e.lookupSlot(link)
			if err != nil {
				return fmt.Errorf("expansion result %d: %w", i, err)
			}
			slots[i] = batch
			continue
		}
		lit, _ := res.Literal()
		slots[i] = []any{lit}
	}
	e.publishOutputs(n.ID, pe.def, slots, pe.dependsOn)
	logger.Info("✅ Finished node", "expanded", true)
	return nil
}
