package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/promptgridgo/internal/config"
	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/dag"
	"github.com/vk/promptgridgo/internal/execctx"
	"github.com/vk/promptgridgo/internal/graph"
	"github.com/vk/promptgridgo/internal/registry"
)

// runNode executes one delivered node: either the resolution of an earlier
// expansion, or a full handler invocation with batch mapping.
func (e *Executor) runNode(ctx context.Context, n *dag.Node) error {
	if pe := e.takePending(n.ID); pe != nil {
		return e.resolveExpansion(ctx, n, pe)
	}

	promptNode, ok := e.analyzer.Load().Prompt().Node(n.ID)
	if !ok {
		return fmt.Errorf("node %q not in prompt snapshot", n.ID)
	}
	def, ok := e.registry.NodeDefinition(promptNode.Type)
	if !ok {
		return fmt.Errorf("unknown node type '%s'", promptNode.Type)
	}
	if def.Lifecycle == nil || def.Lifecycle.OnRun == "" {
		return fmt.Errorf("node type '%s' has no on_run handler", promptNode.Type)
	}
	handler, ok := e.registry.HandlerRegistry[def.Lifecycle.OnRun]
	if !ok {
		return fmt.Errorf("handler '%s' not registered", def.Lifecycle.OnRun)
	}

	logger := ctxlog.FromContext(ctx).With("node", n.ID)
	logger.Info("▶️ Starting node")

	resolved, err := e.resolveInputs(n.ID, promptNode)
	if err != nil {
		return err
	}
	dependsOn := resolved[registry.DependsOnInput]

	expected := e.analyzer.Load().ExpectedOutputs(n.ID)

	depsStruct, err := e.buildDepsStruct(ctx, n.ID, handler)
	if err != nil {
		return err
	}

	invocations := batchSize(def, resolved)
	logger.Debug("Node invocation plan ready.", "invocations", invocations, "expectedOutputs", expected.String())

	slots := make([][]any, def.NumOutputSlots())
	for i := 0; i < invocations; i++ {
		out, err := e.invokeHandler(ctx, n.ID, def, handler, depsStruct, resolved, i, invocations, expected)
		if err != nil {
			if invocations > 1 {
				return fmt.Errorf("element %d: %w", i, err)
			}
			return err
		}
		if exp, isExpansion := out.(*registry.Expansion); isExpansion {
			if invocations > 1 {
				return fmt.Errorf("subgraph expansion cannot be combined with batched invocation")
			}
			if exp == nil {
				return fmt.Errorf("expansion handler returned nil")
			}
			return e.beginExpansion(ctx, n, exp, def, dependsOn)
		}
		if err := collectOutputs(def, out, slots); err != nil {
			return err
		}
	}

	e.publishOutputs(n.ID, def, slots, dependsOn)
	logger.Info("✅ Finished node")
	return nil
}

// invokeHandler performs one call of the node's lifecycle function under a
// fresh context scope.
func (e *Executor) invokeHandler(
	ctx context.Context,
	id string,
	def *config.NodeDefinition,
	handler *registry.RegisteredNode,
	depsStruct any,
	resolved map[string][]any,
	index, invocations int,
	expected *graph.OutputSet,
) (any, error) {
	var callCtx context.Context
	var err error
	if invocations > 1 {
		callCtx, err = execctx.ScopeIndexed(ctx, e.promptID, id, index, expected)
	} else {
		callCtx, err = execctx.Scope(ctx, e.promptID, id, expected)
	}
	if err != nil {
		return nil, err
	}

	var inputStruct any
	if handler.NewInput != nil {
		inputStruct = handler.NewInput()
		values := make(map[string]any, len(resolved))
		for name, batch := range resolved {
			if name == registry.DependsOnInput {
				continue
			}
			if d := def.Inputs[name]; d != nil && d.List {
				values[name] = []any(batch)
				continue
			}
			values[name] = batch[min(index, len(batch)-1)]
		}
		if err := e.converter.DecodeInputs(callCtx, inputStruct, values, def.Inputs); err != nil {
			return nil, fmt.Errorf("failed to decode arguments: %w", err)
		}
	}

	fn := reflect.ValueOf(handler.Fn)
	callArgs := make([]reflect.Value, 3)
	callArgs[0] = reflect.ValueOf(callCtx)
	if depsStruct == nil {
		callArgs[1] = reflect.Zero(fn.Type().In(1))
	} else {
		callArgs[1] = reflect.ValueOf(depsStruct)
	}
	if inputStruct == nil {
		callArgs[2] = reflect.Zero(fn.Type().In(2))
	} else {
		callArgs[2] = reflect.ValueOf(inputStruct)
	}

	results := fn.Call(callArgs)
	if errResult := results[1].Interface(); errResult != nil {
		return nil, errResult.(error)
	}
	return results[0].Interface(), nil
}

// batchSize derives how many handler calls a node's resolved inputs demand.
// The longest non-list batch sets the count and shorter batches broadcast
// their last element. Any empty batch shorts the node to zero calls.
func batchSize(def *config.NodeDefinition, resolved map[string][]any) int {
	invocations := 1
	for name, batch := range resolved {
		if name == registry.DependsOnInput {
			continue
		}
		if d := def.Inputs[name]; d != nil && d.List {
			continue
		}
		if len(batch) == 0 {
			return 0
		}
		if len(batch) > invocations {
			invocations = len(batch)
		}
	}
	return invocations
}

// resolveInputs assembles a node's input batches: links read the producer's
// published slot, literals become single-element batches.
func (e *Executor) resolveInputs(id string, promptNode graph.Node) (map[string][]any, error) {
	resolved := make(map[string][]any, len(promptNode.Inputs))
	for name, in := range promptNode.Inputs {
		if link, ok := in.Link(); ok {
			batch, err := e.lookupSlot(link)
			if err != nil {
				return nil, fmt.Errorf("node %q: input %q: %w", id, name, err)
			}
			resolved[name] = batch
			continue
		}
		lit, _ := in.Literal()
		resolved[name] = []any{lit}
	}
	return resolved, nil
}

// lookupSlot reads one slot batch from the routing table.
func (e *Executor) lookupSlot(link graph.Link) ([]any, error) {
	raw, ok := e.outputs.Load(link.Node)
	if !ok {
		return nil, fmt.Errorf("no published output for node %q", link.Node)
	}
	slots := raw.([][]any)
	if link.Slot < 0 || link.Slot >= len(slots) {
		return nil, fmt.Errorf("node %q has no output slot %d", link.Node, link.Slot)
	}
	return slots[link.Slot], nil
}

// collectOutputs appends one invocation's values onto the per-slot batches.
// List outputs contribute every element of the returned slice.
func collectOutputs(def *config.NodeDefinition, out any, slots [][]any) error {
	for name, od := range def.Outputs {
		if name == registry.PassthroughOutput {
			continue
		}
		v := fieldByTag(out, name)
		if od.List {
			if v == nil {
				continue
			}
			rv := reflect.ValueOf(v)
			if rv.Kind() != reflect.Slice {
				return fmt.Errorf("output %q: declared list but handler returned %T", name, v)
			}
			for j := 0; j < rv.Len(); j++ {
				slots[od.Slot] = append(slots[od.Slot], rv.Index(j).Interface())
			}
			continue
		}
		slots[od.Slot] = append(slots[od.Slot], v)
	}
	return nil
}

// publishOutputs stores a node's slot table in the routing table, filling
// the passthrough slot from the raw depends_on batch when the type carries
// one.
func (e *Executor) publishOutputs(id string, def *config.NodeDefinition, slots [][]any, dependsOn []any) {
	if pt, ok := def.Outputs[registry.PassthroughOutput]; ok {
		if dependsOn == nil {
			dependsOn = []any{nil}
		}
		slots[pt.Slot] = dependsOn
	}
	e.outputs.Store(id, slots)
}
