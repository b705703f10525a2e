package builder

import (
	"context"
	"fmt"
	"slices"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/promptgridgo/internal/config"
	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/graph"
	"github.com/vk/promptgridgo/internal/hcl"
	"github.com/vk/promptgridgo/internal/registry"
)

// Build turns a loaded workflow model into a validated execution plan. Node
// arguments are evaluated here, once: link() calls become prompt links,
// everything else becomes a literal carried in the snapshot.
func Build(ctx context.Context, model *config.Model, reg *registry.Registry) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting workflow build.")

	if model.Workflow == nil {
		return nil, fmt.Errorf("model has no workflow")
	}

	result := &Result{
		Uses:      make(map[string]map[string]string),
		Resources: make(map[string]*config.ResourceConfig),
	}

	if err := collectResources(model.Workflow.Resources, reg, result); err != nil {
		return nil, err
	}

	evalCtx := hcl.EvalContext()
	nodes := make(map[string]graph.Node, len(model.Workflow.Nodes))

	// First pass: instantiate every node, resolving its arguments and
	// resource wiring.
	for _, nc := range model.Workflow.Nodes {
		if _, exists := nodes[nc.Name]; exists {
			return nil, fmt.Errorf("duplicate node name %q", nc.Name)
		}
		def, ok := reg.NodeDefinition(nc.Type)
		if !ok {
			return nil, fmt.Errorf("node %q: unknown node type %q", nc.Name, nc.Type)
		}

		inputs := make(map[string]graph.Input, len(nc.Arguments))
		for name, expr := range nc.Arguments {
			if _, declared := def.Inputs[name]; !declared {
				return nil, fmt.Errorf("node %q: undeclared argument %q for node type %q", nc.Name, name, nc.Type)
			}
			val, diags := expr.Value(evalCtx)
			if diags.HasErrors() {
				return nil, fmt.Errorf("node %q: failed to evaluate argument %q: %w", nc.Name, name, diags)
			}
			if link, isLink := hcl.AsLink(val); isLink {
				inputs[name] = graph.LinkInput(link.Node, link.Slot)
				continue
			}
			goVal, err := hcl.GoValue(val)
			if err != nil {
				return nil, fmt.Errorf("node %q: argument %q: %w", nc.Name, name, err)
			}
			inputs[name] = graph.LiteralInput(goVal)
		}
		nodes[nc.Name] = graph.Node{Type: nc.Type, Inputs: inputs}

		if len(nc.Uses) > 0 {
			wiring, err := resolveUses(nc, def, result)
			if err != nil {
				return nil, err
			}
			result.Uses[nc.Name] = wiring
		}
	}

	// Second pass: depends_on edges, once every node name is known.
	for _, nc := range model.Workflow.Nodes {
		for _, dep := range nc.DependsOn {
			if dep == nc.Name {
				return nil, fmt.Errorf("node %q depends on itself", nc.Name)
			}
			if _, exists := nodes[dep]; !exists {
				return nil, fmt.Errorf("node %q depends on unknown node %q", nc.Name, dep)
			}
			result.Edges = append(result.Edges, Edge{From: dep, To: nc.Name})
		}
	}

	result.Prompt = graph.NewPrompt(nodes)

	if err := ValidatePrompt(ctx, result.Prompt, reg); err != nil {
		return nil, err
	}

	logger.Debug("Workflow build complete.",
		"nodes", result.Prompt.Len(),
		"ordering_edges", len(result.Edges),
		"resources", len(result.Resources),
	)
	return result, nil
}

// PlanPrompt wraps a bare prompt snapshot in an execution plan. The wire
// format carries no resource blocks, so node types that declare resource
// needs are rejected up front instead of failing mid-run with missing deps.
func PlanPrompt(ctx context.Context, p *graph.Prompt, reg *registry.Registry) (*Result, error) {
	if p.Len() == 0 {
		return nil, fmt.Errorf("prompt has no nodes")
	}
	if err := ValidatePrompt(ctx, p, reg); err != nil {
		return nil, err
	}

	for _, id := range p.IDs() {
		n, _ := p.Node(id)
		def, _ := reg.NodeDefinition(n.Type)
		if len(def.Uses) > 0 {
			return nil, fmt.Errorf("node %q: node type %q requires resources and cannot run from a wire prompt", id, n.Type)
		}
	}

	return &Result{
		Prompt:    p,
		Uses:      map[string]map[string]string{},
		Resources: map[string]*config.ResourceConfig{},
	}, nil
}

// resolveUses evaluates a node's `uses` block: each entry names a resource
// instance whose type must match the manifest's declaration.
func resolveUses(nc *config.NodeConfig, def *config.NodeDefinition, result *Result) (map[string]string, error) {
	evalCtx := hcl.EvalContext()
	wiring := make(map[string]string, len(nc.Uses))
	for localName, expr := range nc.Uses {
		useDef, declared := def.Uses[localName]
		if !declared {
			return nil, fmt.Errorf("node %q: undeclared uses entry %q for node type %q", nc.Name, localName, nc.Type)
		}
		val, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("node %q: failed to evaluate uses %q: %w", nc.Name, localName, diags)
		}
		if val.Type() != cty.String {
			return nil, fmt.Errorf("node %q: uses %q must be a resource name string", nc.Name, localName)
		}
		resName := val.AsString()
		res, exists := result.Resources[resName]
		if !exists {
			return nil, fmt.Errorf("node %q: uses %q references unknown resource %q", nc.Name, localName, resName)
		}
		if res.Type != useDef.ResourceType {
			return nil, fmt.Errorf("node %q: uses %q needs resource type %q, but %q is a %q", nc.Name, localName, useDef.ResourceType, resName, res.Type)
		}
		wiring[localName] = resName
	}
	return wiring, nil
}

// collectResources registers the workflow's resource instances and computes
// the creation order implied by their depends_on entries.
func collectResources(resources []*config.ResourceConfig, reg *registry.Registry, result *Result) error {
	for _, rc := range resources {
		if _, exists := result.Resources[rc.Name]; exists {
			return fmt.Errorf("duplicate resource name %q", rc.Name)
		}
		if _, ok := reg.ResourceDefinitionRegistry[rc.Type]; !ok {
			return fmt.Errorf("resource %q: unknown resource type %q", rc.Name, rc.Type)
		}
		result.Resources[rc.Name] = rc
	}

	order, err := resourceOrder(result.Resources)
	if err != nil {
		return err
	}
	result.ResourceOrder = order
	return nil
}

// resourceOrder returns the resource names so that every depends_on target
// precedes its dependers. Deterministic for a given set of resources.
func resourceOrder(resources map[string]*config.ResourceConfig) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(resources))
	order := make([]string, 0, len(resources))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("resource dependency cycle involving %q", name)
		case done:
			return nil
		}
		state[name] = visiting
		for _, dep := range resources[name].DependsOn {
			if _, exists := resources[dep]; !exists {
				return fmt.Errorf("resource %q depends on unknown resource %q", name, dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}

	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
