// This file contains the logic for translating HCL schema structs into the
// format-agnostic configuration model defined in the config package.

package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/promptgridgo/internal/config"
	"github.com/vk/promptgridgo/internal/schema"
)

// translateNode converts the HCL-specific node schema into the agnostic model.
func (l *Loader) translateNode(s *schema.Node) *config.NodeConfig {
	return &config.NodeConfig{
		Type:      s.Type,
		Name:      s.Name,
		Arguments: l.extractBodyAttributes(s.Arguments),
		Uses:      l.extractBodyAttributes(s.Uses),
		DependsOn: s.DependsOn,
	}
}

// translateResource converts the HCL-specific resource schema into the agnostic model.
func (l *Loader) translateResource(s *schema.Resource) *config.ResourceConfig {
	return &config.ResourceConfig{
		Type:      s.Type,
		Name:      s.Name,
		Arguments: l.extractBodyAttributes(s.Arguments),
		DependsOn: s.DependsOn,
	}
}

// translateInputDefinition is a helper that processes a single HCL input
// block, handling its default value and type parsing.
func translateInputDefinition(ctx context.Context, in *schema.InputDefinition, ownerKind, ownerName string) (*config.InputDefinition, error) {
	var defaultVal *cty.Value
	var isOptional bool

	if in.Default != nil {
		val := *in.Default
		if !val.IsNull() {
			defaultVal = &val
			isOptional = true
		}
	}

	parsedType, err := typeExprToCtyType(ctx, in.Type)
	if err != nil {
		return nil, fmt.Errorf("in %s '%s', input '%s': %w", ownerKind, ownerName, in.Name, err)
	}

	return &config.InputDefinition{
		Name:        in.Name,
		Type:        parsedType,
		Description: in.Description,
		Default:     defaultVal,
		Optional:    isOptional,
		List:        in.List,
	}, nil
}

// translateNodeDefinition converts the HCL-specific node type manifest into
// the agnostic model. Output slots must be unique and non-negative: links
// address outputs by slot, so a broken manifest here would corrupt every
// downstream wire.
func (l *Loader) translateNodeDefinition(ctx context.Context, s *schema.NodeDefinition) (*config.NodeDefinition, error) {
	d := &config.NodeDefinition{
		Type:        s.Type,
		Description: s.Description,
		Inputs:      make(map[string]*config.InputDefinition),
		Outputs:     make(map[string]*config.OutputDefinition),
		Uses:        make(map[string]*config.UsesDefinition),
	}
	if s.Lifecycle != nil {
		d.Lifecycle = &config.Lifecycle{OnRun: s.Lifecycle.OnRun}
	}

	for _, in := range s.Inputs {
		translatedInput, err := translateInputDefinition(ctx, in, "node_type", s.Type)
		if err != nil {
			return nil, err
		}
		d.Inputs[in.Name] = translatedInput
	}

	slotOwners := make(map[int]string)
	for _, out := range s.Outputs {
		if out.Slot < 0 {
			return nil, fmt.Errorf("in node_type '%s', output '%s': slot %d is negative", s.Type, out.Name, out.Slot)
		}
		if owner, taken := slotOwners[out.Slot]; taken {
			return nil, fmt.Errorf("in node_type '%s', output '%s': slot %d already used by output '%s'", s.Type, out.Name, out.Slot, owner)
		}
		slotOwners[out.Slot] = out.Name

		parsedType, err := typeExprToCtyType(ctx, out.Type)
		if err != nil {
			return nil, fmt.Errorf("in node_type '%s', output '%s': %w", s.Type, out.Name, err)
		}
		d.Outputs[out.Name] = &config.OutputDefinition{
			Name:        out.Name,
			Slot:        out.Slot,
			Type:        parsedType,
			Description: out.Description,
			List:        out.List,
		}
	}

	for _, use := range s.Uses {
		d.Uses[use.LocalName] = &config.UsesDefinition{
			LocalName:    use.LocalName,
			ResourceType: use.ResourceType,
		}
	}
	return d, nil
}

// translateResourceDefinition converts the HCL-specific resource type
// manifest into the agnostic model.
func (l *Loader) translateResourceDefinition(ctx context.Context, s *schema.ResourceDefinition) (*config.ResourceDefinition, error) {
	d := &config.ResourceDefinition{
		Type:        s.Type,
		Description: s.Description,
		Inputs:      make(map[string]*config.InputDefinition),
	}
	if s.Lifecycle != nil {
		d.Lifecycle = &config.ResourceLifecycle{Create: s.Lifecycle.Create, Destroy: s.Lifecycle.Destroy}
	}

	for _, in := range s.Inputs {
		translatedInput, err := translateInputDefinition(ctx, in, "resource_type", s.Type)
		if err != nil {
			return nil, err
		}
		d.Inputs[in.Name] = translatedInput
	}
	return d, nil
}

func (l *Loader) extractBodyAttributes(block any) map[string]hcl.Expression {
	if block == nil {
		return nil
	}
	var body hcl.Body
	switch b := block.(type) {
	case *schema.Arguments:
		if b == nil {
			return nil
		}
		body = b.Body
	case *schema.UsesBlock:
		if b == nil {
			return nil
		}
		body = b.Body
	default:
		return nil
	}
	if body == nil {
		return nil
	}
	attrs, _ := body.JustAttributes()
	if attrs == nil {
		return nil
	}
	exprMap := make(map[string]hcl.Expression)
	for name, attr := range attrs {
		exprMap[name] = attr.Expr
	}
	return exprMap
}
