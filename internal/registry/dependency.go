package registry

import (
	"maps"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/promptgridgo/internal/config"
)

// DependsOnInput is the reserved input name for expressing a pure ordering
// dependency. Its value, typically a link to some output of the node that
// must finish first, is stripped by the executor before the handler's input
// struct is decoded; the handler never sees it.
const DependsOnInput = "depends_on"

// PassthroughOutput is the reserved output name that re-emits the
// depends_on value unchanged, letting an ordering dependency thread through
// a node without the node's logic knowing. The executor fills its slot at
// run time.
const PassthroughOutput = "passthrough"

// WithDependencyInput returns a copy of def extended with the reserved
// depends_on input and, when passthrough is set, a passthrough output on
// the next free slot. Wrapping an already wrapped definition is a no-op.
func WithDependencyInput(def *config.NodeDefinition, passthrough bool) *config.NodeDefinition {
	if _, wrapped := def.Inputs[DependsOnInput]; wrapped {
		return def
	}

	out := *def
	out.Inputs = maps.Clone(def.Inputs)
	if out.Inputs == nil {
		out.Inputs = make(map[string]*config.InputDefinition)
	}
	out.Inputs[DependsOnInput] = &config.InputDefinition{
		Name:        DependsOnInput,
		Type:        cty.DynamicPseudoType,
		Description: "Ignored by the node. Orders this node after the linked one.",
		Optional:    true,
	}

	if passthrough {
		out.Outputs = maps.Clone(def.Outputs)
		if out.Outputs == nil {
			out.Outputs = make(map[string]*config.OutputDefinition)
		}
		out.Outputs[PassthroughOutput] = &config.OutputDefinition{
			Name:        PassthroughOutput,
			Slot:        def.NumOutputSlots(),
			Type:        cty.DynamicPseudoType,
			Description: "The depends_on value, passed through unchanged.",
		}
	}
	return &out
}
