package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of the entire
// application configuration: all node and resource manifests plus the
// workflow to execute.
type Model struct {
	Nodes     map[string]*NodeDefinition
	Resources map[string]*ResourceDefinition
	Workflow  *Workflow
}

// Workflow represents the user's graph definition: node instances wired by
// links, plus the resources they share.
type Workflow struct {
	Nodes     []*NodeConfig
	Resources []*ResourceConfig
}

// NodeConfig is the format-agnostic representation of a `node` block: one
// instance of a defined node type.
type NodeConfig struct {
	Type      string
	Name      string
	Arguments map[string]hcl.Expression
	Uses      map[string]hcl.Expression
	DependsOn []string
}

// ResourceConfig is the format-agnostic representation of a `resource`
// block: one managed, stateful instance of a defined resource type.
type ResourceConfig struct {
	Type      string
	Name      string
	Arguments map[string]hcl.Expression
	DependsOn []string
}

// --- Manifest Models ---

// NodeDefinition is the format-agnostic representation of a node type's
// manifest.
type NodeDefinition struct {
	Type        string
	Description string
	Lifecycle   *Lifecycle
	Inputs      map[string]*InputDefinition
	Outputs     map[string]*OutputDefinition
	Uses        map[string]*UsesDefinition
}

// OutputForSlot returns the output definition occupying the given slot.
func (d *NodeDefinition) OutputForSlot(slot int) (*OutputDefinition, bool) {
	for _, out := range d.Outputs {
		if out.Slot == slot {
			return out, true
		}
	}
	return nil, false
}

// NumOutputSlots returns one past the highest declared slot, the length of
// the output value slice a handler for this type produces.
func (d *NodeDefinition) NumOutputSlots() int {
	n := 0
	for _, out := range d.Outputs {
		if out.Slot+1 > n {
			n = out.Slot + 1
		}
	}
	return n
}

// ResourceDefinition is the format-agnostic representation of a resource
// type's manifest.
type ResourceDefinition struct {
	Type        string
	Description string
	Lifecycle   *ResourceLifecycle
	Inputs      map[string]*InputDefinition
}

// Lifecycle maps a node type's events to Go handler names.
type Lifecycle struct {
	OnRun string
}

// ResourceLifecycle maps a resource type's events to Go handler names.
type ResourceLifecycle struct {
	Create  string
	Destroy string
}

// InputDefinition defines a single input argument for a node or resource.
// List marks an input that takes a whole value batch in a single
// invocation rather than one element per mapped call.
type InputDefinition struct {
	Name        string
	Type        cty.Type
	Description string
	Default     *cty.Value
	Optional    bool
	List        bool
}

// OutputDefinition defines a single output value of a node type and the
// slot it occupies in the node's output slice. List marks a slot whose
// handler returns a whole batch per invocation.
type OutputDefinition struct {
	Name        string
	Slot        int
	Type        cty.Type
	Description string
	List        bool
}

// UsesDefinition defines a resource dependency for a node type.
type UsesDefinition struct {
	LocalName    string
	ResourceType string
}
