package schema

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// --- Primary Workflow Structures ---

// Arguments represents the content of the 'arguments' block within a node
// or resource.
type Arguments struct {
	Body hcl.Body `hcl:",remain"`
}

// UsesBlock represents the content of the 'uses' block within a node.
type UsesBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Node represents a `node` block from a user's workflow file. It is a
// runnable instance of a defined node type.
type Node struct {
	Type      string     `hcl:"node_type,label"`
	Name      string     `hcl:"instance_name,label"`
	Arguments *Arguments `hcl:"arguments,block"`
	Uses      *UsesBlock `hcl:"uses,block"`
	DependsOn []string   `hcl:"depends_on,optional"`
}

// Resource represents a `resource` block from a user's workflow file. It is
// a managed, stateful instance of a defined resource type.
type Resource struct {
	Type      string     `hcl:"resource_type,label"`
	Name      string     `hcl:"instance_name,label"`
	Arguments *Arguments `hcl:"arguments,block"`
	DependsOn []string   `hcl:"depends_on,optional"`
}

// --- Manifest Schemas ---

// Lifecycle defines the mapping from a node type's lifecycle event to a
// registered Go handler function.
type Lifecycle struct {
	OnRun string `hcl:"on_run,optional"`
}

// ResourceLifecycle defines the mapping from a resource type's lifecycle
// events (create, destroy) to registered Go handler functions.
type ResourceLifecycle struct {
	Create  string `hcl:"create"`
	Destroy string `hcl:"destroy"`
}

// InputDefinition defines a single input variable for a node or resource type.
// With list set, the input receives a whole value batch in one invocation
// instead of being mapped element by element.
type InputDefinition struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Description string         `hcl:"description,optional"`
	Default     *cty.Value     `hcl:"default,optional"`
	List        bool           `hcl:"list,optional"`
}

// OutputDefinition defines a single output value produced by a node type
// and the zero-based slot it occupies in the node's output slice. Slots are
// what links address.
type OutputDefinition struct {
	Name        string         `hcl:"name,label"`
	Slot        int            `hcl:"slot"`
	Type        hcl.Expression `hcl:"type"`
	Description string         `hcl:"description,optional"`
	List        bool           `hcl:"list,optional"`
}

// UsesDefinition defines a resource dependency required by a node type.
type UsesDefinition struct {
	LocalName    string `hcl:"local_name,label"`
	ResourceType string `hcl:"resource_type"`
}

// NodeDefinition represents the HCL manifest for a runnable `node_type`.
type NodeDefinition struct {
	Type        string              `hcl:"type,label"`
	Description string              `hcl:"description,optional"`
	Lifecycle   *Lifecycle          `hcl:"lifecycle,block"`
	Inputs      []*InputDefinition  `hcl:"input,block"`
	Outputs     []*OutputDefinition `hcl:"output,block"`
	Uses        []*UsesDefinition   `hcl:"uses,block"`
}

// ResourceDefinition represents the HCL manifest for a stateful
// `resource_type`.
type ResourceDefinition struct {
	Type        string             `hcl:"type,label"`
	Description string             `hcl:"description,optional"`
	Lifecycle   *ResourceLifecycle `hcl:"lifecycle,block"`
	Inputs      []*InputDefinition `hcl:"input,block"`
}
