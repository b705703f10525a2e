// Package passthrough provides an ordering helper node. It forwards its
// input unchanged and opts into the dependency input, so workflows can
// thread an execution-order constraint through it via depends_on and the
// runtime-filled passthrough slot.
package passthrough

import (
	"context"

	"github.com/vk/promptgridgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the passthrough node.
type Input struct {
	Value any `pgg:"value"`
}

// Deps is empty because this node uses no resources.
type Deps struct{}

// Output carries the forwarded value.
type Output struct {
	Value any `pgg:"value"`
}

// OnRunPassthrough forwards the input value unchanged.
func OnRunPassthrough(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	return &Output{Value: input.Value}, nil
}

// Register registers the handler with the engine. The dependency flags make
// the runtime add the reserved depends_on input and the passthrough output
// slot to the manifest definition.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterNode("OnRunPassthrough", &registry.RegisteredNode{
		NewInput:              func() any { return new(Input) },
		NewDeps:               func() any { return new(Deps) },
		Fn:                    OnRunPassthrough,
		AcceptsDependency:     true,
		PassthroughDependency: true,
	})
}
